package config

import (
	"os"
	"sync"
)

type StorageConfig struct {
	UploadDir string
	BaseURL   string
}

var (
	storageConfig *StorageConfig
	storageOnce   sync.Once
)

func LoadStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		dir := os.Getenv("UPLOAD_DIR")
		if dir == "" {
			dir = "./uploads"
		}
		baseURL := os.Getenv("UPLOAD_BASE_URL")
		if baseURL == "" {
			baseURL = LoadAppConfig().BaseURL
		}
		storageConfig = &StorageConfig{
			UploadDir: dir,
			BaseURL:   baseURL,
		}
	})
	return storageConfig
}
