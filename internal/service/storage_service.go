package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gonfva/docxlib"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fadilmartias/cv-evaluator/internal/config"
)

type StorageServiceInterface interface {
	SaveUpload(fileName string, data []byte) (string, error)
	RefFromURL(url string) string
	ResolveToText(ref string) (string, error)
}

// StorageService owns the upload directory and turns stored documents back
// into plain text for the pipeline.
type StorageService struct {
	uploadDir string
	baseURL   string
	logger    *zap.Logger
}

func NewStorageService(logger *zap.Logger) (*StorageService, error) {
	cfg := config.LoadStorageConfig()
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create upload dir %s: %w", cfg.UploadDir, err)
	}
	return &StorageService{
		uploadDir: cfg.UploadDir,
		baseURL:   cfg.BaseURL,
		logger:    logger,
	}, nil
}

// SaveUpload stores the file under a unique object name and returns its URL.
func (s *StorageService) SaveUpload(fileName string, data []byte) (string, error) {
	objectName := uuid.NewString() + "-" + filepath.Base(fileName)
	path := filepath.Join(s.uploadDir, objectName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot save upload %s: %w", objectName, err)
	}
	return s.baseURL + "/uploads/" + objectName, nil
}

// RefFromURL maps an upload URL back to its object name.
func (s *StorageService) RefFromURL(url string) string {
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ResolveToText reads the referenced document and extracts plain text based
// on its extension. Anything that is not PDF or DOCX is returned as raw UTF-8.
func (s *StorageService) ResolveToText(ref string) (string, error) {
	path := filepath.Join(s.uploadDir, filepath.Base(ref))

	var text string
	var err error
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".pdf":
		text, err = extractPDFText(path)
	case ".docx":
		text, err = extractDocxText(path)
	default:
		var b []byte
		b, err = os.ReadFile(path)
		text = string(b)
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", ref, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", ref)
	}
	s.logger.Debug("resolved document to text",
		zap.String("ref", ref),
		zap.Int("chars", len(text)))
	return text, nil
}

func extractPDFText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	var lastErr error
	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := doc.Text(n)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", n+1, err)
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText != "" {
			sb.WriteString(pageText)
			sb.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(sb.String())
	if result == "" && lastErr != nil {
		return "", lastErr
	}
	return result, nil
}

func extractDocxText(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}

	doc, err := docxlib.Parse(file, stat.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}

	var sb strings.Builder
	for _, paragraph := range doc.Paragraphs() {
		for _, child := range paragraph.Children() {
			if child.Run != nil && child.Run.Text != nil {
				if text := strings.TrimSpace(child.Run.Text.Text); text != "" {
					sb.WriteString(text)
					sb.WriteString(" ")
				}
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				if text := strings.TrimSpace(child.Link.Run.Text.Text); text != "" {
					sb.WriteString(text)
					sb.WriteString(" ")
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
