package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fadilmartias/cv-evaluator/internal/config"
	"github.com/fadilmartias/cv-evaluator/internal/logger"
	"github.com/fadilmartias/cv-evaluator/internal/model"
	"github.com/fadilmartias/cv-evaluator/internal/queue"
	"github.com/fadilmartias/cv-evaluator/internal/repository"
	"github.com/fadilmartias/cv-evaluator/internal/service"
	"github.com/fadilmartias/cv-evaluator/internal/usecase"
)

// Worker-only process: consumes the evaluation queue without serving HTTP.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	zlog := logger.New(appConfig.Env, "info")
	defer zlog.Sync()

	db := connectDB(zlog)

	redisConfig := config.LoadRedisConfig()
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal("redis ping failed", zap.Error(err))
	}

	evaluationRepo := repository.NewEvaluationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	storage, err := service.NewStorageService(zlog)
	if err != nil {
		zlog.Fatal("storage init failed", zap.Error(err))
	}
	openRouter := service.NewOpenRouterService(zlog)
	gemini, err := service.NewGeminiService(ctx, zlog)
	if err != nil {
		zlog.Fatal("gemini init failed", zap.Error(err))
	}

	producer := queue.NewProducer(rdb, zlog)
	uc := usecase.NewEvaluationUsecase(evaluationRepo, documentRepo, storage, openRouter, gemini, producer, zlog)
	consumer := queue.NewConsumer(rdb, uc, producer, zlog)
	consumer.Start(ctx, appConfig.Workers)

	zlog.Info("worker service running", zap.Int("workers", appConfig.Workers))
	<-ctx.Done()
	zlog.Info("worker service shutting down")
}

func connectDB(zlog *zap.Logger) *gorm.DB {
	dbConfig := config.LoadDBConfig()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Name,
		dbConfig.Port,
		dbConfig.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		zlog.Fatal("could not connect to database", zap.Error(err))
	}
	pgDB, err := db.DB()
	if err != nil {
		zlog.Fatal("could not get database instance", zap.Error(err))
	}
	pgDB.SetMaxIdleConns(5)
	pgDB.SetMaxOpenConns(20)
	pgDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&model.Evaluation{}, &model.Document{}); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	return db
}
