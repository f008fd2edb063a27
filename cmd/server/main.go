package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fadilmartias/cv-evaluator/internal/config"
	"github.com/fadilmartias/cv-evaluator/internal/domain/fiber/handler"
	"github.com/fadilmartias/cv-evaluator/internal/logger"
	"github.com/fadilmartias/cv-evaluator/internal/middleware"
	"github.com/fadilmartias/cv-evaluator/internal/model"
	"github.com/fadilmartias/cv-evaluator/internal/queue"
	"github.com/fadilmartias/cv-evaluator/internal/repository"
	"github.com/fadilmartias/cv-evaluator/internal/service"
	"github.com/fadilmartias/cv-evaluator/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	zlog := logger.New(appConfig.Env, "info")
	defer zlog.Sync()

	db := ConnectDB(zlog)

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

	app := fiber.New(fiber.Config{
		AppName:   appConfig.Name,
		BodyLimit: 12 * 1024 * 1024,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return ctx.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appConfig.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	h := handler.NewEvaluateHandler(uc, storage)
	h.RegisterRoutes(app)

	zlog.Info("server running", zap.String("port", appConfig.Port), zap.Int("workers", appConfig.Workers))
	if err := app.Listen(appConfig.Port); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func ConnectDB(zlog *zap.Logger) *gorm.DB {
	dbConfig := config.LoadDBConfig()
	appConfig := config.LoadAppConfig()

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
	if appConfig.Env != "production" {
		pgDB.SetMaxIdleConns(5)
		pgDB.SetMaxOpenConns(10)
		pgDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		pgDB.SetMaxIdleConns(20)
		pgDB.SetMaxOpenConns(200)
		pgDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&model.Evaluation{}, &model.Document{}); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
	return db
}
