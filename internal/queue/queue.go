// Package queue moves evaluation jobs between the API and the pipeline
// workers over a Redis list. Retries here are transport-level only: business
// failures are absorbed into the evaluation record by the pipeline itself.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fadilmartias/cv-evaluator/internal/dto"
	"github.com/fadilmartias/cv-evaluator/internal/model"
)

const EvaluationQueueKey = "evaluation-queue"

type Producer struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProducer(rdb *redis.Client, logger *zap.Logger) *Producer {
	return &Producer{rdb: rdb, logger: logger}
}

func (p *Producer) Enqueue(ctx context.Context, payload dto.EvaluationJobPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.rdb.LPush(ctx, EvaluationQueueKey, b).Err(); err != nil {
		return err
	}
	p.logger.Info("enqueued evaluation job",
		zap.String("evaluation_id", payload.EvaluationID),
		zap.Int("attempt", payload.Attempt))
	return nil
}

// Runner is the pipeline entry point the consumer hands jobs to. An error
// return means the job never started (bad payload, unknown id, transport
// trouble); completed pipelines, failed or not, return nil error.
type Runner interface {
	RunEvaluationJob(ctx context.Context, payload dto.EvaluationJobPayload) (*model.Evaluation, error)
}

type Consumer struct {
	rdb      *redis.Client
	runner   Runner
	producer *Producer
	logger   *zap.Logger

	MaxAttempts int
	BaseDelay   time.Duration
	PopTimeout  time.Duration
}

func NewConsumer(rdb *redis.Client, runner Runner, producer *Producer, logger *zap.Logger) *Consumer {
	return &Consumer{
		rdb:         rdb,
		runner:      runner,
		producer:    producer,
		logger:      logger,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		PopTimeout:  5 * time.Second,
	}
}

// Start launches the worker loops. Each worker pulls one job at a time and
// runs it to completion before taking the next.
func (c *Consumer) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go c.workerLoop(ctx, i)
	}
}

func (c *Consumer) workerLoop(ctx context.Context, id int) {
	log := c.logger.With(zap.Int("worker", id))
	log.Info("evaluation worker started")
	for {
		res, err := c.rdb.BRPop(ctx, c.PopTimeout, EvaluationQueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("evaluation worker stopped")
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.Error("queue pop failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		// BRPop returns [key, value].
		c.Process(ctx, res[1])
	}
}

// Process handles one raw queue message.
func (c *Consumer) Process(ctx context.Context, raw string) {
	var payload dto.EvaluationJobPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Error("dropping undecodable queue message", zap.Error(err))
		return
	}

	if _, err := c.runner.RunEvaluationJob(ctx, payload); err != nil {
		c.retry(ctx, payload, err)
	}
}

func (c *Consumer) retry(ctx context.Context, payload dto.EvaluationJobPayload, cause error) {
	payload.Attempt++
	if payload.Attempt >= c.MaxAttempts {
		c.logger.Error("dropping evaluation job after max attempts",
			zap.String("evaluation_id", payload.EvaluationID),
			zap.Int("attempts", payload.Attempt),
			zap.Error(cause))
		return
	}

	delay := c.BaseDelay << (payload.Attempt - 1)
	c.logger.Warn("requeueing evaluation job",
		zap.String("evaluation_id", payload.EvaluationID),
		zap.Int("attempt", payload.Attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))

	go func() {
		select {
		case <-time.After(delay):
			if err := c.producer.Enqueue(ctx, payload); err != nil {
				c.logger.Error("requeue failed",
					zap.String("evaluation_id", payload.EvaluationID),
					zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()
}
