package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fadilmartias/cv-evaluator/internal/config"
	"github.com/fadilmartias/cv-evaluator/internal/util"
)

type OpenRouterServiceInterface interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string, expectJSON bool) (string, error)
}

// OpenRouterService is the single resilient path to the chat model. It holds
// no per-call state, so one instance is shared by all workers.
type OpenRouterService struct {
	client *resty.Client
	apiKey string
	model  string

	MaxAttempts    int
	BaseDelay      time.Duration
	RequestTimeout time.Duration
	Temperature    float64

	logger *zap.Logger
}

func NewOpenRouterService(logger *zap.Logger) *OpenRouterService {
	cfg := config.LoadOpenRouterConfig()
	return &OpenRouterService{
		client:         resty.New().SetBaseURL(cfg.BaseURL),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		RequestTimeout: 90 * time.Second,
		Temperature:    0.2,
		logger:         logger,
	}
}

// Invoke sends one prompt pair to the model, retrying failed attempts with
// exponential backoff. With expectJSON the returned string is the raw JSON
// object span extracted from the model output; a missing or unparseable span
// counts as a failed attempt like any transport error.
func (s *OpenRouterService) Invoke(ctx context.Context, systemPrompt, userPrompt string, expectJSON bool) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(s.BaseDelay, attempt-1)
			s.logger.Warn("model call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", fmt.Errorf("model call canceled while waiting to retry: %w", ctx.Err())
			}
		}

		out, err := s.attempt(ctx, systemPrompt, userPrompt, expectJSON)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", s.MaxAttempts, lastErr)
}

// InvokeJSON runs Invoke with expectJSON and decodes the object span into v.
func (s *OpenRouterService) InvokeJSON(ctx context.Context, systemPrompt, userPrompt string, v any) error {
	out, err := s.Invoke(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(out), v)
}

func (s *OpenRouterService) attempt(ctx context.Context, systemPrompt, userPrompt string, expectJSON bool) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.RequestTimeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(callCtx).
		SetHeader("Authorization", "Bearer "+s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":       s.model,
			"temperature": s.Temperature,
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": userPrompt},
			},
		}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode(), resp.String())
	}

	content := gjson.Get(resp.String(), "choices.0.message.content").String()
	if content == "" {
		return "", errors.New("empty content from model")
	}

	if !expectJSON {
		return content, nil
	}

	span, ok := util.ExtractJSONObject(content)
	if !ok {
		return "", errors.New("no JSON object found in model response")
	}
	var probe map[string]any
	if err := json.Unmarshal([]byte(span), &probe); err != nil {
		return "", fmt.Errorf("malformed JSON in model response: %w", err)
	}
	return span, nil
}

// backoffDelay is the retry schedule: base doubling per retry (1s, 2s, ...).
func backoffDelay(base time.Duration, retry int) time.Duration {
	return base << (retry - 1)
}
