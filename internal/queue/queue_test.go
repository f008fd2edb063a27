package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fadilmartias/cv-evaluator/internal/dto"
	"github.com/fadilmartias/cv-evaluator/internal/model"
)

type stubRunner struct {
	mu       sync.Mutex
	payloads []dto.EvaluationJobPayload
	err      error
}

func (r *stubRunner) RunEvaluationJob(ctx context.Context, payload dto.EvaluationJobPayload) (*model.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return &model.Evaluation{}, r.err
}

func (r *stubRunner) seen() []dto.EvaluationJobPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dto.EvaluationJobPayload(nil), r.payloads...)
}

func setup(t *testing.T, runner *stubRunner) (*miniredis.Miniredis, *redis.Client, *Producer, *Consumer) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	producer := NewProducer(rdb, zap.NewNop())
	consumer := NewConsumer(rdb, runner, producer, zap.NewNop())
	consumer.BaseDelay = time.Millisecond
	consumer.PopTimeout = 100 * time.Millisecond
	return mr, rdb, producer, consumer
}

func TestProducerEnqueue(t *testing.T) {
	mr, rdb, producer, _ := setup(t, &stubRunner{})
	defer rdb.Close()

	err := producer.Enqueue(context.Background(), dto.EvaluationJobPayload{
		EvaluationID:     "eval-1",
		CvURL:            "http://localhost/uploads/cv.pdf",
		ProjectReportURL: "http://localhost/uploads/report.pdf",
	})
	require.NoError(t, err)

	raw, err := mr.Lpop(EvaluationQueueKey)
	require.NoError(t, err)

	var payload dto.EvaluationJobPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, "eval-1", payload.EvaluationID)
	assert.Equal(t, 0, payload.Attempt)
}

func TestConsumerProcessRunsJob(t *testing.T) {
	runner := &stubRunner{}
	_, rdb, _, consumer := setup(t, runner)
	defer rdb.Close()

	raw, _ := json.Marshal(dto.EvaluationJobPayload{EvaluationID: "eval-2", CvURL: "a", ProjectReportURL: "b"})
	consumer.Process(context.Background(), string(raw))

	seen := runner.seen()
	require.Len(t, seen, 1)
	assert.Equal(t, "eval-2", seen[0].EvaluationID)
}

func TestConsumerDropsUndecodableMessage(t *testing.T) {
	runner := &stubRunner{}
	mr, rdb, _, consumer := setup(t, runner)
	defer rdb.Close()

	consumer.Process(context.Background(), "not json")

	assert.Empty(t, runner.seen())
	assert.Equal(t, 0, len(mr.Keys()))
}

func TestConsumerRequeuesOnRunnerError(t *testing.T) {
	runner := &stubRunner{err: errors.New("record not found")}
	mr, rdb, _, consumer := setup(t, runner)
	defer rdb.Close()

	raw, _ := json.Marshal(dto.EvaluationJobPayload{EvaluationID: "eval-3"})
	consumer.Process(context.Background(), string(raw))

	assert.Eventually(t, func() bool {
		items, err := mr.List(EvaluationQueueKey)
		return err == nil && len(items) == 1
	}, time.Second, 5*time.Millisecond)

	items, err := mr.List(EvaluationQueueKey)
	require.NoError(t, err)
	var payload dto.EvaluationJobPayload
	require.NoError(t, json.Unmarshal([]byte(items[0]), &payload))
	assert.Equal(t, 1, payload.Attempt)
}

func TestConsumerDropsAfterMaxAttempts(t *testing.T) {
	runner := &stubRunner{err: errors.New("still failing")}
	mr, rdb, _, consumer := setup(t, runner)
	defer rdb.Close()

	raw, _ := json.Marshal(dto.EvaluationJobPayload{EvaluationID: "eval-4", Attempt: 2})
	consumer.Process(context.Background(), string(raw))

	time.Sleep(20 * time.Millisecond)
	items, _ := mr.List(EvaluationQueueKey)
	assert.Empty(t, items)
}

func TestConsumerWorkerLoopDrainsQueue(t *testing.T) {
	runner := &stubRunner{}
	_, rdb, producer, consumer := setup(t, runner)
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, producer.Enqueue(ctx, dto.EvaluationJobPayload{EvaluationID: "eval-5"}))
	require.NoError(t, producer.Enqueue(ctx, dto.EvaluationJobPayload{EvaluationID: "eval-6"}))

	consumer.Start(ctx, 2)

	assert.Eventually(t, func() bool {
		return len(runner.seen()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
