package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestInvoker(baseURL string) *OpenRouterService {
	return &OpenRouterService{
		client:         resty.New().SetBaseURL(baseURL),
		apiKey:         "test-key",
		model:          "test-model",
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		RequestTimeout: 5 * time.Second,
		Temperature:    0.2,
		logger:         zap.NewNop(),
	}
}

func chatResponse(content string) string {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func TestInvokeReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(chatResponse("plain text answer")))
	}))
	defer srv.Close()

	out, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", false)
	require.NoError(t, err)
	assert.Equal(t, "plain text answer", out)
}

func TestInvokeExtractsJSONFromProse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(`Sure, here is the evaluation: {"score": 4} let me know if you need more`)))
	}))
	defer srv.Close()

	out, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", true)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 4}`, out)
}

func TestInvokeExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.EqualValues(t, 3, calls.Load())
}

func TestInvokeSucceedsOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(chatResponse(`{"ok": true}`)))
	}))
	defer srv.Close()

	out, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", true)
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.EqualValues(t, 2, calls.Load())
}

func TestInvokeRetriesOnEmptyContent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(chatResponse("")))
	}))
	defer srv.Close()

	_, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
	assert.EqualValues(t, 3, calls.Load())
}

func TestInvokeRetriesOnMalformedJSON(t *testing.T) {
	// The first-to-last brace span over two objects is not valid JSON, so
	// the attempt fails under the same policy as a transport error.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(chatResponse(`noise {"a":1} trailing {"b":2} noise`)))
	}))
	defer srv.Close()

	_, err := newTestInvoker(srv.URL).Invoke(context.Background(), "system", "user", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JSON")
	assert.EqualValues(t, 3, calls.Load())
}

func TestInvokeJSONDecodesTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse(`result below {"skills":["go","sql"]}`)))
	}))
	defer srv.Close()

	var target struct {
		Skills []string `json:"skills"`
	}
	err := newTestInvoker(srv.URL).InvokeJSON(context.Background(), "system", "user", &target)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql"}, target.Skills)
}

func TestBackoffDelaySchedule(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(time.Second, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(time.Second, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(time.Second, 3))
}
