package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagerag/internal/domain"
)

func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url + "/", APIKey: "sk-test", MaxRetries: 3})
	require.NoError(t, err)
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	var mce *domain.MissingCredentialError
	assert.ErrorAs(t, err, &mce)
}

func TestEmbed_OpenAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, "hello", req.Input)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, c.Dimension())
}

func TestEmbed_OllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, vec)
}

func TestEmbed_RetriesWithRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5]}]}`))
		}
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	vec, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, vec)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 400 * time.Millisecond}, *slept)
}

func TestEmbed_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbed_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEmbedding)
	assert.Equal(t, int32(4), calls.Load())
	assert.Len(t, *slept, 3)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2))
	assert.Equal(t, 5*time.Second, retryDelay(10))
	assert.Equal(t, 5*time.Second, retryDelay(100))
}
