package adapter_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/u2u-labs/nft-ingest/internal/adapter"
	"github.com/u2u-labs/nft-ingest/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// TestHTTPClient_Get_Success tests a plain GET with JSON decoding
func TestHTTPClient_Get_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"name":"Token #1"}`))
	}))
	defer server.Close()

	client := adapter.NewHTTPClient(5 * time.Second)

	var result struct {
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), server.URL, &result)
	require.NoError(t, err)
	assert.Equal(t, "Token #1", result.Name)
}

// TestHTTPClient_Get_RetriesRateLimit tests that a 429 is retried until the
// host recovers
func TestHTTPClient_Get_RetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := adapter.NewHTTPClient(5 * time.Second)

	var result map[string]bool
	err := client.Get(context.Background(), server.URL, &result)
	require.NoError(t, err)
	assert.True(t, result["ok"])
	assert.Equal(t, int32(3), hits.Load())
}

// TestHTTPClient_Get_ClientErrorNotRetried tests that a 4xx surfaces
// immediately as a StatusError
func TestHTTPClient_Get_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no such token", http.StatusNotFound)
	}))
	defer server.Close()

	client := adapter.NewHTTPClient(5 * time.Second)

	var result map[string]any
	err := client.Get(context.Background(), server.URL, &result)
	require.Error(t, err)
	assert.True(t, adapter.IsClientError(err))
	assert.Equal(t, int32(1), hits.Load())
}

// TestHTTPClient_Post_RewindsBodyOnRetry tests that a retried POST carries
// its full body again
func TestHTTPClient_Post_RewindsBodyOnRetry(t *testing.T) {
	const payload = `{"query":"{ tokens { id } }"}`

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, payload, string(body))

		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := adapter.NewHTTPClient(5 * time.Second)

	resp, err := client.Post(context.Background(), server.URL, "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{}}`, string(resp))
	assert.Equal(t, int32(2), hits.Load())
}

// TestIsClientError tests the status classification helper
func TestIsClientError(t *testing.T) {
	assert.True(t, adapter.IsClientError(&adapter.StatusError{Code: 404}))
	assert.True(t, adapter.IsClientError(&adapter.StatusError{Code: 410}))
	assert.False(t, adapter.IsClientError(&adapter.StatusError{Code: 502}))
	assert.False(t, adapter.IsClientError(context.DeadlineExceeded))
	assert.False(t, adapter.IsClientError(nil))
}
