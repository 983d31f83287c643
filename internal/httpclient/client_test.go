package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0"})
		assert.Equal(t, 5*time.Second, client.defaultTimeout)
		assert.Equal(t, "TestAgent/1.0", client.userAgent)
	})

	t.Run("zero values use defaults", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{})
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.NotEmpty(t, client.userAgent)
	})
}

func TestClient_GetSetsHeaders(t *testing.T) {
	t.Parallel()

	var ua, accept string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("ok"))
	})

	client := newTestClientWithConfig(t, &Config{UserAgent: "trapwatch-test/1.0"})
	resp, err := client.Get(t.Context(), server.URL, "application/json")
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "trapwatch-test/1.0", ua)
	assert.Equal(t, "application/json", accept)
}

func TestClient_DefaultTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 50 * time.Millisecond})
	start := time.Now()
	resp, err := client.Get(context.Background(), server.URL, "")
	if resp != nil {
		closeResponseBody(t, resp)
	}
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_ContextDeadlineWins(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	})

	// the caller's deadline is longer than the default
	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 10 * time.Millisecond})
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL, "")
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestClient_AfterResponseHook(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	client := newTestClient(t)
	var calls atomic.Int32
	var status atomic.Int32
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, elapsed time.Duration, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		status.Store(int32(resp.StatusCode))
	})

	resp, err := client.Get(t.Context(), server.URL, "")
	require.NoError(t, err)
	closeResponseBody(t, resp)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(http.StatusTeapot), status.Load())
}

func TestClient_DoNilRequest(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Do(context.Background(), nil)
	require.Error(t, err)
}
