package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("failed to close response body: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	client := New(nil)
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)

	client = New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "test/1.0"})
	assert.Equal(t, 5*time.Second, client.defaultTimeout)
	assert.Equal(t, "test/1.0", client.userAgent)

	client = New(&Config{})
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.NotEmpty(t, client.userAgent)
}

func TestDo_UserAgentAndBody(t *testing.T) {
	t.Parallel()

	var receivedUA string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	})
	client := newTestClient(t, &Config{UserAgent: "geocapture-test"})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "geocapture-test", receivedUA)
}

// The default timeout must stay live until the body has been read.
func TestDo_DefaultTimeoutKeepsBodyReadable(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("late body"))
	})
	client := newTestClient(t, &Config{DefaultTimeout: 2 * time.Second})

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer closeBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "late body", string(body))
}

func TestDo_DefaultTimeoutExpires(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, &Config{DefaultTimeout: 30 * time.Millisecond})

	resp, err := client.Get(context.Background(), server.URL)
	defer closeBody(t, resp)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_ContextDeadlineOverridesDefault(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, &Config{DefaultTimeout: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL)
	require.NoError(t, err)
	defer closeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_Cancelled(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := client.Get(ctx, server.URL)
	defer closeBody(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_NilRequest(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Do(t.Context(), nil)
	require.Error(t, err)
}

func TestDo_Hooks(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	client := newTestClient(t, nil)

	var before, after atomic.Int32
	var status int
	client.SetBeforeRequestHook(func(r *http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(r *http.Request, resp *http.Response, err error) {
		after.Add(1)
		if err == nil {
			status = resp.StatusCode
		}
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
	assert.Equal(t, http.StatusTeapot, status)
}

func TestDo_Concurrent(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
	})
	client := newTestClient(t, nil)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Go(func() {
			resp, err := client.Get(t.Context(), server.URL)
			if err != nil {
				errs <- err
				return
			}
			_ = resp.Body.Close()
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(n), count.Load())
}

func TestPost_EncodesJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	var got payload
	var contentType string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})
	client := newTestClient(t, nil)

	resp, err := client.Post(t.Context(), server.URL, "", payload{Name: "sunset"})
	require.NoError(t, err)
	defer closeBody(t, resp)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "sunset", got.Name)
}

func TestConfig_TransportInjection(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "https://example.invalid/ping",
		httpmock.NewStringResponder(http.StatusOK, "pong"))

	client := newTestClient(t, &Config{Transport: transport})

	resp, err := client.Get(t.Context(), "https://example.invalid/ping")
	require.NoError(t, err)
	defer closeBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}
