package vision

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jarcoal/httpmock"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/httpclient"
	"github.com/tphakala/geocapture/internal/logger"
)

const (
	testAPIKey   = "AIzaSyTestKey123456"
	testEndpoint = "https://vision.test/v1"
	testModel    = "models/gemini-2.5-flash"
	testURL      = testEndpoint + "/" + testModel + ":generateContent"
)

// jpegHeader is enough for content sniffing.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func newTestClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	if cfg.APIKey == "" {
		cfg.APIKey = testAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = testEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = testModel
	}

	httpClient := httpclient.New(&httpclient.Config{Transport: transport})
	t.Cleanup(httpClient.Close)

	client, err := New(cfg,
		WithHTTPClient(httpClient),
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)))
	require.NoError(t, err)
	return client, transport
}

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestAnalyze_Success(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{})

	transport.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, testAPIKey, req.URL.Query().Get("key"))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

		var body generateRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		parts := body.Contents[0].Parts
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0].Text, "📍 Coordenadas GPS: 9.4, -84.1")
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "image/jpeg", parts[1].InlineData.MimeType)
		assert.NotEmpty(t, parts[1].InlineData.Data)

		return httpmock.NewJsonResponse(http.StatusOK, candidateResponse(
			"Here is the result: {\"category\":\"NATURE\",\"confidence\":0.91,\"tags\":[\"Volcanico\"]} thanks"))
	})

	result, err := client.Analyze(t.Context(), jpegHeader, GeoInput{
		Location: &Location{Latitude: 9.4, Longitude: -84.1},
	})
	require.NoError(t, err)

	md := ExtractMetadata(result)
	assert.Equal(t, "NATURE", md.Category)
	assert.InDelta(t, 0.91, md.Confidence, 1e-9)
	assert.Equal(t, []string{"volcanico"}, md.Tags)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestAnalyze_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"service unavailable", http.StatusServiceUnavailable, `{"error":{"status":"UNAVAILABLE"}}`, true},
		{"overloaded in body", http.StatusInternalServerError, `{"error":{"message":"The model is overloaded."}}`, true},
		{"unavailable in body", http.StatusBadGateway, `{"error":{"status":"UNAVAILABLE"}}`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"Invalid image"}}`, false},
		{"forbidden", http.StatusForbidden, `{"error":{"status":"PERMISSION_DENIED"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, transport := newTestClient(t, Config{})
			transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.status, verr.StatusCode)
			assert.Equal(t, tt.body, verr.Body)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Contains(t, err.Error(), fmt.Sprintf("(%d ", tt.status))
		})
	}
}

func TestAnalyze_EmptyResponse(t *testing.T) {
	t.Parallel()

	for name, payload := range map[string]any{
		"no candidates": map[string]any{"candidates": []any{}},
		"no parts":      map[string]any{"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{}}}}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			client, transport := newTestClient(t, Config{})
			transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, payload))

			_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
			require.ErrorIs(t, err, ErrEmptyResponse)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestAnalyze_MalformedResult(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{})
	transport.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, candidateResponse("I cannot help with that.")))

	_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
	require.ErrorIs(t, err, ErrMalformedResult)
	assert.False(t, IsTransient(err))
}

func TestAnalyze_TimeoutIsTransient(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{Timeout: 50 * time.Millisecond})
	transport.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsTransient(err))
}

func TestAnalyze_TransportErrorRedactsKey(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{})
	transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewErrorResponder(stderrors.New("connection refused")))

	_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testAPIKey)
	assert.False(t, IsTransient(err))
}

func TestAnalyze_EmptyImage(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{})
	_, err := client.Analyze(t.Context(), nil, GeoInput{})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestAnalyze_BreakerOpensOnTransientFailures(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{
		Breaker: BreakerConfig{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Minute},
	})
	transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, "overloaded"))

	for range 2 {
		_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
		require.True(t, IsTransient(err))
	}

	_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestAnalyze_PermanentFailuresDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{
		Breaker: BreakerConfig{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: time.Minute},
	})
	transport.RegisterResponder(http.MethodPost, testURL, httpmock.NewStringResponder(http.StatusBadRequest, "bad image"))

	for range 3 {
		_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestAnalyze_RateLimiterHonoursContext(t *testing.T) {
	t.Parallel()

	client, transport := newTestClient(t, Config{RateLimit: 0.001, RateBurst: 1})
	transport.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, candidateResponse(`{"category":"ART"}`)))

	_, err := client.Analyze(t.Context(), jpegHeader, GeoInput{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Analyze(ctx, jpegHeader, GeoInput{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestClassifyMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindTransient, ClassifyMessage("model is overloaded, try later"))
	assert.Equal(t, KindTransient, ClassifyMessage("status: UNAVAILABLE"))
	assert.Equal(t, KindTransient, ClassifyMessage("Gemini API error (503 Service Unavailable)"))
	assert.Equal(t, KindPermanent, ClassifyMessage("400 Bad Request"))
	assert.Equal(t, KindPermanent, ClassifyMessage("unavailable")) // case-sensitive

	assert.True(t, IsTransient(stderrors.New("upstream overloaded")))
	assert.False(t, IsTransient(stderrors.New("400 Bad Request")))
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &Error{Kind: KindTransient})))
}

func TestImageMIMEType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", imageMIMEType(jpegHeader))
	assert.Equal(t, "image/png", imageMIMEType([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "image/jpeg", imageMIMEType([]byte(strings.Repeat("x", 16))))
}
