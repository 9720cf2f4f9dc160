// Package vision talks to the multimodal vision model: it builds the
// geographic context and prompt, sends the image, parses the embedded JSON
// result and classifies failures as transient or permanent.
package vision

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/httpclient"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1"
	DefaultModel    = "models/gemini-2.5-flash"
	DefaultTimeout  = 120 * time.Second

	maxErrorBodyBytes = 64 << 10
	maxResponseBytes  = 8 << 20
	fallbackMIMEType  = "image/jpeg"
)

// BreakerConfig controls the circuit breaker around the upstream call.
// Only transient failures count towards tripping it.
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Config holds the vision client settings.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	// Timeout bounds one upstream call, including reading the body
	Timeout time.Duration
	// RateLimit is the sustained request rate per second; 0 disables limiting
	RateLimit float64
	RateBurst int
	Breaker   BreakerConfig
}

// Client calls the generateContent endpoint. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Result]
	context *ContextBuilder
	metrics *metrics.VisionMetrics
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *httpclient.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithContextBuilder sets the builder used for the geographic context block.
func WithContextBuilder(b *ContextBuilder) Option {
	return func(c *Client) { c.context = b }
}

func WithMetrics(m *metrics.VisionMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client. The API key is required.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.Newf("vision API key is required").
			Component("vision").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.Global().Module("vision")
	}
	if c.http == nil {
		c.http = httpclient.New(&httpclient.Config{
			DefaultTimeout:        cfg.Timeout,
			ResponseHeaderTimeout: cfg.Timeout,
		})
	}
	c.http.SetAfterResponseHook(c.traceExchange)
	if c.context == nil {
		c.context = NewContextBuilder(nil)
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, c.metrics, c.log)
	}

	return c, nil
}

func newBreaker(cfg BreakerConfig, m *metrics.VisionMetrics, log logger.Logger) *gobreaker.CircuitBreaker[Result] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "vision",
		MaxRequests: max(cfg.HalfOpenRequests, 1),
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Permanent failures say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.SetBreakerState(int(to))
			log.Warn("Circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

// Analyze sends the image with a prompt built from geo and returns the parsed
// result document. Every error is a *Error.
func (c *Client) Analyze(ctx context.Context, image []byte, geo GeoInput) (Result, error) {
	if len(image) == 0 {
		return nil, permanent(fmt.Errorf("empty image"))
	}

	prompt := BuildPrompt(c.context.Lines(geo))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTransient, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	start := time.Now()
	var (
		result Result
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(func() (Result, error) {
			return c.generate(ctx, prompt, image)
		})
	} else {
		result, err = c.generate(ctx, prompt, image)
	}
	elapsed := time.Since(start)

	if err != nil {
		var verr *Error
		if !stderrors.As(err, &verr) {
			// breaker rejections
			verr = &Error{Kind: classifyTransport(err), Err: err}
		}
		status := metrics.StatusError
		if verr.Kind == KindTransient {
			status = metrics.StatusTransient
		}
		c.metrics.RecordRequest(status, elapsed.Seconds())
		return nil, verr
	}

	c.metrics.RecordRequest(metrics.StatusSuccess, elapsed.Seconds())
	c.log.Debug("Image analyzed", logger.Duration("elapsed", elapsed), logger.Int("fields", len(result)))
	return result, nil
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string, image []byte) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := generateRequest{
		Contents: []requestContent{{
			Parts: []requestPart{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: imageMIMEType(image),
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.Endpoint, c.cfg.Model, url.QueryEscape(c.cfg.APIKey))
	c.log.Debug("Sending vision request",
		logger.String("url", logger.RedactURL(endpoint)),
		logger.Int("image_bytes", len(image)))

	resp, err := c.http.Post(ctx, endpoint, "application/json", body)
	if err != nil {
		redactURLError(err)
		return nil, &Error{Kind: classifyTransport(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		text := string(raw)
		if readErr != nil {
			text = fmt.Sprintf("failed to read error body: %v", readErr)
		}
		verr := newStatusError(resp.StatusCode, text)
		c.log.Warn("Vision API returned error status",
			logger.Int("status", resp.StatusCode),
			logger.String("kind", verr.Kind.String()),
			logger.String("body", truncate(text, 512)))
		return nil, verr
	}

	var decoded generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindTransient, Err: ctxErr}
		}
		return nil, permanent(fmt.Errorf("decode response: %w", err))
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, permanent(ErrEmptyResponse)
	}

	text := decoded.Candidates[0].Content.Parts[0].Text
	c.log.Trace("Vision raw response", logger.String("text", text))

	result, err := ParseResultText(text)
	if err != nil {
		c.log.Warn("No valid JSON in vision response", logger.String("text", truncate(text, 512)))
		return nil, permanent(err)
	}
	return result, nil
}

// traceExchange logs each upstream round trip. The query string holds the
// API key and is never logged.
func (c *Client) traceExchange(req *http.Request, resp *http.Response, err error) {
	fields := []logger.Field{logger.String("path", req.URL.Path)}
	if resp != nil {
		fields = append(fields, logger.Int("status", resp.StatusCode))
	}
	if err != nil {
		fields = append(fields, logger.String("transport_error", classifyTransport(err).String()))
	}
	c.log.Trace("Vision HTTP exchange", fields...)
}

// imageMIMEType sniffs the image format, defaulting to JPEG.
func imageMIMEType(image []byte) string {
	mime := http.DetectContentType(image)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return fallbackMIMEType
}

// redactURLError strips the API key from the URL carried by transport errors.
func redactURLError(err error) {
	var uerr *url.Error
	if stderrors.As(err, &uerr) {
		uerr.URL = logger.RedactURL(uerr.URL)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
