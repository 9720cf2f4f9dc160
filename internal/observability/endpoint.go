package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/geocapture/internal/logger"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Endpoint serves the Prometheus scrape endpoint. It implements suture.Service.
type Endpoint struct {
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates the endpoint; listen is a host:port address.
func NewEndpoint(listen string, m *Metrics, log logger.Logger) (*Endpoint, error) {
	if listen == "" {
		return nil, fmt.Errorf("metrics listen address is empty")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if log == nil {
		log = logger.Global().Module("observability")
	}
	return &Endpoint{listenAddress: listen, metrics: m, log: log}, nil
}

// Serve runs the HTTP server until ctx is cancelled.
func (e *Endpoint) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.listenAddress, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("Metrics endpoint starting", logger.String("address", ln.Addr().String()))
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	e.log.Info("Stopping metrics endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	<-errCh
	return ctx.Err()
}

func (e *Endpoint) String() string {
	return "metrics-endpoint"
}
