// Package metrics provides the Prometheus registry and exposition endpoint
// for the unban tool. All metrics are defined in their respective packages
// (client, ratelimit, pagination, audit, unban) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the unban tool.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server exposes /metrics for the duration of a run.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
}

// NewServer creates a metrics server for addr (for example ":9090").
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.With().Str("component", "metrics").Logger(),
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.logger.Info().Msg("Metrics server stopping")
	return s.httpServer.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - discord_requests_total{route, status} (Counter): Total requests by route and HTTP status
//   - discord_request_duration_seconds{route} (Histogram): Request duration by route
//   - discord_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - discord_retries_total{error_class} (Counter): Retry attempts by error class
//   - discord_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - discord_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - discord_rate_limit_remaining{route} (Gauge): Requests remaining in the route's bucket
//   - discord_rate_limit_waits_total{scope} (Counter): Requests delayed until a bucket reset
//   - discord_rate_limit_hits_total{scope} (Counter): 429 responses by scope (route, global)
//
// Pagination Metrics (pkg/pagination):
//   - unban_ban_pages_fetched_total{result} (Counter): Ban pages fetched (page, empty, error)
//   - unban_ban_page_records (Histogram): Records per fetched page
//
// Audit Metrics (pkg/audit):
//   - unban_audit_files_created_total (Counter): Audit report files created
//   - unban_audit_lines_total (Counter): Lines appended to audit files
//   - unban_audit_errors_total{operation} (Counter): Audit errors (create, write, sync, close)
//
// Unban Metrics (pkg/unban):
//   - unban_attempts_total{outcome} (Counter): Remove-ban attempts (succeeded, failed)
//   - unban_attempt_duration_seconds (Histogram): Remove-ban attempt duration
//   - unban_users_unbanned_total (Counter): Users unbanned and recorded
//   - unban_batches_total (Counter): Non-empty batches processed
//   - unban_runs_total{mode, result} (Counter): Runs by mode (single, multi) and result
//
// Example Prometheus Queries:
//
//   # Unban Failure Rate
//   sum(rate(unban_attempts_total{outcome="failed"}[5m])) / sum(rate(unban_attempts_total[5m]))
//
//   # Global Rate Limit Hits
//   increase(discord_rate_limit_hits_total{scope="global"}[1h])
//
//   # P95 Remove-Ban Latency
//   histogram_quantile(0.95, rate(discord_request_duration_seconds_bucket{route="DELETE /guilds/{guild}/bans/{user}"}[5m]))
