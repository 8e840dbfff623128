// Package metrics exposes the daemon's prometheus counters on a
// dedicated registry so tests can assert on them in isolation.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal     *prometheus.CounterVec
	PollCyclesTotal   prometheus.Counter
	PollTimeoutsTotal prometheus.Counter
	LedgerErrorsTotal *prometheus.CounterVec
	RepliesTotal      prometheus.Counter
	DroppedMessages   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "commands_total",
			Help:      "Commands handled, by verb.",
		}, []string{"verb"}),
		PollCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "poll_cycles_total",
			Help:      "Ledger poll cycles executed while awaiting a response.",
		}),
		PollTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "poll_timeouts_total",
			Help:      "Awaits that exhausted their attempt budget.",
		}),
		LedgerErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "ledger_errors_total",
			Help:      "Ledger operation failures, by operation.",
		}, []string{"op"}),
		RepliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "replies_total",
			Help:      "Messages sent back to peers.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainchat",
			Name:      "dropped_messages_total",
			Help:      "Inbound messages dropped by rate limiting or full queues.",
		}),
	}
	reg.MustRegister(
		m.CommandsTotal,
		m.PollCyclesTotal,
		m.PollTimeoutsTotal,
		m.LedgerErrorsTotal,
		m.RepliesTotal,
		m.DroppedMessages,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the exposition endpoint until ctx is done. A closed
// listener on shutdown is not reported as an error.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
