// Package metrics exposes trading cycle counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vadiminshakov/optibot/internal/domain"
)

const namespace = "optibot"

// Recorder counts cycles, signals and executions per underlying.
type Recorder struct {
	cycles        *prometheus.CounterVec
	signals       *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	executions    *prometheus.CounterVec
	confirmation  *prometheus.GaugeVec
}

// New creates a recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cycles_total", Help: "Trading cycles by outcome"},
			[]string{"symbol", "outcome"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "signals_total", Help: "Evaluated signals"},
			[]string{"symbol", "signal"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "confirmations_total", Help: "Signals that reached the confirmation threshold"},
			[]string{"symbol", "direction"},
		),
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "executions_total", Help: "Confirmed signal executions by status"},
			[]string{"symbol", "direction", "status"},
		),
		confirmation: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "confirmation_count", Help: "Consecutive matching signals of the pending streak"},
			[]string{"symbol"},
		),
	}

	for _, c := range []prometheus.Collector{r.cycles, r.signals, r.confirmations, r.executions, r.confirmation} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}

	return r, nil
}

func (r *Recorder) CycleCompleted(symbol string, outcome domain.CycleOutcome) {
	r.cycles.WithLabelValues(symbol, string(outcome)).Inc()
}

func (r *Recorder) SignalEvaluated(symbol string, signal domain.Signal) {
	r.signals.WithLabelValues(symbol, signal.String()).Inc()
}

func (r *Recorder) ConfirmationProgress(symbol string, count int) {
	r.confirmation.WithLabelValues(symbol).Set(float64(count))
}

func (r *Recorder) SignalConfirmed(symbol string, direction domain.Signal) {
	r.confirmations.WithLabelValues(symbol, direction.String()).Inc()
}

func (r *Recorder) TradeExecuted(symbol string, direction domain.Signal, status domain.ExecutionStatus) {
	r.executions.WithLabelValues(symbol, direction.String(), string(status)).Inc()
}

// Handler serves the metrics of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}
