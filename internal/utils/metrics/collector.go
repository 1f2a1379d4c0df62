// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

const DefaultNamespace = "yozoon"

// Collector управляет набором метрик продажи. У каждого коллектора свой
// registry, поэтому в тестах их можно создавать сколько угодно.
type Collector struct {
	registry *prometheus.Registry

	instructions        *prometheus.CounterVec
	instructionDuration *prometheus.HistogramVec
	programErrors       *prometheus.CounterVec
	events              *prometheus.CounterVec
	solVolume           *prometheus.CounterVec
	tokenVolume         *prometheus.CounterVec
	referralPaid        prometheus.Counter
	price               prometheus.Gauge
	solRaised           prometheus.Gauge
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Instructions executed, by outcome",
		}, []string{"instruction", "status"}),
		instructionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "instruction_duration_seconds",
			Help:      "Time from building an instruction to its outcome",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"instruction"}),
		programErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "program_errors_total",
			Help:      "Rejected instructions by program error name",
		}, []string{"error"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Program events observed",
		}, []string{"type"}),
		solVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sol_volume_lamports_total",
			Help:      "Lamports paid in by buys and out by sells",
		}, []string{"side"}),
		tokenVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_volume_total",
			Help:      "Atomic token units issued by buys and redeemed by sells",
		}, []string{"side"}),
		referralPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_paid_lamports_total",
			Help:      "Lamports routed to referrers",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_lamports",
			Help:      "Last observed price per whole token",
		}),
		solRaised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sol_raised_lamports",
			Help:      "Raised SOL reported when the sale became eligible for migration",
		}),
	}
	c.registry.MustRegister(
		c.instructions,
		c.instructionDuration,
		c.programErrors,
		c.events,
		c.solVolume,
		c.tokenVolume,
		c.referralPaid,
		c.price,
		c.solRaised,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// HTTPHandler serves the registry in the Prometheus text format.
func (c *Collector) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordInstruction записывает метрики инструкции с учетом контекста
func (c *Collector) RecordInstruction(ctx context.Context, instruction string, duration time.Duration, err error) {
	status := "success"
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || (err != nil && ctx.Err() != nil):
		status = "cancelled"
	case err != nil:
		status = "failed"
		if perr, ok := sale.AsError(err); ok {
			c.programErrors.WithLabelValues(perr.Name).Inc()
		}
	}
	c.instructions.WithLabelValues(instruction, status).Inc()
	c.instructionDuration.WithLabelValues(instruction).Observe(duration.Seconds())
}

// Handle implements events.Handler so the collector can subscribe to a bus.
func (c *Collector) Handle(_ context.Context, ev events.Event) error {
	c.Observe(ev)
	return nil
}

// Publish implements events.Publisher.
func (c *Collector) Publish(ev events.Event) error {
	c.Observe(ev)
	return nil
}

// Observe folds a single event into the metrics.
func (c *Collector) Observe(ev events.Event) {
	c.events.WithLabelValues(string(ev.Type())).Inc()

	switch e := ev.(type) {
	case *events.TokenPurchaseEvent:
		c.solVolume.WithLabelValues("buy").Add(float64(e.SolAmount))
		c.tokenVolume.WithLabelValues("buy").Add(float64(e.TokensIssued))
		c.price.Set(float64(e.Price))
	case *events.TokenSaleEvent:
		c.solVolume.WithLabelValues("sell").Add(float64(e.SolReturned))
		c.tokenVolume.WithLabelValues("sell").Add(float64(e.TokenAmount))
		c.price.Set(float64(e.Price))
	case *events.PriceCalculatedEvent:
		c.price.Set(float64(e.Price))
	case *events.ReferralPaymentEvent:
		c.referralPaid.Add(float64(e.Amount))
	case *events.MigrationReadyEvent:
		c.solRaised.Set(float64(e.TotalSolRaised))
	}
}
