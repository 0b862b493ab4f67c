package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/marcelsud/request-relay/relay"
)

/* OpenTelemetry delivery metrics exported in Prometheus format
 * The exporter registers with the default Prometheus registry, so the
 * management listener's /metrics endpoint picks everything up
 */

type Recorder struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	outcomes        metric.Int64Counter
	forwardDuration metric.Float64Histogram
	alertsSent      metric.Int64Counter
}

// NewRecorder creates the delivery metrics recorder.
func NewRecorder() (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"request-relay",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	r := &Recorder{
		meterProvider: meterProvider,
		meter:         meter,
	}

	if err := r.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return r, nil
}

func (r *Recorder) registerInstruments() error {
	var err error

	r.outcomes, err = r.meter.Int64Counter(
		"relay.delivery.outcomes",
		metric.WithDescription("Delivery invocations by terminal state"),
		metric.WithUnit("{deliveries}"),
	)
	if err != nil {
		return fmt.Errorf("creating outcome counter: %w", err)
	}

	r.forwardDuration, err = r.meter.Float64Histogram(
		"relay.forward.duration",
		metric.WithDescription("Duration of outbound forwarding exchanges"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating forward duration histogram: %w", err)
	}

	r.alertsSent, err = r.meter.Int64Counter(
		"relay.alerts.sent",
		metric.WithDescription("Alert notifications delivered"),
		metric.WithUnit("{alerts}"),
	)
	if err != nil {
		return fmt.Errorf("creating alert counter: %w", err)
	}

	return nil
}

// Outcome counts one delivery invocation ending in the given state.
func (r *Recorder) Outcome(state relay.State) {
	r.outcomes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("state", state.String())),
	)
}

// ForwardDuration records one outbound exchange.
func (r *Recorder) ForwardDuration(d time.Duration, status int) {
	r.forwardDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.Int("status", status)),
	)
}

// AlertSent counts one delivered alert.
func (r *Recorder) AlertSent() {
	r.alertsSent.Add(context.Background(), 1)
}

// Shutdown flushes the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.meterProvider.Shutdown(ctx)
}
