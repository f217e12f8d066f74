// Package monitor provides the transaction.Monitor implementations the kernel
// reports to: OpenTelemetry metrics, structured logs, plain counters, and a
// fan-out over several of them.
package monitor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yan96in/neo4j/core/transaction"
	internaltelemetry "github.com/yan96in/neo4j/internal/telemetry"
)

var (
	writeAttr = metric.WithAttributes(attribute.Bool("write", true))
	readAttr  = metric.WithAttributes(attribute.Bool("write", false))
)

func kindAttr(isWrite bool) metric.MeasurementOption {
	if isWrite {
		return writeAttr
	}
	return readAttr
}

// Metrics records transaction events as OpenTelemetry measurements.
type Metrics struct {
	metrics *internaltelemetry.TransactionMetrics
}

var _ transaction.Monitor = (*Metrics)(nil)

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m, err := internaltelemetry.NewTransactionMetrics(meter)
	if err != nil {
		return nil, err
	}
	return &Metrics{metrics: m}, nil
}

func (m *Metrics) TransactionStarted() {
	ctx := context.Background()
	m.metrics.StartedCounter.Add(ctx, 1)
	m.metrics.ActiveUpDownCounter.Add(ctx, 1)
}

func (m *Metrics) TransactionFinished(committed, isWrite bool) {
	ctx := context.Background()
	if committed {
		m.metrics.CommittedCounter.Add(ctx, 1, kindAttr(isWrite))
	} else {
		m.metrics.RolledBackCounter.Add(ctx, 1, kindAttr(isWrite))
	}
	m.metrics.ActiveUpDownCounter.Add(ctx, -1)
}

func (m *Metrics) TransactionTerminated(isWrite bool) {
	m.metrics.TerminatedCounter.Add(context.Background(), 1, kindAttr(isWrite))
}

func (m *Metrics) UpgradeToWriteTransaction() {
	m.metrics.WriteUpgradesCounter.Add(context.Background(), 1)
}
