package internaltelemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// TransactionMetrics holds the metric instruments for the transaction kernel.
type TransactionMetrics struct {
	StartedCounter       metric.Int64Counter
	CommittedCounter     metric.Int64Counter
	RolledBackCounter    metric.Int64Counter
	TerminatedCounter    metric.Int64Counter
	WriteUpgradesCounter metric.Int64Counter
	ActiveUpDownCounter  metric.Int64UpDownCounter
}

// NewTransactionMetrics creates and registers all the transaction metrics.
func NewTransactionMetrics(meter metric.Meter) (*TransactionMetrics, error) {
	startedCounter, err := meter.Int64Counter(
		"neo4j.transactions.started_total",
		metric.WithDescription("Total number of transactions started."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	committedCounter, err := meter.Int64Counter(
		"neo4j.transactions.committed_total",
		metric.WithDescription("Total number of transactions committed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	rolledBackCounter, err := meter.Int64Counter(
		"neo4j.transactions.rolled_back_total",
		metric.WithDescription("Total number of transactions rolled back."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	terminatedCounter, err := meter.Int64Counter(
		"neo4j.transactions.terminated_total",
		metric.WithDescription("Total number of transactions terminated."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	writeUpgradesCounter, err := meter.Int64Counter(
		"neo4j.transactions.write_upgrades_total",
		metric.WithDescription("Total number of read transactions that became write transactions."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	activeUpDownCounter, err := meter.Int64UpDownCounter(
		"neo4j.transactions.active",
		metric.WithDescription("Number of transactions currently open."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &TransactionMetrics{
		StartedCounter:       startedCounter,
		CommittedCounter:     committedCounter,
		RolledBackCounter:    rolledBackCounter,
		TerminatedCounter:    terminatedCounter,
		WriteUpgradesCounter: writeUpgradesCounter,
		ActiveUpDownCounter:  activeUpDownCounter,
	}, nil
}
