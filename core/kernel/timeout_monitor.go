package kernel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/pkg/clock"
)

// TimeoutMonitor terminates transactions that have been open for longer than
// the configured timeout.
type TimeoutMonitor struct {
	pool     *KernelTransactions
	timeout  time.Duration
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

// NewTimeoutMonitor checks pool every interval for transactions older than timeout.
func NewTimeoutMonitor(pool *KernelTransactions, timeout, interval time.Duration, clk clock.Clock, logger *zap.Logger) *TimeoutMonitor {
	return &TimeoutMonitor{
		pool:     pool,
		timeout:  timeout,
		interval: interval,
		clock:    clk,
		logger:   logger.Named("timeout_monitor"),
	}
}

// Check terminates every expired transaction once and returns how many it
// terminated.
func (m *TimeoutMonitor) Check() int {
	now := m.clock.Now()
	terminated := 0
	for _, h := range m.pool.ActiveTransactions() {
		info := h.Info()
		if !info.Open || info.TerminationReason != "" {
			continue
		}
		age := now.Sub(info.StartTime)
		if age <= m.timeout {
			continue
		}
		if h.MarkForTermination(transaction.ReasonTimedOut) {
			terminated++
			m.logger.Info("transaction timed out",
				zap.Stringer("handle", h.ID), zap.Duration("age", age), zap.Duration("timeout", m.timeout))
		}
	}
	return terminated
}

// Run checks on every interval until ctx is done.
func (m *TimeoutMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}
