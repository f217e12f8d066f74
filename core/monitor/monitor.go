package monitor

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/transaction"
)

// Logging writes every transaction event as a debug log entry.
type Logging struct {
	logger *zap.Logger
}

func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger.Named("tx_monitor")}
}

func (l *Logging) TransactionStarted() {
	l.logger.Debug("transaction started")
}

func (l *Logging) TransactionFinished(committed, isWrite bool) {
	l.logger.Debug("transaction finished", zap.Bool("committed", committed), zap.Bool("write", isWrite))
}

func (l *Logging) TransactionTerminated(isWrite bool) {
	l.logger.Debug("transaction terminated", zap.Bool("write", isWrite))
}

func (l *Logging) UpgradeToWriteTransaction() {
	l.logger.Debug("transaction upgraded to write")
}

// Stats is a snapshot of Counters.
type Stats struct {
	Started       int64 `json:"started"`
	Committed     int64 `json:"committed"`
	RolledBack    int64 `json:"rolled_back"`
	Terminated    int64 `json:"terminated"`
	WriteUpgrades int64 `json:"write_upgrades"`
	Active        int64 `json:"active"`
}

// Counters keeps running totals that can be read at any time.
type Counters struct {
	started, committed, rolledBack, terminated, upgrades atomic.Int64
}

func (c *Counters) TransactionStarted() { c.started.Add(1) }

func (c *Counters) TransactionFinished(committed, _ bool) {
	if committed {
		c.committed.Add(1)
	} else {
		c.rolledBack.Add(1)
	}
}

func (c *Counters) TransactionTerminated(bool) { c.terminated.Add(1) }
func (c *Counters) UpgradeToWriteTransaction() { c.upgrades.Add(1) }

func (c *Counters) Stats() Stats {
	s := Stats{
		Started:       c.started.Load(),
		Committed:     c.committed.Load(),
		RolledBack:    c.rolledBack.Load(),
		Terminated:    c.terminated.Load(),
		WriteUpgrades: c.upgrades.Load(),
	}
	s.Active = s.Started - s.Committed - s.RolledBack
	return s
}

// Composite forwards every event to each of its monitors, in order.
type Composite []transaction.Monitor

func (c Composite) TransactionStarted() {
	for _, m := range c {
		m.TransactionStarted()
	}
}

func (c Composite) TransactionFinished(committed, isWrite bool) {
	for _, m := range c {
		m.TransactionFinished(committed, isWrite)
	}
}

func (c Composite) TransactionTerminated(isWrite bool) {
	for _, m := range c {
		m.TransactionTerminated(isWrite)
	}
}

func (c Composite) UpgradeToWriteTransaction() {
	for _, m := range c {
		m.UpgradeToWriteTransaction()
	}
}
