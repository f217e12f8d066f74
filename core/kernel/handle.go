package kernel

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yan96in/neo4j/core/transaction"
)

// Handle is one logical transaction taken from the pool. The pooled instance
// behind it is reused after Close, so a handle remembers the reuse count it
// was issued for and never affects a later transaction.
//
// Owner methods (statements, Success, Failure, Close) must be called from a
// single goroutine. MarkForTermination, IsOpen and Info are safe anywhere.
type Handle struct {
	ID         uuid.UUID
	tx         *transaction.KernelTransaction
	reuseCount int

	closed        bool
	committedTxID atomic.Uint64
}

// ReuseCount identifies the logical transaction this handle was issued for.
func (h *Handle) ReuseCount() int {
	return h.reuseCount
}

// MarkForTermination terminates this logical transaction if it is still open.
func (h *Handle) MarkForTermination(reason transaction.Reason) bool {
	return h.tx.MarkForTerminationIfReuse(h.reuseCount, reason)
}

// IsOpen reports whether this logical transaction is still active.
func (h *Handle) IsOpen() bool {
	info := h.tx.Info()
	return info.Open && info.ReuseCount == h.reuseCount
}

// Info describes the transaction. It reports a closed transaction once the
// pooled instance has moved on.
func (h *Handle) Info() transaction.Info {
	info := h.tx.Info()
	if info.ReuseCount != h.reuseCount {
		return transaction.Info{ReuseCount: h.reuseCount}
	}
	return info
}

// AcquireStatement opens a statement on the transaction.
func (h *Handle) AcquireStatement() (*transaction.Statement, error) {
	if h.closed {
		return nil, transaction.ErrTransactionClosed
	}
	return h.tx.AcquireStatement()
}

// WithStatement runs fn with a statement that is released afterwards.
func (h *Handle) WithStatement(fn func(*transaction.Statement) error) error {
	if h.closed {
		return transaction.ErrTransactionClosed
	}
	return h.tx.WithStatement(fn)
}

// Success marks the transaction to be committed on Close.
func (h *Handle) Success() {
	if !h.closed {
		h.tx.Success()
	}
}

// Failure marks the transaction to be rolled back on Close.
func (h *Handle) Failure() {
	if !h.closed {
		h.tx.Failure()
	}
}

// Close ends the transaction and returns it to the pool. A second Close
// returns ErrTransactionClosed without touching the pooled instance.
func (h *Handle) Close() error {
	if h.closed {
		return transaction.ErrTransactionClosed
	}
	h.closed = true
	return h.tx.Close()
}

// CommittedTxID is the id the transaction committed under, or 0 when it did
// not commit or has not been closed.
func (h *Handle) CommittedTxID() uint64 {
	return h.committedTxID.Load()
}
