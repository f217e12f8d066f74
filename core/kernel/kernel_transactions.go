// Package kernel owns the pool of reusable kernel transactions: admission,
// reuse, listing, termination and shutdown.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/yan96in/neo4j/core/locking"
	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/pkg/clock"
)

var (
	ErrTooManyTransactions = errors.New("maximum number of concurrent transactions reached")
	ErrShutdown            = errors.New("kernel is shut down")
)

// Config bounds how many transactions may be open and how fast they may begin.
type Config struct {
	// MaxTransactions caps the number of concurrently open transactions.
	MaxTransactions int `yaml:"max_transactions"`
	// TransactionTimeout terminates transactions open longer than this. Zero
	// disables the timeout monitor.
	TransactionTimeout   time.Duration `yaml:"transaction_timeout"`
	TimeoutCheckInterval time.Duration `yaml:"timeout_check_interval"`
	// StartRate is the number of transactions that may begin per second.
	// Zero means unlimited.
	StartRate  float64 `yaml:"start_rate"`
	StartBurst int     `yaml:"start_burst"`
}

type slot struct {
	tx     *transaction.KernelTransaction
	handle *Handle // nil while the slot is free
}

// KernelTransactions is the pool every transaction is taken from and released
// back to. Instances are created lazily and never discarded.
type KernelTransactions struct {
	cfg      Config
	pipeline transaction.CommitPipeline
	monitor  transaction.Monitor
	locks    *locking.Manager
	clock    clock.Clock
	limiter  *rate.Limiter
	logger   *zap.Logger

	mu       sync.Mutex
	slots    map[*transaction.KernelTransaction]*slot
	free     []*slot
	active   int
	shutdown bool
	drained  chan struct{} // closed when the last transaction is released after shutdown
}

var _ transaction.Releaser = (*KernelTransactions)(nil)

// New creates an empty pool. locks may be nil, in which case transactions
// take no locks.
func New(cfg Config, pipeline transaction.CommitPipeline, monitor transaction.Monitor, locks *locking.Manager, clk clock.Clock, logger *zap.Logger) *KernelTransactions {
	k := &KernelTransactions{
		cfg:      cfg,
		pipeline: pipeline,
		monitor:  monitor,
		locks:    locks,
		clock:    clk,
		logger:   logger.Named("kernel"),
		slots:    make(map[*transaction.KernelTransaction]*slot),
	}
	if cfg.StartRate > 0 {
		k.limiter = rate.NewLimiter(rate.Limit(cfg.StartRate), cfg.StartBurst)
	}
	return k
}

// NewInstance hands out an initialized transaction. It waits for the start
// rate limiter, and fails at once when the pool is at capacity.
func (k *KernelTransactions) NewInstance(ctx context.Context, txType transaction.Type, mode transaction.AccessMode) (*Handle, error) {
	if k.isShutdown() {
		return nil, ErrShutdown
	}
	if k.limiter != nil {
		if err := k.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for transaction start: %w", err)
		}
	}

	s, err := k.acquireSlot()
	if err != nil {
		return nil, err
	}

	var lockClient transaction.LockClient = locking.NoOpClient{}
	if k.locks != nil {
		lockClient = k.locks.NewClient()
	}
	if err := s.tx.Initialize(k.pipeline.LastCommittedTransactionID(), lockClient, txType, mode); err != nil {
		lockClient.Close()
		k.returnSlot(s)
		return nil, err
	}
	k.monitor.TransactionStarted()

	h := &Handle{
		ID:         uuid.New(),
		tx:         s.tx,
		reuseCount: s.tx.ReuseCount(),
	}

	k.mu.Lock()
	s.handle = h
	shutdown := k.shutdown
	k.mu.Unlock()

	// Shutdown began while this transaction was being set up.
	if shutdown {
		h.MarkForTermination(transaction.ReasonDatabaseShutdown)
	}
	return h, nil
}

func (k *KernelTransactions) acquireSlot() (*slot, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.shutdown {
		return nil, ErrShutdown
	}
	if k.active >= k.cfg.MaxTransactions {
		k.logger.Warn("transaction pool exhausted", zap.Int("max_transactions", k.cfg.MaxTransactions))
		return nil, ErrTooManyTransactions
	}
	k.active++

	if n := len(k.free); n > 0 {
		s := k.free[n-1]
		k.free = k.free[:n-1]
		return s, nil
	}
	s := &slot{tx: transaction.New(k.pipeline, k.monitor, k.clock, k, k.logger)}
	k.slots[s.tx] = s
	return s, nil
}

func (k *KernelTransactions) returnSlot(s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.releaseLocked(s)
}

func (k *KernelTransactions) releaseLocked(s *slot) {
	s.handle = nil
	k.free = append(k.free, s)
	k.active--
	if k.shutdown && k.active == 0 && k.drained != nil {
		close(k.drained)
		k.drained = nil
	}
}

// Release takes a closed transaction back. The transaction calls it exactly
// once at the end of every Close.
func (k *KernelTransactions) Release(tx *transaction.KernelTransaction) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[tx]
	if !ok {
		k.logger.Warn("release of a transaction that does not belong to this pool")
		return
	}
	if s.handle != nil {
		s.handle.committedTxID.Store(tx.CommittedTxID())
	}
	k.releaseLocked(s)
}

// ActiveTransactions returns the handles of every open transaction.
func (k *KernelTransactions) ActiveTransactions() []*Handle {
	k.mu.Lock()
	defer k.mu.Unlock()

	handles := make([]*Handle, 0, k.active)
	for _, s := range k.slots {
		if s.handle != nil {
			handles = append(handles, s.handle)
		}
	}
	return handles
}

// Lookup finds an open transaction by its handle id.
func (k *KernelTransactions) Lookup(id uuid.UUID) (*Handle, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, s := range k.slots {
		if s.handle != nil && s.handle.ID == id {
			return s.handle, true
		}
	}
	return nil, false
}

// ActiveCount is the number of transactions handed out and not yet released.
func (k *KernelTransactions) ActiveCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// Capacity is the number of pooled instances created so far.
func (k *KernelTransactions) Capacity() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// TerminateAll marks every open transaction for termination and returns how
// many marks took effect.
func (k *KernelTransactions) TerminateAll(reason transaction.Reason) int {
	n := 0
	for _, h := range k.ActiveTransactions() {
		if h.MarkForTermination(reason) {
			n++
		}
	}
	if n > 0 {
		k.logger.Info("terminated transactions", zap.Int("count", n), zap.Stringer("reason", reason))
	}
	return n
}

// Shutdown refuses new transactions, terminates the open ones and waits for
// their owners to close them or for ctx to end.
func (k *KernelTransactions) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	k.shutdown = true
	var drained chan struct{}
	if k.active > 0 {
		if k.drained == nil {
			k.drained = make(chan struct{})
		}
		drained = k.drained
	}
	k.mu.Unlock()

	k.TerminateAll(transaction.ReasonDatabaseShutdown)
	if drained == nil {
		return nil
	}

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %d open transactions: %w", k.ActiveCount(), ctx.Err())
	}
}

func (k *KernelTransactions) isShutdown() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.shutdown
}
