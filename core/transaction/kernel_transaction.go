// Package transaction implements the life cycle of a kernel transaction:
// initialization, statements, outcome resolution on close, and termination
// requested from any goroutine.
package transaction

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/locking"
	"github.com/yan96in/neo4j/core/storage"
	"github.com/yan96in/neo4j/core/txstate"
	"github.com/yan96in/neo4j/pkg/clock"
)

// AccessMode limits what a transaction may change.
type AccessMode uint8

const (
	AccessRead AccessMode = iota + 1
	AccessWrite
	// AccessFull also allows schema changes.
	AccessFull
)

func (m AccessMode) String() string {
	switch m {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	case AccessFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

func (m AccessMode) allowsWrites() bool { return m == AccessWrite || m == AccessFull }
func (m AccessMode) allowsSchema() bool { return m == AccessFull }

// ParseAccessMode accepts "read", "write" or "full" in any case.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(s) {
	case "read":
		return AccessRead, nil
	case "write":
		return AccessWrite, nil
	case "full":
		return AccessFull, nil
	default:
		return 0, fmt.Errorf("unknown access mode %q", s)
	}
}

// Type tells whether the user opened the transaction or the kernel did.
type Type uint8

const (
	TypeImplicit Type = iota + 1
	TypeExplicit
)

func (t Type) String() string {
	switch t {
	case TypeImplicit:
		return "implicit"
	case TypeExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

type phase uint8

const (
	phaseNotInitialized phase = iota
	phaseActive
	phaseClosing
	phaseClosed
)

// lifecycle is an immutable snapshot of everything another goroutine may
// observe or change. Every transition replaces the whole snapshot with a CAS.
type lifecycle struct {
	phase  phase
	reuse  int
	reason Reason
	// notify is set when a termination mark landed on an initialized
	// transaction; Close then owes one TransactionTerminated.
	notify     bool
	lockClient LockClient

	txType            Type
	accessMode        AccessMode
	startTime         time.Time
	lastCommittedTxID uint64
}

type inFlightCommit struct {
	reuse  int
	cancel context.CancelCauseFunc
}

// Info is a point-in-time view of a transaction, safe to take from any
// goroutine.
type Info struct {
	ReuseCount                   int
	Type                         Type
	AccessMode                   AccessMode
	StartTime                    time.Time
	LastCommittedTxIDWhenStarted uint64
	TerminationReason            Reason
	Open                         bool
}

// KernelTransaction is reused for many logical transactions. One owner
// goroutine calls Initialize, AcquireStatement, Success, Failure and Close;
// MarkForTermination and the read-only accessors may be called from anywhere.
type KernelTransaction struct {
	state    atomic.Pointer[lifecycle]
	inFlight atomic.Pointer[inFlightCommit]

	// Owned by the owner goroutine.
	outcome        outcome
	hasWritten     bool
	txState        *txstate.TxState
	auxState       *txstate.AuxIndexState
	committedTxID  uint64
	openStatements int

	pipeline CommitPipeline
	monitor  Monitor
	clock    clock.Clock
	releaser Releaser
	logger   *zap.Logger
}

// New returns a transaction that has never been initialized. releaser may be
// nil for a transaction that does not belong to a pool.
func New(pipeline CommitPipeline, monitor Monitor, clk clock.Clock, releaser Releaser, logger *zap.Logger) *KernelTransaction {
	tx := &KernelTransaction{
		pipeline: pipeline,
		monitor:  monitor,
		clock:    clk,
		releaser: releaser,
		logger:   logger.Named("transaction"),
	}
	tx.state.Store(&lifecycle{phase: phaseNotInitialized})
	return tx
}

// Initialize starts a new logical transaction on this instance.
func (tx *KernelTransaction) Initialize(lastCommittedTxID uint64, lockClient LockClient, txType Type, mode AccessMode) error {
	if lockClient == nil {
		lockClient = locking.NoOpClient{}
	}
	startTime := tx.clock.Now()
	for {
		cur := tx.state.Load()
		if cur.phase == phaseActive || cur.phase == phaseClosing {
			return ErrTransactionActive
		}
		next := &lifecycle{
			phase:             phaseActive,
			reuse:             cur.reuse,
			lockClient:        lockClient,
			txType:            txType,
			accessMode:        mode,
			startTime:         startTime,
			lastCommittedTxID: lastCommittedTxID,
		}
		if cur.phase == phaseClosed {
			next.reuse++
		}

		tx.outcome = outcomeNone
		tx.hasWritten = false
		tx.txState = nil
		tx.auxState = nil
		tx.committedTxID = 0
		tx.openStatements = 0

		if tx.state.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Success asks Close to commit.
func (tx *KernelTransaction) Success() {
	tx.outcome = tx.outcome.withSuccess()
}

// Failure asks Close to roll back.
func (tx *KernelTransaction) Failure() {
	tx.outcome = tx.outcome.withFailure()
}

// MarkForTermination terminates the current logical transaction. Only the
// first call wins and returns true; it stops the lock client and aborts a
// commit in flight. It is a no-op on a closed transaction.
func (tx *KernelTransaction) MarkForTermination(reason Reason) bool {
	return tx.markForTermination(-1, reason)
}

// MarkForTerminationIfReuse is MarkForTermination restricted to the logical
// transaction identified by reuseCount.
func (tx *KernelTransaction) MarkForTerminationIfReuse(reuseCount int, reason Reason) bool {
	return tx.markForTermination(reuseCount, reason)
}

func (tx *KernelTransaction) markForTermination(reuse int, reason Reason) bool {
	if reason == "" {
		reason = ReasonTerminated
	}
	for {
		cur := tx.state.Load()
		if cur.phase == phaseClosed || cur.reason != "" || (reuse >= 0 && cur.reuse != reuse) {
			return false
		}
		next := *cur
		next.reason = reason
		next.notify = cur.phase != phaseNotInitialized
		if !tx.state.CompareAndSwap(cur, &next) {
			continue
		}

		if next.lockClient != nil {
			next.lockClient.Stop()
		}
		if c := tx.inFlight.Load(); c != nil && c.reuse == next.reuse {
			c.cancel(&TerminatedError{Reason: reason})
		}
		tx.logger.Debug("transaction marked for termination",
			zap.Stringer("reason", reason), zap.Int("reuse_count", next.reuse))
		return true
	}
}

// ShouldBeTerminated reports whether the transaction has been marked for termination.
func (tx *KernelTransaction) ShouldBeTerminated() bool {
	return tx.state.Load().reason != ""
}

// TerminationReason returns the reason the transaction was marked with, if any.
func (tx *KernelTransaction) TerminationReason() (Reason, bool) {
	r := tx.state.Load().reason
	return r, r != ""
}

// ReuseCount is the number of times this instance has been closed and reinitialized.
func (tx *KernelTransaction) ReuseCount() int {
	return tx.state.Load().reuse
}

// IsOpen reports whether the transaction is active and not yet closing.
func (tx *KernelTransaction) IsOpen() bool {
	return tx.state.Load().phase == phaseActive
}

// IsClosed reports whether the last Close has completed.
func (tx *KernelTransaction) IsClosed() bool {
	return tx.state.Load().phase == phaseClosed
}

// StartTime is the clock reading taken by Initialize.
func (tx *KernelTransaction) StartTime() time.Time {
	return tx.state.Load().startTime
}

// AccessMode is the mode the transaction was initialized with.
func (tx *KernelTransaction) AccessMode() AccessMode {
	return tx.state.Load().accessMode
}

// Info returns a snapshot of the transaction for listings.
func (tx *KernelTransaction) Info() Info {
	s := tx.state.Load()
	return Info{
		ReuseCount:                   s.reuse,
		Type:                         s.txType,
		AccessMode:                   s.accessMode,
		StartTime:                    s.startTime,
		LastCommittedTxIDWhenStarted: s.lastCommittedTxID,
		TerminationReason:            s.reason,
		Open:                         s.phase == phaseActive,
	}
}

// CommittedTxID is the id the last Close committed under, or 0.
func (tx *KernelTransaction) CommittedTxID() uint64 {
	return tx.committedTxID
}

// OpenStatements is the number of statements acquired and not yet closed.
func (tx *KernelTransaction) OpenStatements() int {
	return tx.openStatements
}

// AcquireStatement is a termination checkpoint.
func (tx *KernelTransaction) AcquireStatement() (*Statement, error) {
	cur := tx.state.Load()
	if cur.reason != "" && cur.phase != phaseClosed {
		return nil, &TerminatedError{Reason: cur.reason}
	}
	if cur.phase != phaseActive {
		return nil, ErrTransactionNotActive
	}
	tx.openStatements++
	return &Statement{tx: tx, reuse: cur.reuse}, nil
}

// WithStatement runs fn with a statement that is released when fn returns.
func (tx *KernelTransaction) WithStatement(fn func(*Statement) error) error {
	s, err := tx.AcquireStatement()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (tx *KernelTransaction) upgradeToWrite() {
	if tx.hasWritten {
		return
	}
	tx.hasWritten = true
	tx.monitor.UpgradeToWriteTransaction()
}

// Close ends the logical transaction: it commits or rolls back as decided by
// Success, Failure and termination, reports to the monitor, releases the lock
// client and hands the instance back to its pool. The instance is always
// closed when Close returns, also when it returns an error.
func (tx *KernelTransaction) Close() error {
	closing, err := tx.beginClose()
	if err != nil {
		return err
	}

	action, err := resolve(tx.outcome, closing.reason)
	committed := false
	if action == actionCommit {
		if err = tx.commit(closing); err == nil {
			committed = true
		}
	}
	tx.finish(committed)
	return err
}

func (tx *KernelTransaction) beginClose() (*lifecycle, error) {
	for {
		cur := tx.state.Load()
		switch cur.phase {
		case phaseNotInitialized:
			return nil, ErrTransactionNotActive
		case phaseClosing, phaseClosed:
			return nil, ErrTransactionClosed
		}
		next := *cur
		next.phase = phaseClosing
		if tx.state.CompareAndSwap(cur, &next) {
			return &next, nil
		}
	}
}

func (tx *KernelTransaction) commit(closing *lifecycle) error {
	// Nothing has been appended yet, so a mark set since Close started wins.
	if reason, terminated := tx.TerminationReason(); terminated {
		return &TerminatedError{Reason: reason}
	}
	changes := storage.Changes{State: tx.txState, Aux: tx.auxState}
	if !changes.HasChanges() {
		return nil
	}
	if tx.txState != nil && len(tx.txState.SchemaIndexes()) > 0 && !closing.accessMode.allowsSchema() {
		return tx.commitError("schema changes need full access", ErrSchemaNotAllowed)
	}

	ctx, done := tx.commitContext(closing.reuse)
	defer done()

	commands, err := tx.pipeline.CreateCommands(ctx, changes, closing.lockClient, closing.lastCommittedTxID)
	if err != nil {
		return tx.commitError("could not create commands", err)
	}
	if reason, terminated := tx.TerminationReason(); terminated {
		return &TerminatedError{Reason: reason}
	}

	rep := &storage.TransactionRepresentation{
		Commands:                     commands,
		TimeStarted:                  closing.startTime,
		TimeCommitted:                tx.clock.Now(),
		LatestCommittedTxWhenStarted: closing.lastCommittedTxID,
	}
	id, err := tx.pipeline.Commit(ctx, rep)
	if err != nil {
		return tx.commitError("could not commit transaction", err)
	}
	tx.committedTxID = id
	return nil
}

// commitContext publishes a context MarkForTermination can cancel. The mark is
// re-checked after publishing so that one of the two sides always sees the
// other.
func (tx *KernelTransaction) commitContext(reuse int) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	tx.inFlight.Store(&inFlightCommit{reuse: reuse, cancel: cancel})
	if reason, terminated := tx.TerminationReason(); terminated {
		cancel(&TerminatedError{Reason: reason})
	}
	return ctx, func() {
		tx.inFlight.Store(nil)
		cancel(nil)
	}
}

func (tx *KernelTransaction) commitError(stage string, err error) error {
	if reason, terminated := tx.TerminationReason(); terminated {
		return &TerminatedError{Reason: reason}
	}
	tx.logger.Warn("transaction commit failed", zap.String("stage", stage), zap.Error(err))
	return &CommitFailureError{Msg: stage, Err: err}
}

// finish flips the transaction to closed, after which its termination state is
// final, then settles the lock client, the monitor and the pool.
func (tx *KernelTransaction) finish(committed bool) {
	var final *lifecycle
	for {
		cur := tx.state.Load()
		next := *cur
		next.phase = phaseClosed
		if tx.state.CompareAndSwap(cur, &next) {
			final = &next
			break
		}
	}

	// A terminated lock client was stopped by whoever terminated it.
	if final.reason == "" {
		final.lockClient.Stop()
	}
	final.lockClient.Close()

	isWrite := tx.hasWritten
	tx.monitor.TransactionFinished(committed, isWrite)
	if final.notify {
		tx.monitor.TransactionTerminated(isWrite)
	}

	tx.txState = nil
	tx.auxState = nil
	tx.openStatements = 0

	if tx.releaser != nil {
		tx.releaser.Release(tx)
	}
}
