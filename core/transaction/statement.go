package transaction

import (
	"context"
	"errors"

	"github.com/yan96in/neo4j/core/locking"
	"github.com/yan96in/neo4j/core/txstate"
)

var ErrStatementClosed = errors.New("statement is closed")

// Statement is the owner's handle for reading and changing transaction state.
// Every call re-checks termination.
type Statement struct {
	tx     *KernelTransaction
	reuse  int
	closed bool
}

// Close releases the statement. Closing twice, or after the transaction was
// closed, does nothing.
func (s *Statement) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.tx.state.Load().reuse == s.reuse && s.tx.openStatements > 0 {
		s.tx.openStatements--
	}
}

func (s *Statement) check() (*lifecycle, error) {
	if s.closed {
		return nil, ErrStatementClosed
	}
	cur := s.tx.state.Load()
	if cur.reuse != s.reuse || cur.phase != phaseActive {
		return nil, ErrTransactionNotActive
	}
	if cur.reason != "" {
		return nil, &TerminatedError{Reason: cur.reason}
	}
	return cur, nil
}

// CheckTermination returns the termination error, if any.
func (s *Statement) CheckTermination() error {
	_, err := s.check()
	return err
}

// TxState gives write access to node and relationship changes.
func (s *Statement) TxState() (*txstate.TxState, error) {
	cur, err := s.check()
	if err != nil {
		return nil, err
	}
	if !cur.accessMode.allowsWrites() {
		return nil, ErrWriteNotAllowed
	}
	return s.writableState(), nil
}

// SchemaState gives write access for schema changes; it needs AccessFull.
func (s *Statement) SchemaState() (*txstate.TxState, error) {
	cur, err := s.check()
	if err != nil {
		return nil, err
	}
	if !cur.accessMode.allowsSchema() {
		return nil, ErrSchemaNotAllowed
	}
	return s.writableState(), nil
}

// AuxIndexState gives write access to auxiliary index changes.
func (s *Statement) AuxIndexState() (*txstate.AuxIndexState, error) {
	cur, err := s.check()
	if err != nil {
		return nil, err
	}
	if !cur.accessMode.allowsWrites() {
		return nil, ErrWriteNotAllowed
	}
	s.tx.upgradeToWrite()
	if s.tx.auxState == nil {
		s.tx.auxState = txstate.NewAuxIndexState()
	}
	return s.tx.auxState, nil
}

func (s *Statement) writableState() *txstate.TxState {
	s.tx.upgradeToWrite()
	if s.tx.txState == nil {
		s.tx.txState = txstate.New()
	}
	return s.tx.txState
}

// AcquireShared takes a shared lock for the transaction.
func (s *Statement) AcquireShared(ctx context.Context, res locking.ResourceID) error {
	cur, err := s.check()
	if err != nil {
		return err
	}
	return s.lockError(cur.lockClient.AcquireShared(ctx, res))
}

// AcquireExclusive takes an exclusive lock for the transaction.
func (s *Statement) AcquireExclusive(ctx context.Context, res locking.ResourceID) error {
	cur, err := s.check()
	if err != nil {
		return err
	}
	return s.lockError(cur.lockClient.AcquireExclusive(ctx, res))
}

// lockError reports a lock wait cut short by termination as termination. A
// lock wait that timed out terminates the transaction.
func (s *Statement) lockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, locking.ErrAcquireTimeout) {
		s.tx.MarkForTermination(ReasonLockTimeout)
	}
	if reason, terminated := s.tx.TerminationReason(); terminated {
		return &TerminatedError{Reason: reason}
	}
	return err
}
