package transaction

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionActive     = errors.New("transaction is still active")
	ErrTransactionNotActive  = errors.New("transaction is not active")
	ErrTransactionClosed     = errors.New("transaction is already closed")
	ErrTransactionTerminated = errors.New("transaction has been terminated")
	ErrCommitFailure         = errors.New("transaction failed to commit")
	ErrWriteNotAllowed       = errors.New("write operations are not allowed for this transaction")
	ErrSchemaNotAllowed      = errors.New("schema operations are not allowed for this transaction")
)

// Reason says why a transaction was terminated.
type Reason string

const (
	ReasonTerminated       Reason = "Transaction.Terminated"
	ReasonTimedOut         Reason = "Transaction.TransactionTimedOut"
	ReasonDatabaseShutdown Reason = "Transaction.DatabaseShutdown"
	ReasonLockTimeout      Reason = "Transaction.LockAcquisitionTimeout"
)

func (r Reason) String() string { return string(r) }

// TerminatedError is returned by operations on, and by the close of, a
// transaction that was marked for termination.
type TerminatedError struct {
	Reason Reason
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("transaction terminated: %s", e.Reason)
}

func (e *TerminatedError) Is(target error) bool {
	return target == ErrTransactionTerminated
}

// CommitFailureError means close did not make the transaction durable.
type CommitFailureError struct {
	Msg string
	Err error
}

func (e *CommitFailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrCommitFailure, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", ErrCommitFailure, e.Msg, e.Err)
}

func (e *CommitFailureError) Is(target error) bool {
	return target == ErrCommitFailure
}

func (e *CommitFailureError) Unwrap() error {
	return e.Err
}
