package transaction

//go:generate mockgen -source=interfaces.go -destination=mock_interfaces_test.go -package=transaction

import (
	"context"

	"github.com/yan96in/neo4j/core/locking"
	"github.com/yan96in/neo4j/core/storage"
)

// LockClient holds the locks of one logical transaction. Stop may be called
// from any goroutine and must wake blocked acquisitions.
type LockClient interface {
	AcquireShared(ctx context.Context, res locking.ResourceID) error
	AcquireExclusive(ctx context.Context, res locking.ResourceID) error
	Stop()
	Close()
}

// CommitPipeline turns changes into commands and makes them durable.
type CommitPipeline interface {
	CreateCommands(ctx context.Context, changes storage.Changes, locker storage.ResourceLocker, txIDHint uint64) ([]storage.Command, error)
	Commit(ctx context.Context, rep *storage.TransactionRepresentation) (uint64, error)
	LastCommittedTransactionID() uint64
}

// Monitor receives life-cycle events. TransactionStarted is reported by the
// pool handing out the transaction, everything else by the transaction.
type Monitor interface {
	TransactionStarted()
	TransactionFinished(committed, isWrite bool)
	TransactionTerminated(isWrite bool)
	UpgradeToWriteTransaction()
}

// Releaser takes a closed transaction back for reuse.
type Releaser interface {
	Release(tx *KernelTransaction)
}
