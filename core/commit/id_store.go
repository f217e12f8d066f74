package commit

import (
	"sync"
	"sync/atomic"
)

// BaseTxID is the id of the implicit transaction that created an empty store.
const BaseTxID uint64 = 1

// IDStore hands out transaction ids and tracks the last committed one.
// Ids are assigned under a mutex that stays held until the transaction is
// either committed or abandoned, so committed ids never have gaps.
type IDStore struct {
	mu            sync.Mutex
	lastCommitted atomic.Uint64
}

// NewIDStore returns a store whose last committed id is last. A value below
// BaseTxID is raised to it.
func NewIDStore(last uint64) *IDStore {
	if last < BaseTxID {
		last = BaseTxID
	}
	s := &IDStore{}
	s.lastCommitted.Store(last)
	return s
}

// Reserve locks the store and returns the id the next commit will get. The
// caller must finish with exactly one of Committed or Abandon.
func (s *IDStore) Reserve() uint64 {
	s.mu.Lock()
	return s.lastCommitted.Load() + 1
}

// Committed publishes id as the last committed transaction and unlocks.
func (s *IDStore) Committed(id uint64) {
	s.lastCommitted.Store(id)
	s.mu.Unlock()
}

// Abandon unlocks without consuming the reserved id.
func (s *IDStore) Abandon() {
	s.mu.Unlock()
}

func (s *IDStore) LastCommittedTransactionID() uint64 {
	return s.lastCommitted.Load()
}
