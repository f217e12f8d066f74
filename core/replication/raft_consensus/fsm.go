// Package raftconsensus replicates committed transaction records through a
// raft log. A Node is a commit.Appender: a record is durable once raft has
// committed and applied it.
package raftconsensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/storage"
)

var ErrOutOfOrderTransaction = errors.New("transaction id does not follow the last applied transaction")

// ApplyFunc is called for every record the FSM applies, on every replica.
type ApplyFunc func(storage.TransactionRecord) error

// TransactionFSM is the replicated state: the last applied transaction and
// raft index. It implements raft.FSM.
type TransactionFSM struct {
	mu               sync.RWMutex
	lastTxID         uint64
	applied          uint64
	lastAppliedIndex uint64

	onApply ApplyFunc
	logger  *zap.Logger
}

// NewTransactionFSM returns an empty FSM. onApply may be nil.
func NewTransactionFSM(onApply ApplyFunc, logger *zap.Logger) *TransactionFSM {
	return &TransactionFSM{onApply: onApply, logger: logger.Named("fsm")}
}

// Apply is called by raft once a log entry is committed. The returned value
// is the future's Response: nil or an error.
func (f *TransactionFSM) Apply(entry *raft.Log) interface{} {
	var rec storage.TransactionRecord
	if err := json.Unmarshal(entry.Data, &rec); err != nil {
		f.logger.Error("failed to decode raft log entry", zap.Uint64("index", entry.Index), zap.Error(err))
		return fmt.Errorf("decode transaction record at index %d: %w", entry.Index, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastAppliedIndex = entry.Index
	if f.lastTxID != 0 && rec.TxID <= f.lastTxID {
		return fmt.Errorf("%w: got %d after %d", ErrOutOfOrderTransaction, rec.TxID, f.lastTxID)
	}
	if f.onApply != nil {
		if err := f.onApply(rec); err != nil {
			return fmt.Errorf("apply transaction %d: %w", rec.TxID, err)
		}
	}
	f.lastTxID = rec.TxID
	f.applied++
	return nil
}

func (f *TransactionFSM) LastTransactionID() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastTxID
}

func (f *TransactionFSM) AppliedCount() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.applied
}

type fsmState struct {
	LastTxID         uint64 `json:"last_tx_id"`
	Applied          uint64 `json:"applied"`
	LastAppliedIndex uint64 `json:"last_applied_index"`
}

func (f *TransactionFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{state: fsmState{
		LastTxID:         f.lastTxID,
		Applied:          f.applied,
		LastAppliedIndex: f.lastAppliedIndex,
	}}, nil
}

func (f *TransactionFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var state fsmState
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode FSM snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTxID = state.LastTxID
	f.applied = state.Applied
	f.lastAppliedIndex = state.LastAppliedIndex

	f.logger.Info("FSM state restored from snapshot", zap.Uint64("last_tx_id", state.LastTxID))
	return nil
}

type fsmSnapshot struct {
	state fsmState
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.state); err != nil {
		_ = sink.Cancel()
		return fmt.Errorf("failed to write FSM snapshot: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
