// Package storage turns transaction-local changes into the ordered commands a
// commit persists, and defines the representation handed to the commit
// pipeline.
package storage

import (
	"time"

	"github.com/yan96in/neo4j/core/txstate"
)

// CommandKind identifies what a Command does when applied.
type CommandKind uint8

const (
	CommandSchemaIndex CommandKind = iota + 1
	CommandNodeCreate
	CommandNodeDelete
	CommandLabelAdd
	CommandRelationshipCreate
	CommandRelationshipDelete
	CommandPropertySet
	CommandPropertyRemove
	CommandAuxIndexAdd
	CommandAuxIndexRemove
)

func (k CommandKind) String() string {
	switch k {
	case CommandSchemaIndex:
		return "SCHEMA_INDEX"
	case CommandNodeCreate:
		return "NODE_CREATE"
	case CommandNodeDelete:
		return "NODE_DELETE"
	case CommandLabelAdd:
		return "LABEL_ADD"
	case CommandRelationshipCreate:
		return "RELATIONSHIP_CREATE"
	case CommandRelationshipDelete:
		return "RELATIONSHIP_DELETE"
	case CommandPropertySet:
		return "PROPERTY_SET"
	case CommandPropertyRemove:
		return "PROPERTY_REMOVE"
	case CommandAuxIndexAdd:
		return "AUX_INDEX_ADD"
	case CommandAuxIndexRemove:
		return "AUX_INDEX_REMOVE"
	default:
		return "UNKNOWN"
	}
}

// Command is one logical change. Only the fields relevant to Kind are set.
type Command struct {
	Kind           CommandKind `json:"kind"`
	NodeID         uint64      `json:"node,omitempty"`
	RelationshipID uint64      `json:"rel,omitempty"`
	StartNode      uint64      `json:"start,omitempty"`
	EndNode        uint64      `json:"end,omitempty"`
	Type           string      `json:"type,omitempty"`
	Label          string      `json:"label,omitempty"`
	Key            string      `json:"key,omitempty"`
	Value          any         `json:"value,omitempty"`
	Index          string      `json:"index,omitempty"`
}

// Changes is everything a transaction wants to persist.
type Changes struct {
	State *txstate.TxState
	Aux   *txstate.AuxIndexState
}

func (c Changes) HasChanges() bool {
	return (c.State != nil && c.State.HasChanges()) || (c.Aux != nil && c.Aux.HasChanges())
}

// TransactionRepresentation is a committable transaction: its commands plus
// the header fields captured over its life.
type TransactionRepresentation struct {
	Commands                     []Command
	TimeStarted                  time.Time
	TimeCommitted                time.Time
	LatestCommittedTxWhenStarted uint64
}

// TransactionRecord is the persisted form of a committed transaction.
type TransactionRecord struct {
	TxID                         uint64    `json:"tx_id"`
	TimeStarted                  int64     `json:"time_started"`
	TimeCommitted                int64     `json:"time_committed"`
	LatestCommittedTxWhenStarted uint64    `json:"latest_committed_tx_when_started"`
	Commands                     []Command `json:"commands"`
}

// NewRecord stamps rep with its assigned transaction id.
func NewRecord(txID uint64, rep *TransactionRepresentation) TransactionRecord {
	return TransactionRecord{
		TxID:                         txID,
		TimeStarted:                  rep.TimeStarted.UnixNano(),
		TimeCommitted:                rep.TimeCommitted.UnixNano(),
		LatestCommittedTxWhenStarted: rep.LatestCommittedTxWhenStarted,
		Commands:                     rep.Commands,
	}
}

// Representation rebuilds the header and commands of a persisted record.
func (r TransactionRecord) Representation() *TransactionRepresentation {
	return &TransactionRepresentation{
		Commands:                     r.Commands,
		TimeStarted:                  time.Unix(0, r.TimeStarted),
		TimeCommitted:                time.Unix(0, r.TimeCommitted),
		LatestCommittedTxWhenStarted: r.LatestCommittedTxWhenStarted,
	}
}
