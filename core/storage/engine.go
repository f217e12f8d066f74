package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/yan96in/neo4j/core/locking"
)

var ErrConcurrentSchemaChange = errors.New("schema was modified by a transaction that committed after this one started")

// ResourceLocker is the lock context command creation runs under.
type ResourceLocker interface {
	AcquireExclusive(ctx context.Context, res locking.ResourceID) error
}

// Engine creates commands from transaction changes. It remembers the id of
// the last transaction that changed the schema so that schema changes based
// on a stale snapshot are rejected.
type Engine struct {
	lastSchemaTx atomic.Uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// CreateCommands generates the commands for changes in a fixed order: schema,
// node creation, labels, relationships, properties, node deletion, auxiliary
// index. Touched entities are locked exclusively through locker. txIDHint is
// the last committed transaction id observed when the transaction started.
func (e *Engine) CreateCommands(ctx context.Context, changes Changes, locker ResourceLocker, txIDHint uint64) ([]Command, error) {
	var commands []Command

	if s := changes.State; s != nil {
		if indexes := s.SchemaIndexes(); len(indexes) > 0 {
			if err := locker.AcquireExclusive(ctx, locking.SchemaResource(0)); err != nil {
				return nil, fmt.Errorf("lock schema: %w", err)
			}
			if last := e.lastSchemaTx.Load(); last > txIDHint {
				return nil, fmt.Errorf("%w: started at tx %d, schema changed at tx %d", ErrConcurrentSchemaChange, txIDHint, last)
			}
			for _, idx := range indexes {
				commands = append(commands, Command{Kind: CommandSchemaIndex, Label: idx.Label, Key: idx.Property})
			}
		}

		for _, id := range s.CreatedNodes() {
			commands = append(commands, Command{Kind: CommandNodeCreate, NodeID: id})
		}
		for _, l := range s.LabelChanges() {
			commands = append(commands, Command{Kind: CommandLabelAdd, NodeID: l.NodeID, Label: l.Label})
		}
		for _, r := range s.CreatedRelationships() {
			for _, node := range []uint64{r.StartNode, r.EndNode} {
				if s.NodeIsCreatedInThisTx(node) {
					continue
				}
				if err := locker.AcquireExclusive(ctx, locking.NodeResource(node)); err != nil {
					return nil, fmt.Errorf("lock relationship endpoint: %w", err)
				}
			}
			commands = append(commands, Command{
				Kind:           CommandRelationshipCreate,
				RelationshipID: r.ID,
				Type:           r.Type,
				StartNode:      r.StartNode,
				EndNode:        r.EndNode,
			})
		}
		for _, id := range s.DeletedRelationships() {
			if err := locker.AcquireExclusive(ctx, locking.RelationshipResource(id)); err != nil {
				return nil, fmt.Errorf("lock deleted relationship: %w", err)
			}
			commands = append(commands, Command{Kind: CommandRelationshipDelete, RelationshipID: id})
		}
		for _, p := range s.PropertyChanges() {
			if p.Removed {
				commands = append(commands, Command{Kind: CommandPropertyRemove, NodeID: p.NodeID, Key: p.Key})
				continue
			}
			commands = append(commands, Command{Kind: CommandPropertySet, NodeID: p.NodeID, Key: p.Key, Value: p.Value})
		}
		for _, id := range s.DeletedNodes() {
			if err := locker.AcquireExclusive(ctx, locking.NodeResource(id)); err != nil {
				return nil, fmt.Errorf("lock deleted node: %w", err)
			}
			commands = append(commands, Command{Kind: CommandNodeDelete, NodeID: id})
		}
	}

	if a := changes.Aux; a != nil {
		for _, c := range a.Changes() {
			kind := CommandAuxIndexAdd
			if c.Remove {
				kind = CommandAuxIndexRemove
			}
			commands = append(commands, Command{Kind: kind, Index: c.Index, Key: c.Key, Value: c.Value, NodeID: c.NodeID})
		}
	}

	return commands, nil
}

// Applied informs the engine that txID committed commands.
func (e *Engine) Applied(txID uint64, commands []Command) {
	for _, c := range commands {
		if c.Kind != CommandSchemaIndex {
			continue
		}
		for {
			last := e.lastSchemaTx.Load()
			if txID <= last || e.lastSchemaTx.CompareAndSwap(last, txID) {
				break
			}
		}
		return
	}
}
