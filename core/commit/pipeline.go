package commit

import (
	"context"

	"github.com/yan96in/neo4j/core/storage"
)

// Pipeline joins command creation and the commit process into the single
// collaborator a kernel transaction commits through.
type Pipeline struct {
	engine  *storage.Engine
	process *Process
}

func NewPipeline(engine *storage.Engine, process *Process) *Pipeline {
	return &Pipeline{engine: engine, process: process}
}

func (p *Pipeline) CreateCommands(ctx context.Context, changes storage.Changes, locker storage.ResourceLocker, txIDHint uint64) ([]storage.Command, error) {
	return p.engine.CreateCommands(ctx, changes, locker, txIDHint)
}

func (p *Pipeline) Commit(ctx context.Context, rep *storage.TransactionRepresentation) (uint64, error) {
	id, err := p.process.Commit(ctx, rep)
	if err != nil {
		return 0, err
	}
	p.engine.Applied(id, rep.Commands)
	return id, nil
}

func (p *Pipeline) LastCommittedTransactionID() uint64 {
	return p.process.LastCommittedTransactionID()
}
