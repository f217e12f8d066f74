// Package commit assigns transaction ids and makes transactions durable by
// handing their records to an Appender (the local WAL or the raft log).
package commit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/storage"
)

// Appender durably stores a committed transaction record. It must not write
// anything once ctx is done.
type Appender interface {
	AppendTransaction(ctx context.Context, rec storage.TransactionRecord) error
}

// Process serializes commits: reserve an id, append, publish.
type Process struct {
	ids      *IDStore
	appender Appender
	tracer   trace.Tracer
	logger   *zap.Logger
}

func NewProcess(ids *IDStore, appender Appender, tracer trace.Tracer, logger *zap.Logger) *Process {
	return &Process{
		ids:      ids,
		appender: appender,
		tracer:   tracer,
		logger:   logger.Named("commit"),
	}
}

// Commit appends rep and returns its transaction id. A ctx cancelled before
// the append leaves the log and the id sequence untouched.
func (p *Process) Commit(ctx context.Context, rep *storage.TransactionRepresentation) (uint64, error) {
	ctx, span := p.tracer.Start(ctx, "commit.Process.Commit",
		trace.WithAttributes(attribute.Int("tx.commands", len(rep.Commands))))
	defer span.End()

	id := p.ids.Reserve()
	span.SetAttributes(attribute.Int64("tx.id", int64(id)))

	if err := ctx.Err(); err != nil {
		p.ids.Abandon()
		span.SetStatus(codes.Error, "cancelled before append")
		return 0, err
	}

	if err := p.appender.AppendTransaction(ctx, storage.NewRecord(id, rep)); err != nil {
		p.ids.Abandon()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		p.logger.Warn("failed to append transaction", zap.Uint64("tx_id", id), zap.Error(err))
		return 0, fmt.Errorf("append transaction %d: %w", id, err)
	}

	p.ids.Committed(id)
	span.SetStatus(codes.Ok, "")
	return id, nil
}

func (p *Process) LastCommittedTransactionID() uint64 {
	return p.ids.LastCommittedTransactionID()
}
