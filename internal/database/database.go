// Package database assembles a running transaction kernel from configuration:
// the commit log (local WAL or raft), the commit pipeline, the lock manager,
// the monitors and the transaction pool.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/commit"
	"github.com/yan96in/neo4j/core/kernel"
	"github.com/yan96in/neo4j/core/locking"
	"github.com/yan96in/neo4j/core/monitor"
	raftconsensus "github.com/yan96in/neo4j/core/replication/raft_consensus"
	"github.com/yan96in/neo4j/core/storage"
	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/core/write_engine/wal"
	"github.com/yan96in/neo4j/pkg/clock"
	"github.com/yan96in/neo4j/pkg/config"
)

// Options are the collaborators Open cannot build from the config alone.
type Options struct {
	Logger *zap.Logger
	// Meter is optional; without it no OpenTelemetry metrics are recorded.
	Meter  metric.Meter
	Tracer trace.Tracer
	Clock  clock.Clock
}

// Database is an open kernel.
type Database struct {
	Transactions *kernel.KernelTransactions
	Pipeline     *commit.Pipeline
	Locks        *locking.Manager
	Counters     *monitor.Counters

	log    *wal.LogManager
	node   *raftconsensus.Node
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Open recovers the commit log and starts the kernel. ctx bounds recovery.
func Open(ctx context.Context, cfg config.Config, opts Options) (*Database, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	logger := opts.Logger.Named("database")

	db := &Database{logger: logger}
	engine := storage.NewEngine()

	var appender commit.Appender
	var lastTxID uint64
	if cfg.Raft.Enabled {
		node, err := openRaft(ctx, cfg.Raft.Config, engine, opts.Logger)
		if err != nil {
			return nil, err
		}
		db.node, appender, lastTxID = node, node, node.LastTransactionID()
	} else {
		lm, err := openWAL(cfg.WAL, engine, opts.Logger)
		if err != nil {
			return nil, err
		}
		db.log, appender, lastTxID = lm, lm, lm.LastTransactionID()
	}

	ids := commit.NewIDStore(lastTxID)
	db.Pipeline = commit.NewPipeline(engine, commit.NewProcess(ids, appender, opts.Tracer, opts.Logger))
	db.Locks = locking.NewManager(opts.Logger, locking.WithAcquireTimeout(cfg.Locking.AcquireTimeout))
	db.Counters = &monitor.Counters{}

	monitors := monitor.Composite{db.Counters, monitor.NewLogging(opts.Logger)}
	if opts.Meter != nil {
		metrics, err := monitor.NewMetrics(opts.Meter)
		if err != nil {
			db.closeLog()
			return nil, fmt.Errorf("create transaction metrics: %w", err)
		}
		monitors = append(monitors, metrics)
	}

	db.Transactions = kernel.New(cfg.Kernel, db.Pipeline, monitors, db.Locks, opts.Clock, opts.Logger)

	runCtx, cancel := context.WithCancel(context.Background())
	db.cancel = cancel
	if cfg.Kernel.TransactionTimeout > 0 {
		timeouts := kernel.NewTimeoutMonitor(db.Transactions, cfg.Kernel.TransactionTimeout,
			cfg.Kernel.TimeoutCheckInterval, opts.Clock, opts.Logger)
		db.wg.Add(1)
		go func() {
			defer db.wg.Done()
			timeouts.Run(runCtx)
		}()
	}

	logger.Info("database started",
		zap.Uint64("last_committed_tx_id", ids.LastCommittedTransactionID()),
		zap.Bool("raft", cfg.Raft.Enabled),
		zap.Int("max_transactions", cfg.Kernel.MaxTransactions))
	return db, nil
}

func openWAL(cfg wal.Config, engine *storage.Engine, logger *zap.Logger) (*wal.LogManager, error) {
	lm, err := wal.NewLogManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open transaction log: %w", err)
	}
	records, err := lm.ReadAll()
	if err != nil {
		_ = lm.Close()
		return nil, fmt.Errorf("replay transaction log: %w", err)
	}
	for _, rec := range records {
		engine.Applied(rec.TxID, rec.Commands)
	}
	return lm, nil
}

func openRaft(ctx context.Context, cfg raftconsensus.Config, engine *storage.Engine, logger *zap.Logger) (*raftconsensus.Node, error) {
	fsm := raftconsensus.NewTransactionFSM(func(rec storage.TransactionRecord) error {
		engine.Applied(rec.TxID, rec.Commands)
		return nil
	}, logger)

	node, err := raftconsensus.NewNode(cfg, fsm, logger)
	if err != nil {
		return nil, fmt.Errorf("start raft node: %w", err)
	}
	if err := node.WaitForLeader(ctx); err != nil {
		_ = node.Shutdown()
		return nil, err
	}
	if node.IsLeader() {
		if err := node.Barrier(ctx); err != nil {
			_ = node.Shutdown()
			return nil, err
		}
	}
	return node, nil
}

// Begin starts a transaction.
func (db *Database) Begin(ctx context.Context, txType transaction.Type, mode transaction.AccessMode) (*kernel.Handle, error) {
	return db.Transactions.NewInstance(ctx, txType, mode)
}

func (db *Database) LastCommittedTransactionID() uint64 {
	return db.Pipeline.LastCommittedTransactionID()
}

// Close terminates open transactions, waits for them to be closed until ctx
// ends, and then closes the commit log.
func (db *Database) Close(ctx context.Context) error {
	err := db.Transactions.Shutdown(ctx)
	db.cancel()
	db.wg.Wait()
	if cerr := db.closeLog(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	db.logger.Info("database stopped")
	return err
}

func (db *Database) closeLog() error {
	if db.node != nil {
		return db.node.Shutdown()
	}
	return db.log.Close()
}
