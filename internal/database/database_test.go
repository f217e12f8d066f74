package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/commit"
	"github.com/yan96in/neo4j/core/kernel"
	"github.com/yan96in/neo4j/core/storage"
	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/pkg/clock"
	"github.com/yan96in/neo4j/pkg/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WAL.Dir = filepath.Join(t.TempDir(), "wal")
	cfg.WAL.SyncOnAppend = true
	cfg.Kernel.MaxTransactions = 8
	return cfg
}

func createNode(t *testing.T, h *kernel.Handle, id uint64) {
	t.Helper()
	require.NoError(t, h.WithStatement(func(s *transaction.Statement) error {
		state, err := s.TxState()
		if err != nil {
			return err
		}
		state.NodeDoCreate(id)
		return nil
	}))
}

func TestOpen_WALSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	require.Equal(t, commit.BaseTxID, db.LastCommittedTransactionID())

	for i := uint64(1); i <= 3; i++ {
		h, err := db.Begin(ctx, transaction.TypeImplicit, transaction.AccessWrite)
		require.NoError(t, err)
		createNode(t, h, i)
		h.Success()
		require.NoError(t, h.Close())
		require.Equal(t, commit.BaseTxID+i, h.CommittedTxID())
	}
	require.NoError(t, db.Close(ctx))

	db, err = Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer db.Close(ctx)
	require.Equal(t, commit.BaseTxID+3, db.LastCommittedTransactionID())

	h, err := db.Begin(ctx, transaction.TypeImplicit, transaction.AccessWrite)
	require.NoError(t, err)
	require.Equal(t, commit.BaseTxID+3, h.Info().LastCommittedTxIDWhenStarted)
	createNode(t, h, 4)
	h.Success()
	require.NoError(t, h.Close())
	require.Equal(t, commit.BaseTxID+4, h.CommittedTxID())
}

func TestOpen_SchemaHistoryIsReplayed(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	// Starts before the schema change below commits.
	stale, err := db.Begin(ctx, transaction.TypeExplicit, transaction.AccessFull)
	require.NoError(t, err)

	h, err := db.Begin(ctx, transaction.TypeExplicit, transaction.AccessFull)
	require.NoError(t, err)
	require.NoError(t, h.WithStatement(func(s *transaction.Statement) error {
		schema, err := s.SchemaState()
		if err != nil {
			return err
		}
		schema.IndexDoAdd("Person", "name")
		return nil
	}))
	h.Success()
	require.NoError(t, h.Close())

	require.NoError(t, stale.WithStatement(func(s *transaction.Statement) error {
		schema, err := s.SchemaState()
		if err != nil {
			return err
		}
		schema.IndexDoAdd("Movie", "title")
		return nil
	}))
	stale.Success()
	err = stale.Close()
	require.ErrorIs(t, err, transaction.ErrCommitFailure)
	require.ErrorIs(t, err, storage.ErrConcurrentSchemaChange)
	require.NoError(t, db.Close(ctx))

	db, err = Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer db.Close(ctx)
	require.Equal(t, commit.BaseTxID+1, db.LastCommittedTransactionID())
}

func TestOpen_TimeoutMonitorRuns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kernel.TransactionTimeout = time.Second
	cfg.Kernel.TimeoutCheckInterval = 5 * time.Millisecond
	clk := clock.NewFake(time.Date(2016, 5, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	db, err := Open(ctx, cfg, Options{Logger: zap.NewNop(), Clock: clk})
	require.NoError(t, err)
	defer db.Close(ctx)

	h, err := db.Begin(ctx, transaction.TypeExplicit, transaction.AccessRead)
	require.NoError(t, err)
	clk.Forward(2 * time.Second)

	require.Eventually(t, func() bool {
		return h.Info().TerminationReason == transaction.ReasonTimedOut
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, h.Close())
	require.EqualValues(t, 1, db.Counters.Stats().Terminated)
}

func TestClose_TerminatesOpenTransactions(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db, err := Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)

	h, err := db.Begin(ctx, transaction.TypeExplicit, transaction.AccessWrite)
	require.NoError(t, err)

	closeCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, db.Close(closeCtx), context.DeadlineExceeded)
	require.Equal(t, transaction.ReasonDatabaseShutdown, h.Info().TerminationReason)

	_, err = db.Begin(ctx, transaction.TypeImplicit, transaction.AccessRead)
	require.ErrorIs(t, err, kernel.ErrShutdown)
	require.NoError(t, h.Close())
}

func TestOpen_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())
	ctx := context.Background()

	db, err := Open(ctx, testConfig(t), Options{Logger: zap.NewNop(), Meter: provider.Meter("test")})
	require.NoError(t, err)
	defer db.Close(ctx)

	h, err := db.Begin(ctx, transaction.TypeImplicit, transaction.AccessRead)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	require.True(t, names["neo4j.transactions.started_total"])
	require.True(t, names["neo4j.transactions.rolled_back_total"])
}

func TestOpen_Raft(t *testing.T) {
	cfg := testConfig(t)
	cfg.Raft.Enabled = true
	cfg.Raft.NodeID = "node-1"
	cfg.Raft.BindAddr = "127.0.0.1:0"
	cfg.Raft.DataDir = filepath.Join(t.TempDir(), "raft")
	cfg.Raft.Bootstrap = true
	cfg.Raft.HeartbeatTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, cfg, Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	defer db.Close(context.Background())

	h, err := db.Begin(ctx, transaction.TypeImplicit, transaction.AccessWrite)
	require.NoError(t, err)
	createNode(t, h, 1)
	h.Success()
	require.NoError(t, h.Close())
	require.Equal(t, commit.BaseTxID+1, h.CommittedTxID())
}
