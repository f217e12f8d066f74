package wal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/storage"
)

// --- Test Helpers ---

func setupLogManager(t *testing.T, cfg Config) (*LogManager, string) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	lm, err := NewLogManager(cfg, logger)
	require.NoError(t, err)
	return lm, cfg.Dir
}

func newTestRecord(txID uint64) storage.TransactionRecord {
	return storage.TransactionRecord{
		TxID:                         txID,
		TimeStarted:                  time.Unix(100, 0).UnixNano(),
		TimeCommitted:                time.Unix(101, 0).UnixNano(),
		LatestCommittedTxWhenStarted: txID - 1,
		Commands: []storage.Command{
			{Kind: storage.CommandNodeCreate, NodeID: txID},
			{Kind: storage.CommandPropertySet, NodeID: txID, Key: "name", Value: fmt.Sprintf("node-%d", txID)},
		},
	}
}

// --- Test Cases ---

func TestLogManager_AppendAndReadAll(t *testing.T) {
	lm, _ := setupLogManager(t, Config{})
	defer lm.Close()

	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		lsn, err := lm.Append(ctx, newTestRecord(i))
		require.NoError(t, err)
		require.Equal(t, LSN(i), lsn)
	}

	records, err := lm.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		require.Equal(t, uint64(i+1), rec.TxID)
		require.Len(t, rec.Commands, 2)
		require.Equal(t, storage.CommandNodeCreate, rec.Commands[0].Kind)
		require.Equal(t, fmt.Sprintf("node-%d", i+1), rec.Commands[1].Value)
	}
	require.Equal(t, uint64(3), lm.LastTransactionID())
	require.Equal(t, LSN(3), lm.CurrentLSN())
}

func TestLogManager_RecoversLastTransactionID(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SyncOnAppend: true})
	ctx := context.Background()
	require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(1)))
	require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(2)))
	require.NoError(t, lm.Close())

	reopened, _ := setupLogManager(t, Config{Dir: dir})
	defer reopened.Close()

	require.Equal(t, uint64(2), reopened.LastTransactionID())
	require.Equal(t, LSN(2), reopened.CurrentLSN())

	lsn, err := reopened.Append(ctx, newTestRecord(3))
	require.NoError(t, err)
	require.Equal(t, LSN(3), lsn)
}

func TestLogManager_TruncatesTornTail(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SyncOnAppend: true})
	ctx := context.Background()
	require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(1)))
	require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(2)))
	require.NoError(t, lm.Close())

	path := filepath.Join(dir, "log_00000.log")
	info, err := os.Stat(path)
	require.NoError(t, err)
	// Cut the last frame in half.
	require.NoError(t, os.Truncate(path, info.Size()-5))

	reopened, _ := setupLogManager(t, Config{Dir: dir, SyncOnAppend: true})
	defer reopened.Close()
	require.Equal(t, uint64(1), reopened.LastTransactionID())

	require.NoError(t, reopened.AppendTransaction(ctx, newTestRecord(2)))
	records, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(2), records[1].TxID)
}

func TestLogManager_CorruptOlderSegmentFails(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SegmentSizeLimit: 400, BufferSize: 256, SyncOnAppend: true})
	ctx := context.Background()
	for i := uint64(1); i <= 6; i++ {
		require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(i)))
	}
	require.NoError(t, lm.Close())

	first := filepath.Join(dir, "log_00000.log")
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	data[len(data)-2] ^= 0xFF
	require.NoError(t, os.WriteFile(first, data, 0644))

	_, err = NewLogManager(Config{Dir: dir, SegmentSizeLimit: 400, BufferSize: 256}, zap.NewNop())
	require.ErrorIs(t, err, ErrCorruptSegment)
}

func TestLogManager_RollsSegments(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SegmentSizeLimit: 400, BufferSize: 256})
	defer lm.Close()

	ctx := context.Background()
	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(i)))
	}
	require.NoError(t, lm.Sync())

	matches, err := filepath.Glob(filepath.Join(dir, "log_*.log"))
	require.NoError(t, err)
	require.Greater(t, len(matches), 1, "expected the log to roll into several segments")

	records, err := lm.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 10)
	for i, rec := range records {
		require.Equal(t, uint64(i+1), rec.TxID)
	}
}

func TestLogManager_CancelledContextWritesNothing(t *testing.T) {
	lm, _ := setupLogManager(t, Config{})
	defer lm.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lm.Append(ctx, newTestRecord(1))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, InvalidLSN, lm.CurrentLSN())
	require.Zero(t, lm.LastTransactionID())

	records, err := lm.ReadAll()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestLogManager_AppendAfterClose(t *testing.T) {
	lm, _ := setupLogManager(t, Config{})
	require.NoError(t, lm.Close())
	require.NoError(t, lm.Close())

	_, err := lm.Append(context.Background(), newTestRecord(1))
	require.ErrorIs(t, err, ErrLogClosed)
}

func TestLogManager_RecordTooLarge(t *testing.T) {
	lm, _ := setupLogManager(t, Config{SegmentSizeLimit: 128, BufferSize: 64})
	defer lm.Close()

	_, err := lm.Append(context.Background(), newTestRecord(1))
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestLogManager_ConcurrentAppends(t *testing.T) {
	lm, _ := setupLogManager(t, Config{})
	defer lm.Close()

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				require.NoError(t, lm.AppendTransaction(context.Background(), newTestRecord(uint64(w*perWriter+i+1))))
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, LSN(writers*perWriter), lm.CurrentLSN())
	require.Equal(t, uint64(writers*perWriter), lm.LastTransactionID())

	records, err := lm.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, writers*perWriter)
}

func TestLogManager_FailedAppendLeavesNoRecord(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SyncOnAppend: true})
	ctx := context.Background()
	require.NoError(t, lm.AppendTransaction(ctx, newTestRecord(1)))

	// Writes to a closed segment file fail.
	require.NoError(t, lm.logFile.Close())
	_, err := lm.Append(ctx, newTestRecord(2))
	require.Error(t, err)
	require.Equal(t, LSN(1), lm.CurrentLSN())
	require.Equal(t, uint64(1), lm.LastTransactionID())

	f, err := os.OpenFile(filepath.Join(dir, "log_00000.log"), os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	lm.mu.Lock()
	lm.logFile = f
	lm.mu.Unlock()

	// The id of the failed commit is handed out again.
	lsn, err := lm.Append(ctx, newTestRecord(2))
	require.NoError(t, err)
	require.Equal(t, LSN(2), lsn)
	require.NoError(t, lm.Close())

	reopened, _ := setupLogManager(t, Config{Dir: dir})
	defer reopened.Close()
	records, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(1), records[0].TxID)
	require.Equal(t, uint64(2), records[1].TxID)
}

func TestLogManager_UnremovableWriteFailsLog(t *testing.T) {
	lm, dir := setupLogManager(t, Config{SyncOnAppend: true})
	ctx := context.Background()

	require.NoError(t, lm.logFile.Close())
	require.NoError(t, os.RemoveAll(dir))

	_, err := lm.Append(ctx, newTestRecord(1))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrLogFailed)

	_, err = lm.Append(ctx, newTestRecord(1))
	require.ErrorIs(t, err, ErrLogFailed)
	require.ErrorIs(t, lm.Sync(), ErrLogFailed)
	require.Equal(t, InvalidLSN, lm.CurrentLSN())
	_ = lm.Close()
}

func TestNewLogManager_RejectsBadConfig(t *testing.T) {
	_, err := NewLogManager(Config{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewLogManager(Config{Dir: t.TempDir(), SegmentSizeLimit: 10, BufferSize: 100}, zap.NewNop())
	require.Error(t, err)
}
