package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/internal/database"
	"github.com/yan96in/neo4j/pkg/config"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.WAL.Dir = filepath.Join(t.TempDir(), "wal")

	db, err := database.Open(context.Background(), cfg, database.Options{Logger: zap.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	var out bytes.Buffer
	return newShell(db, &out), &out
}

func run(t *testing.T, s *shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, s.execute(context.Background(), line), line)
	}
}

func TestShell_CommitFlow(t *testing.T) {
	s, out := newTestShell(t)

	run(t, s,
		"begin write",
		"create-node 1",
		"set 1 name Ada Lovelace",
		"index people name 1 Ada",
		"success",
		"close",
		"last-id",
	)
	require.Contains(t, out.String(), "committed as transaction 2")
	require.Contains(t, out.String(), "\n2\n")
}

func TestShell_ReadTransactionRejectsWrites(t *testing.T) {
	s, out := newTestShell(t)

	run(t, s, "begin read")
	err := s.execute(context.Background(), "create-node 1")
	require.ErrorIs(t, err, transaction.ErrWriteNotAllowed)
	run(t, s, "close")
	require.Contains(t, out.String(), "rolled back")
}

func TestShell_TerminateThenClose(t *testing.T) {
	s, out := newTestShell(t)

	run(t, s, "begin", "create-node 3", "success", "list", "terminate")
	require.Contains(t, out.String(), "explicit WRITE")
	require.Contains(t, out.String(), "marked for termination: Transaction.Terminated")

	err := s.execute(context.Background(), "close")
	require.ErrorIs(t, err, transaction.ErrTransactionTerminated)

	run(t, s, "stats", "last-id")
	require.Contains(t, out.String(), "terminated=1")
	require.Contains(t, out.String(), "\n1\n")
}

func TestShell_Errors(t *testing.T) {
	s, _ := newTestShell(t)
	ctx := context.Background()

	require.Error(t, s.execute(ctx, "close"))
	require.Error(t, s.execute(ctx, "bogus"))
	require.Error(t, s.execute(ctx, "begin admin"))
	run(t, s, "begin")
	require.Error(t, s.execute(ctx, "begin"))
	require.Error(t, s.execute(ctx, "create-node x"))
	require.Error(t, s.execute(ctx, "set 1"))
	require.ErrorIs(t, s.execute(ctx, "exit"), errExit)
	s.shutdown()
	require.Nil(t, s.cur)
}
