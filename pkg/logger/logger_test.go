package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputFile: path, Service: "kernel-test"})
	require.NoError(t, err)
	log.Debug("transaction started", zap.Uint64("tx_id", 5))
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	require.Equal(t, "DEBUG", entry["level"])
	require.Equal(t, "transaction started", entry["msg"])
	require.Equal(t, "kernel-test", entry["service"])
	require.EqualValues(t, 5, entry["tx_id"])
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.log")

	log, err := New(Config{Level: "chatty", OutputFile: path})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zap.DebugLevel))
	require.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestNew_BadOutputFile(t *testing.T) {
	_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "kernel.log")})
	require.Error(t, err)
}

func TestBuild_DefaultService(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	build(Config{}, core).Info("hello")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, DefaultService, logs.All()[0].ContextMap()["service"])
}
