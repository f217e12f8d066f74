// Package config loads the kernel daemon configuration from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yan96in/neo4j/core/kernel"
	raftconsensus "github.com/yan96in/neo4j/core/replication/raft_consensus"
	"github.com/yan96in/neo4j/core/write_engine/wal"
	"github.com/yan96in/neo4j/pkg/logger"
	"github.com/yan96in/neo4j/pkg/telemetry"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Locking struct {
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// Raft selects the replicated commit log instead of the local WAL.
type Raft struct {
	Enabled              bool `yaml:"enabled"`
	raftconsensus.Config `yaml:",inline"`
}

// Admin holds the daemon's listen addresses: gRPC health, and HTTP for
// /metrics and the transaction admin endpoints.
type Admin struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// Config is the root of the daemon configuration file.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Kernel    kernel.Config    `yaml:"kernel"`
	Locking   Locking          `yaml:"locking"`
	WAL       wal.Config       `yaml:"wal"`
	Raft      Raft             `yaml:"raft"`
	Admin     Admin            `yaml:"admin"`
}

// Default returns the configuration used for every field the file leaves out.
func Default() Config {
	return Config{
		Logger: logger.Config{
			Level:      "info",
			Format:     "json",
			OutputFile: "stdout",
		},
		Telemetry: telemetry.Config{
			ServiceName:      "neo4j-kernel",
			TraceSampleRatio: 1.0,
		},
		Kernel: kernel.Config{
			MaxTransactions:      1000,
			TimeoutCheckInterval: time.Second,
		},
		WAL: wal.Config{
			Dir:              "data/wal",
			SegmentSizeLimit: 64 * 1024 * 1024,
			FlushInterval:    100 * time.Millisecond,
		},
		Raft: Raft{
			Config: raftconsensus.Config{
				BindAddr:     "127.0.0.1:7000",
				DataDir:      "data/raft",
				ApplyTimeout: 5 * time.Second,
			},
		},
		Admin: Admin{
			GRPCAddr: ":7687",
			HTTPAddr: ":9090",
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the kernel cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Kernel.MaxTransactions > 0, "kernel.max_transactions must be positive, got %d", c.Kernel.MaxTransactions)
	check(c.Kernel.TransactionTimeout >= 0, "kernel.transaction_timeout must not be negative")
	check(c.Kernel.TransactionTimeout == 0 || c.Kernel.TimeoutCheckInterval > 0,
		"kernel.timeout_check_interval must be positive when a transaction timeout is set")
	check(c.Kernel.StartRate >= 0, "kernel.start_rate must not be negative")
	check(c.Kernel.StartRate == 0 || c.Kernel.StartBurst > 0,
		"kernel.start_burst must be positive when start_rate is set")
	check(c.Locking.AcquireTimeout >= 0, "locking.acquire_timeout must not be negative")
	check(c.Telemetry.TraceSampleRatio >= 0 && c.Telemetry.TraceSampleRatio <= 1,
		"telemetry.trace_sample_ratio must be within [0, 1], got %v", c.Telemetry.TraceSampleRatio)
	check(c.Admin.GRPCAddr != "", "admin.grpc_addr is required")
	check(c.Admin.HTTPAddr != "", "admin.http_addr is required")

	if c.Raft.Enabled {
		check(c.Raft.NodeID != "", "raft.node_id is required when raft is enabled")
		check(c.Raft.BindAddr != "", "raft.bind_addr is required when raft is enabled")
		check(c.Raft.DataDir != "", "raft.data_dir is required when raft is enabled")
	} else {
		check(c.WAL.Dir != "", "wal.dir is required when raft is disabled")
	}

	return errors.Join(errs...)
}
