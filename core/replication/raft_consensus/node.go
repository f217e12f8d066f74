package raftconsensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/storage"
)

var (
	ErrNotLeader = errors.New("raft node is not the leader")
	ErrNoLeader  = errors.New("no raft leader elected")
)

type Config struct {
	NodeID       string        `yaml:"node_id"`
	BindAddr     string        `yaml:"bind_addr"`
	DataDir      string        `yaml:"data_dir"`
	Bootstrap    bool          `yaml:"bootstrap"`
	ApplyTimeout time.Duration `yaml:"apply_timeout"`
	// HeartbeatTimeout overrides raft's heartbeat, election and leader lease
	// timeouts when set.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
}

// Node is a raft member whose log carries committed transactions.
type Node struct {
	raft      *raft.Raft
	fsm       *TransactionFSM
	boltStore *raftboltdb.BoltStore
	cfg       Config
	logger    *zap.Logger
}

// NewNode starts a raft member persisting its log in a boltdb file under
// cfg.DataDir and talking TCP on cfg.BindAddr.
func NewNode(cfg Config, fsm *TransactionFSM, logger *zap.Logger) (*Node, error) {
	if cfg.NodeID == "" || cfg.BindAddr == "" || cfg.DataDir == "" {
		return nil, fmt.Errorf("raft node id, bind address and data dir must be set")
	}
	raftLogger := NewZapRaftLogger(logger.Named("raft"))

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create raft data dir %s: %w", cfg.DataDir, err)
	}

	transport, err := raft.NewTCPTransportWithLogger(cfg.BindAddr, nil, 3, 10*time.Second, raftLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft TCP transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStoreWithLogger(cfg.DataDir, 2, raftLogger)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create raft snapshot store: %w", err)
	}

	boltStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create raft bolt store: %w", err)
	}

	n, err := newNode(cfg, fsm, logger, raftLogger, boltStore, boltStore, snapshots, transport)
	if err != nil {
		_ = boltStore.Close()
		_ = transport.Close()
		return nil, err
	}
	n.boltStore = boltStore
	return n, nil
}

func newNode(cfg Config, fsm *TransactionFSM, logger *zap.Logger, raftLogger *ZapRaftLogger,
	logs raft.LogStore, stable raft.StableStore, snapshots raft.SnapshotStore, transport raft.Transport) (*Node, error) {
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 5 * time.Second
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.Logger = raftLogger
	if cfg.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = cfg.HeartbeatTimeout
		raftConfig.ElectionTimeout = cfg.HeartbeatTimeout
		raftConfig.LeaderLeaseTimeout = cfg.HeartbeatTimeout
	}

	if cfg.Bootstrap {
		hasState, err := raft.HasExistingState(logs, stable, snapshots)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect raft state: %w", err)
		}
		if !hasState {
			configuration := raft.Configuration{
				Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
			}
			if err := raft.BootstrapCluster(raftConfig, logs, stable, snapshots, transport, configuration); err != nil {
				return nil, fmt.Errorf("failed to bootstrap raft cluster: %w", err)
			}
			logger.Info("bootstrapped raft cluster", zap.String("node_id", cfg.NodeID))
		}
	}

	r, err := raft.NewRaft(raftConfig, fsm, logs, stable, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft instance: %w", err)
	}

	return &Node{
		raft:   r,
		fsm:    fsm,
		cfg:    cfg,
		logger: logger.Named("raft_node"),
	}, nil
}

// WaitForLeader blocks until the cluster has elected a leader.
func (n *Node) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if addr, _ := n.raft.LeaderWithID(); addr != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoLeader, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Barrier waits until every entry committed before the call has been applied
// to the FSM. It must be called on the leader.
func (n *Node) Barrier(ctx context.Context) error {
	timeout := n.cfg.ApplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := n.raft.Barrier(timeout).Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) {
			return fmt.Errorf("%w: %v", ErrNotLeader, err)
		}
		return fmt.Errorf("raft barrier failed: %w", err)
	}
	return nil
}

func (n *Node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// AppendTransaction replicates rec and waits for it to be applied. ctx is
// checked before the entry is submitted; once submitted it is not withdrawn.
func (n *Node) AppendTransaction(ctx context.Context, rec storage.TransactionRecord) error {
	if n.raft.State() != raft.Leader {
		return ErrNotLeader
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transaction record: %w", err)
	}

	timeout := n.cfg.ApplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return fmt.Errorf("%w: %v", ErrNotLeader, err)
		}
		return fmt.Errorf("raft apply failed: %w", err)
	}
	if resp, ok := future.Response().(error); ok && resp != nil {
		return resp
	}
	return nil
}

func (n *Node) LastTransactionID() uint64 {
	return n.fsm.LastTransactionID()
}

// Shutdown stops raft and closes the stores it owns.
func (n *Node) Shutdown() error {
	// raft closes the transport itself.
	err := n.raft.Shutdown().Error()
	if n.boltStore != nil {
		if cerr := n.boltStore.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	n.logger.Info("raft node shut down", zap.String("node_id", n.cfg.NodeID))
	return err
}
