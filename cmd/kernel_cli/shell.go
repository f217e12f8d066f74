package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yan96in/neo4j/core/kernel"
	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/internal/database"
)

var errExit = errors.New("exit")

const helpText = `Commands:
  begin [read|write|full]        start a transaction (default write)
  create-node <id>               create a node
  set <node> <key> <value>       set a node property
  index <name> <key> <node> [v]  add a node to an auxiliary index
  success | failure              mark the outcome
  terminate [reason]             mark the current transaction for termination
  close                          close the current transaction
  list                           list open transactions
  last-id                        print the last committed transaction id
  stats                          print transaction counters
  help | exit`

// shell runs one command line at a time against an embedded database. It owns
// at most one transaction.
type shell struct {
	db  *database.Database
	out io.Writer
	cur *kernel.Handle
}

func newShell(db *database.Database, out io.Writer) *shell {
	return &shell{db: db, out: out}
}

// execute runs line. It returns errExit when the shell should stop.
func (s *shell) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "exit", "quit":
		return errExit
	case "begin":
		return s.begin(ctx, args)
	case "create-node":
		return s.createNode(args)
	case "set":
		return s.set(args)
	case "index":
		return s.index(args)
	case "success":
		h, err := s.current()
		if err != nil {
			return err
		}
		h.Success()
	case "failure":
		h, err := s.current()
		if err != nil {
			return err
		}
		h.Failure()
	case "terminate":
		return s.terminate(args)
	case "close":
		return s.close()
	case "list":
		s.list()
	case "last-id":
		fmt.Fprintln(s.out, s.db.LastCommittedTransactionID())
	case "stats":
		st := s.db.Counters.Stats()
		fmt.Fprintf(s.out, "started=%d committed=%d rolled_back=%d terminated=%d write_upgrades=%d active=%d\n",
			st.Started, st.Committed, st.RolledBack, st.Terminated, st.WriteUpgrades, st.Active)
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *shell) current() (*kernel.Handle, error) {
	if s.cur == nil {
		return nil, errors.New("no open transaction, use begin")
	}
	return s.cur, nil
}

func (s *shell) begin(ctx context.Context, args []string) error {
	if s.cur != nil {
		return errors.New("a transaction is already open, close it first")
	}
	mode := transaction.AccessWrite
	if len(args) > 0 {
		m, err := transaction.ParseAccessMode(args[0])
		if err != nil {
			return err
		}
		mode = m
	}
	h, err := s.db.Begin(ctx, transaction.TypeExplicit, mode)
	if err != nil {
		return err
	}
	s.cur = h
	fmt.Fprintf(s.out, "begin %s (%s)\n", h.ID, mode)
	return nil
}

func (s *shell) createNode(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: create-node <id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid node id %q", args[0])
	}
	return s.withStatement(func(st *transaction.Statement) error {
		state, err := st.TxState()
		if err != nil {
			return err
		}
		state.NodeDoCreate(id)
		return nil
	})
}

func (s *shell) set(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: set <node> <key> <value>")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid node id %q", args[0])
	}
	value := strings.Join(args[2:], " ")
	return s.withStatement(func(st *transaction.Statement) error {
		state, err := st.TxState()
		if err != nil {
			return err
		}
		state.NodeDoSetProperty(id, args[1], value)
		return nil
	})
}

func (s *shell) index(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: index <name> <key> <node> [value]")
	}
	id, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid node id %q", args[2])
	}
	value := strings.Join(args[3:], " ")
	return s.withStatement(func(st *transaction.Statement) error {
		aux, err := st.AuxIndexState()
		if err != nil {
			return err
		}
		aux.Add(args[0], args[1], value, id)
		return nil
	})
}

func (s *shell) withStatement(fn func(*transaction.Statement) error) error {
	h, err := s.current()
	if err != nil {
		return err
	}
	return h.WithStatement(fn)
}

func (s *shell) terminate(args []string) error {
	h, err := s.current()
	if err != nil {
		return err
	}
	reason := transaction.ReasonTerminated
	if len(args) > 0 {
		reason = transaction.Reason(args[0])
	}
	if h.MarkForTermination(reason) {
		fmt.Fprintf(s.out, "marked for termination: %s\n", reason)
	} else {
		fmt.Fprintln(s.out, "already marked for termination")
	}
	return nil
}

func (s *shell) close() error {
	h, err := s.current()
	if err != nil {
		return err
	}
	s.cur = nil
	if err := h.Close(); err != nil {
		return err
	}
	if id := h.CommittedTxID(); id != 0 {
		fmt.Fprintf(s.out, "committed as transaction %d\n", id)
	} else {
		fmt.Fprintln(s.out, "rolled back")
	}
	return nil
}

func (s *shell) list() {
	now := time.Now()
	for _, h := range s.db.Transactions.ActiveTransactions() {
		info := h.Info()
		if !info.Open {
			continue
		}
		line := fmt.Sprintf("%s %s %s age=%s", h.ID, info.Type, info.AccessMode, now.Sub(info.StartTime).Truncate(time.Millisecond))
		if info.TerminationReason != "" {
			line += " terminated=" + string(info.TerminationReason)
		}
		fmt.Fprintln(s.out, line)
	}
}

// shutdown closes a transaction left open when the shell exits.
func (s *shell) shutdown() {
	if s.cur != nil {
		_ = s.cur.Close()
		s.cur = nil
	}
}
