// Command kernel_cli is an interactive shell over an embedded transaction
// kernel, for exercising transactions by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/yan96in/neo4j/internal/database"
	"github.com/yan96in/neo4j/pkg/config"
	"github.com/yan96in/neo4j/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Optional YAML configuration file")
	dataDir    = flag.String("data", "data/cli", "Directory for the transaction log when no config file is given")
	logLevel   = flag.String("log_level", "warn", "Log level when no config file is given")
)

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.Load(*configPath)
	}
	cfg := config.Default()
	cfg.WAL.Dir = filepath.Join(*dataDir, "wal")
	cfg.Logger.Level = *logLevel
	cfg.Logger.Format = "console"
	cfg.Logger.OutputFile = "stderr"
	return &cfg, cfg.Validate()
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("begin",
			readline.PcItem("read"),
			readline.PcItem("write"),
			readline.PcItem("full"),
		),
		readline.PcItem("create-node"),
		readline.PcItem("set"),
		readline.PcItem("index"),
		readline.PcItem("success"),
		readline.PcItem("failure"),
		readline.PcItem("terminate"),
		readline.PcItem("close"),
		readline.PcItem("list"),
		readline.PcItem("last-id"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()

	ctx := context.Background()
	db, err := database.Open(ctx, *cfg, database.Options{Logger: zlogger})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(ctx); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kernel> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".kernel_cli_history"),
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Fatalf("failed to start readline: %v", err)
	}
	defer rl.Close()

	sh := newShell(db, rl.Stdout())
	defer sh.shutdown()

	fmt.Fprintln(rl.Stdout(), "Transaction kernel shell. Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		err = sh.execute(ctx, strings.TrimSpace(line))
		if errors.Is(err, errExit) {
			break
		}
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
}
