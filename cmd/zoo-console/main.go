// Command zoo-console runs a zoo session in the terminal. Commands are read
// from stdin; the zoo is printed after each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MRamiBalles/ZooSimulator/server/internal/app"
	"github.com/MRamiBalles/ZooSimulator/server/internal/console"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	dbPath := flag.String("db", "", "SQLite journal path override")
	flag.Parse()

	if err := run(*configPath, *logLevel, *dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "zoo-console:", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel, dbPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	// Logs go to stderr so they do not interleave with the zoo table
	log := logger.NewWithWriter(os.Stderr, level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session, err := app.Open(cfg, log, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	c := console.New(session.Engine, os.Stdout, log)
	session.Engine.OnGameEnded(func(generation uint64) {
		c.Printf("\nEvery animal of generation %d has died.\n", generation)
		if cfg.Scheduler.AutoRestart {
			c.Printf("A new population is on its way.\n> ")
		} else {
			c.Printf("Type new to start again.\n> ")
		}
	})

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	if err := c.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
