// Command soak-runner runs the headless soak scenarios and exits non-zero
// when any invariant was violated.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/config"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
	"github.com/MRamiBalles/ZooSimulator/server/internal/scenario"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = fast preset)")
	only := flag.String("scenario", "", "Comma-separated scenario names (empty = all)")
	games := flag.Int("games", 3, "Games each waiting scenario must see end")
	duration := flag.Duration("duration", 2*time.Second, "Length of time-boxed scenarios")
	timeout := flag.Duration("timeout", 30*time.Second, "Hard limit per scenario")
	seed := flag.Uint64("seed", 0, "Population seed (0 = from the clock)")
	results := flag.String("results", "", "Write JSON results to this file")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.NewWithWriter(os.Stderr, level)

	cfg := config.Fast()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "soak-runner:", err)
			os.Exit(2)
		}
	}
	cfg.Population.Seed = *seed

	scenarios, err := selectScenarios(*only)
	if err != nil {
		fmt.Fprintln(os.Stderr, "soak-runner:", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := scenario.Options{Games: *games, Duration: *duration, Timeout: *timeout}

	fmt.Println("ZOO SOAK SUITE")
	fmt.Println(strings.Repeat("=", 60))

	var all []scenario.Result
	failed := 0
	for _, s := range scenarios {
		fmt.Printf("\n%s: %s\n", s.Name, s.Description)
		res := scenario.Run(ctx, s, cfg, opts, log)
		all = append(all, res)

		verdict := "PASS"
		if !res.Passed {
			verdict = "FAIL"
			failed++
		}
		fmt.Printf("   %s  games=%d ticks=%d events=%d in %s\n",
			verdict, res.Games, res.Ticks, res.Events, res.Duration.Round(time.Millisecond))
		fmt.Printf("   %s\n", res.Reason)
		for _, v := range res.Violations {
			fmt.Printf("   - %s\n", v)
		}
		if ctx.Err() != nil {
			break
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("Passed: %d\n", len(all)-failed)
	fmt.Printf("Failed: %d\n", failed)

	if *results != "" {
		data, _ := json.MarshalIndent(all, "", "  ")
		if err := os.WriteFile(*results, data, 0644); err != nil {
			log.Error("failed to write results", "path", *results, "error", err)
		}
	}

	if failed > 0 || ctx.Err() != nil {
		os.Exit(1)
	}
}

func selectScenarios(names string) ([]scenario.Scenario, error) {
	if strings.TrimSpace(names) == "" {
		return scenario.All(), nil
	}
	var out []scenario.Scenario
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		s, ok := scenario.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
