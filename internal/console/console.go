// Package console implements the line-oriented zoo terminal: it reads
// commands from an input stream, runs them against the session and prints
// the zoo after each one.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/MRamiBalles/ZooSimulator/server/internal/engine"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

// Session is what the console drives. *engine.Engine implements it.
type Session interface {
	Feed() error
	Jump() (bool, error)
	NewGame(ctx context.Context) error
	Snapshot() engine.ZooSnapshot
}

// Console reads commands and writes responses.
type Console struct {
	session  Session
	registry *Registry
	logger   *logger.Logger

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

// New creates a console over session that writes to out.
func New(session Session, out io.Writer, log *logger.Logger) *Console {
	return &Console{
		session:  session,
		registry: DefaultRegistry(),
		logger:   log,
		out:      out,
	}
}

// Run reads lines from in until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.Printf("Welcome to the zoo. Type help for commands.\n")
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if c.Execute(ctx, line) {
				return nil
			}
			c.prompt()
		}
	}
}

// Execute runs one line of input. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) (quit bool) {
	if strings.TrimSpace(line) == "" {
		return false
	}

	res, ok := c.registry.Resolve(line)
	if !ok {
		if len(res.Alternatives) > 0 {
			c.Printf("Did you mean %s?\n", strings.Join(res.Alternatives, " or "))
		} else {
			c.Printf("Unknown command %q. Type help for commands.\n", strings.TrimSpace(line))
		}
		return false
	}
	if res.Source == "lev" || res.Source == "prefix" {
		c.logger.Debug("resolved command", "input", line, "command", res.Command, "source", res.Source, "score", res.Score)
	}

	switch res.Command {
	case "feed":
		if err := c.session.Feed(); err != nil {
			c.Printf("feed failed: %v\n", err)
			return false
		}
		c.Printf("Every animal was fed.\n")
		c.printZoo()
	case "jump":
		ended, err := c.session.Jump()
		if err != nil {
			c.Printf("jump failed: %v\n", err)
			return false
		}
		if ended {
			c.Printf("Time jumped forward. Every animal has died.\n")
		} else {
			c.Printf("Time jumped forward.\n")
		}
		c.printZoo()
	case "new":
		if err := c.session.NewGame(ctx); err != nil {
			c.Printf("new game failed: %v\n", err)
			return false
		}
		c.Printf("A new population has arrived.\n")
		c.printZoo()
	case "status":
		c.printZoo()
	case "help":
		c.printHelp()
	case "quit":
		c.Printf("Goodbye.\n")
		return true
	}
	return false
}

// Printf writes to the console output. Safe for concurrent use.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) prompt() {
	c.Printf("> ")
}

func (c *Console) printHelp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, cmd := range c.registry.Commands() {
		fmt.Fprintf(tw, "  %s\t%s\t(%s)\n", cmd.Name, cmd.Help, strings.Join(cmd.Aliases, ", "))
	}
	tw.Flush()
}

func (c *Console) printZoo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	WriteSnapshot(c.out, c.session.Snapshot())
}

// WriteSnapshot renders a snapshot as a table grouped by species.
func WriteSnapshot(w io.Writer, snap engine.ZooSnapshot) {
	status := "paused"
	if snap.Running {
		status = "running"
	}
	fmt.Fprintf(w, "Generation %d, tick %d, %s: %d alive, %d dying, %d dead\n",
		snap.Generation, snap.Ticks, status, snap.Counts.Alive, snap.Counts.Dying, snap.Counts.Dead)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range snap.Groups {
		for _, a := range g.Animals {
			walk := "-"
			if a.CanWalk {
				walk = fmt.Sprintf("%.1f", a.WalkingSpeed)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", g.Species, shortID(a.ID), a.Percent, a.State, walk)
		}
	}
	tw.Flush()
	if snap.IsEmpty {
		fmt.Fprintln(w, "The zoo is empty.")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
