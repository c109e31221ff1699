// Command zoo-watch connects one or more WebSocket clients to a zoo server,
// prints the event stream and can act as a load generator by sending
// commands at an interval.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/stat"

	"github.com/MRamiBalles/ZooSimulator/server/internal/network"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/logger"
)

// Config for the watcher
type Config struct {
	ServerURL       string
	NumClients      int
	CommandInterval time.Duration
	Duration        time.Duration
	Commands        []string
	Quiet           bool
	ResultsPath     string
}

// Stats tracks traffic across every client.
type Stats struct {
	MessagesSent     atomic.Int64
	MessagesReceived atomic.Int64
	Acks             atomic.Int64
	Rejected         atomic.Int64
	Errors           atomic.Int64

	mu        sync.Mutex
	byType    map[string]int
	latencies []float64 // milliseconds from send to reply
}

func (s *Stats) countType(t string) {
	s.mu.Lock()
	s.byType[t]++
	s.mu.Unlock()
}

func (s *Stats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, float64(d.Microseconds())/1000)
	s.mu.Unlock()
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 1, "Number of concurrent clients")
	interval := flag.Duration("interval", 0, "Command interval per client (0 = watch only)")
	duration := flag.Duration("duration", 0, "How long to run (0 = until interrupted)")
	commands := flag.String("commands", "FEED,JUMP", "Comma-separated commands to send")
	quiet := flag.Bool("quiet", false, "Do not print events")
	results := flag.String("results", "", "Write a JSON summary to this file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.NewWithWriter(os.Stderr, level)

	cfg := Config{
		ServerURL:       *serverURL,
		NumClients:      *numClients,
		CommandInterval: *interval,
		Duration:        *duration,
		Commands:        parseCommands(*commands),
		Quiet:           *quiet,
		ResultsPath:     *results,
	}
	if cfg.NumClients <= 0 {
		fmt.Fprintln(os.Stderr, "clients must be positive")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if cfg.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.Duration)
		defer stop()
	}

	log.Info("starting watcher", "url", cfg.ServerURL, "clients", cfg.NumClients,
		"interval", cfg.CommandInterval, "duration", cfg.Duration)

	start := time.Now()
	stats := run(ctx, cfg, log)
	summary := summarize(stats, cfg, time.Since(start))
	printSummary(summary)

	if cfg.ResultsPath != "" {
		data, _ := json.MarshalIndent(summary, "", "  ")
		if err := os.WriteFile(cfg.ResultsPath, data, 0644); err != nil {
			log.Error("failed to write results", "path", cfg.ResultsPath, "error", err)
			os.Exit(1)
		}
		log.Info("results saved", "path", cfg.ResultsPath)
	}
}

func parseCommands(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func run(ctx context.Context, cfg Config, log *logger.Logger) *Stats {
	stats := &Stats{byType: make(map[string]int)}

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, cfg, stats, log)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	if cfg.NumClients > 1 {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					log.Info("progress", "sent", stats.MessagesSent.Load(),
						"received", stats.MessagesReceived.Load(), "errors", stats.Errors.Load())
				}
			}
		}()
	}

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, cfg Config, stats *Stats, log *logger.Logger) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		log.Error("connection failed", "client", clientID, "error", err)
		stats.Errors.Add(1)
		return
	}
	defer conn.Close()

	// Only the first client prints the stream
	printer := clientID == 0 && !cfg.Quiet

	var pendingMu sync.Mutex
	var pending []time.Time

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("read failed", "client", clientID, "error", err)
					stats.Errors.Add(1)
				}
				return
			}
			for _, line := range bytes.Split(data, []byte{'\n'}) {
				stats.MessagesReceived.Add(1)
				var msg struct {
					Type       string          `json:"type"`
					Command    string          `json:"command"`
					Error      string          `json:"error"`
					Generation uint64          `json:"generation"`
					TargetID   string          `json:"target_id"`
					Payload    json.RawMessage `json:"payload"`
				}
				if err := json.Unmarshal(line, &msg); err != nil {
					stats.Errors.Add(1)
					continue
				}
				stats.countType(msg.Type)

				switch msg.Type {
				case network.ReplyAck, network.ReplyError:
					pendingMu.Lock()
					if len(pending) > 0 {
						stats.addLatency(time.Since(pending[0]))
						pending = pending[1:]
					}
					pendingMu.Unlock()
					if msg.Type == network.ReplyAck {
						stats.Acks.Add(1)
					} else {
						stats.Rejected.Add(1)
					}
				}
				if printer {
					printMessage(msg.Type, msg.Generation, msg.TargetID, msg.Command, msg.Error, msg.Payload)
				}
			}
		}
	}()

	var tick <-chan time.Time
	if cfg.CommandInterval > 0 && len(cfg.Commands) > 0 {
		ticker := time.NewTicker(cfg.CommandInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case <-done:
			return
		case <-tick:
			cmd := network.ClientCommand{Type: cfg.Commands[rand.IntN(len(cfg.Commands))]}
			pendingMu.Lock()
			pending = append(pending, time.Now())
			pendingMu.Unlock()
			if err := conn.WriteJSON(cmd); err != nil {
				stats.Errors.Add(1)
				return
			}
			stats.MessagesSent.Add(1)
		}
	}
}

func printMessage(typ string, gen uint64, target, command, errMsg string, payload json.RawMessage) {
	ts := time.Now().Format("15:04:05.000")
	switch typ {
	case network.ReplyAck:
		fmt.Printf("%s  ack     %s\n", ts, command)
	case network.ReplyError:
		fmt.Printf("%s  error   %s: %s\n", ts, command, errMsg)
	default:
		line := fmt.Sprintf("%s  gen %-3d %-18s", ts, gen, typ)
		if target != "" {
			line += " " + target
		}
		if len(payload) > 0 {
			line += " " + string(payload)
		}
		fmt.Println(line)
	}
}

// Summary is the JSON result of a run.
type Summary struct {
	Clients          int            `json:"clients"`
	Interval         string         `json:"interval"`
	Elapsed          string         `json:"elapsed"`
	MessagesSent     int64          `json:"messages_sent"`
	MessagesReceived int64          `json:"messages_received"`
	Acks             int64          `json:"acks"`
	Rejected         int64          `json:"rejected"`
	Errors           int64          `json:"errors"`
	ThroughputPerSec float64        `json:"throughput_per_sec"`
	ByType           map[string]int `json:"by_type"`
	LatencyMeanMS    float64        `json:"latency_mean_ms"`
	LatencyP50MS     float64        `json:"latency_p50_ms"`
	LatencyP99MS     float64        `json:"latency_p99_ms"`
}

func summarize(stats *Stats, cfg Config, elapsed time.Duration) Summary {
	s := Summary{
		Clients:          cfg.NumClients,
		Interval:         cfg.CommandInterval.String(),
		Elapsed:          elapsed.Round(time.Millisecond).String(),
		MessagesSent:     stats.MessagesSent.Load(),
		MessagesReceived: stats.MessagesReceived.Load(),
		Acks:             stats.Acks.Load(),
		Rejected:         stats.Rejected.Load(),
		Errors:           stats.Errors.Load(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.MessagesSent) / secs
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	s.ByType = stats.byType
	if len(stats.latencies) > 0 {
		sorted := append([]float64(nil), stats.latencies...)
		sort.Float64s(sorted)
		s.LatencyMeanMS = stat.Mean(sorted, nil)
		s.LatencyP50MS = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		s.LatencyP99MS = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}
	return s
}

func printSummary(s Summary) {
	fmt.Println("\n=========================================")
	fmt.Println("ZOO WATCH SUMMARY")
	fmt.Println("=========================================")
	fmt.Printf("Elapsed:           %s\n", s.Elapsed)
	fmt.Printf("Commands Sent:     %d\n", s.MessagesSent)
	fmt.Printf("Acks / Rejected:   %d / %d\n", s.Acks, s.Rejected)
	fmt.Printf("Messages Received: %d\n", s.MessagesReceived)
	fmt.Printf("Errors:            %d\n", s.Errors)
	fmt.Printf("Throughput:        %.2f cmd/sec\n", s.ThroughputPerSec)
	if s.LatencyP50MS > 0 {
		fmt.Printf("\nReply latency:\n")
		fmt.Printf("  Mean: %.2fms\n", s.LatencyMeanMS)
		fmt.Printf("  P50:  %.2fms\n", s.LatencyP50MS)
		fmt.Printf("  P99:  %.2fms\n", s.LatencyP99MS)
	}

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	if len(types) > 0 {
		fmt.Println("\nMessages by type:")
		for _, t := range types {
			fmt.Printf("  %-20s %d\n", t, s.ByType[t])
		}
	}
	fmt.Println("=========================================")
}
