package console

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Command describes one console command and the phrases that invoke it.
type Command struct {
	Name    string
	Aliases []string
	Help    string
}

type phrase struct {
	name  string
	alias string
}

// Registry resolves typed input to a command, tolerating aliases, prefixes
// and small typos.
type Registry struct {
	commands []Command
	phrases  []phrase
}

// Resolution is the outcome of matching one line of input.
type Resolution struct {
	Command      string
	Source       string // exact, alias, prefix or lev
	Score        float64
	Alternatives []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a command. Names and aliases are normalised.
func (r *Registry) Register(c Command) {
	c.Name = normalise(c.Name)
	if c.Name == "" {
		return
	}
	r.commands = append(r.commands, c)
	r.phrases = append(r.phrases, phrase{name: c.Name, alias: c.Name})
	for _, a := range c.Aliases {
		if n := normalise(a); n != "" {
			r.phrases = append(r.phrases, phrase{name: c.Name, alias: n})
		}
	}
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

type candidate struct {
	name   string
	source string
	score  float64
}

// Resolve matches input against every registered phrase. ok is false when
// nothing is close enough or two commands tie for the best match; in the
// tie case Alternatives lists them.
func (r *Registry) Resolve(input string) (res Resolution, ok bool) {
	in := normalise(input)
	if in == "" {
		return Resolution{}, false
	}

	var cands []candidate
	for _, p := range r.phrases {
		switch {
		case in == p.alias:
			score, source := 1.0, "exact"
			if p.alias != p.name {
				score, source = 0.97, "alias"
			}
			cands = append(cands, candidate{p.name, source, score})
		case len(in) >= 2 && strings.HasPrefix(p.alias, in):
			cands = append(cands, candidate{p.name, "prefix", 0.9})
		case len(in) >= 3:
			dist := levenshtein.ComputeDistance(in, p.alias)
			if dist > levenshteinLimit(len(p.alias)) {
				continue
			}
			score := 0.72 - 0.08*float64(dist)
			if p.alias != p.name {
				score += 0.03
			}
			cands = append(cands, candidate{p.name, "lev", score})
		}
	}
	if len(cands) == 0 {
		return Resolution{}, false
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score == cands[j].score {
			return cands[i].name < cands[j].name
		}
		return cands[i].score > cands[j].score
	})

	best := cands[0]
	res = Resolution{Command: best.name, Source: best.source, Score: best.score}
	seen := map[string]bool{best.name: true}
	tied := false
	for _, c := range cands[1:] {
		if seen[c.name] {
			continue
		}
		seen[c.name] = true
		res.Alternatives = append(res.Alternatives, c.name)
		if c.score == best.score {
			tied = true
		}
	}
	if tied {
		res.Alternatives = append([]string{best.name}, res.Alternatives...)
		res.Command = ""
		return res, false
	}
	return res, true
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

func normalise(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	var b strings.Builder
	lastSpace := false
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '?' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if r == ' ' || r == '\t' || r == '-' || r == '_' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// DefaultRegistry holds the zoo console commands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	commands := []Command{
		{Name: "feed", Aliases: []string{"f", "food", "feed all", "give food"}, Help: "feed every animal"},
		{Name: "jump", Aliases: []string{"j", "skip", "advance", "time jump"}, Help: "skip ahead one decay pass"},
		{Name: "new", Aliases: []string{"n", "new game", "restart", "reset"}, Help: "start a new population"},
		{Name: "status", Aliases: []string{"s", "show", "zoo", "look"}, Help: "show every animal"},
		{Name: "help", Aliases: []string{"h", "?", "commands"}, Help: "list commands"},
		{Name: "quit", Aliases: []string{"q", "exit", "bye"}, Help: "leave the console"},
	}
	for _, c := range commands {
		r.Register(c)
	}
	return r
}
