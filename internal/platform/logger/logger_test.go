package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestEventIncludesTypeAndActor(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelInfo)

	log.Event("GAME_ENDED", "DEATH_MANAGER", "all animals died")

	out := buf.String()
	for _, want := range []string{"event=GAME_ENDED", "actor=DEATH_MANAGER", "all animals died"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("shown", "tick", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "tick=3") {
		t.Errorf("expected structured attr in %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
