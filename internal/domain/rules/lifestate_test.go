package rules

import (
	"encoding/json"
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		health float64
		want   LifeState
	}{
		{"full health", 1.0, Alive},
		{"just above threshold", 0.3001, Alive},
		{"at threshold", 0.30, Dying},
		{"low", 0.05, Dying},
		{"zero", 0.0, Dead},
		{"negative", -0.2, Dead},
		{"nan", math.NaN(), Dead},
		{"above one", 1.5, Alive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.health, DefaultDyingThreshold); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.health, got, tt.want)
			}
		})
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev := Classify(0, DefaultDyingThreshold)
	for i := 1; i <= 1000; i++ {
		h := float64(i) / 1000
		got := Classify(h, DefaultDyingThreshold)
		if got < prev {
			t.Fatalf("Classify(%v) = %v is less alive than Classify of a lower health (%v)", h, got, prev)
		}
		prev = got
	}
}

func TestClampHealth(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{3.5, 1},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampHealth(tt.in); got != tt.want {
			t.Errorf("ClampHealth(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLifeStateRendering(t *testing.T) {
	if Alive.String() != "Alive" || Dying.String() != "Dying" || Dead.String() != "Dead" {
		t.Errorf("unexpected state names: %v %v %v", Alive, Dying, Dead)
	}
	if Alive.Color() != "green" || Dying.Color() != "red" || Dead.Color() != "black" {
		t.Errorf("unexpected state colors")
	}
	if got := LifeState(9).Color(); got != "gray" {
		t.Errorf("unknown state color = %q, want gray", got)
	}
	if got := FormatPercent(0.875); got != "87.50 %" {
		t.Errorf("FormatPercent(0.875) = %q", got)
	}
}

func TestLifeStateJSONRoundTrip(t *testing.T) {
	for _, s := range AllLifeStates {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", s, err)
		}
		var got LifeState
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != s {
			t.Errorf("round trip of %v = %v", s, got)
		}
	}

	var s LifeState
	if err := json.Unmarshal([]byte(`"Zombie"`), &s); err == nil {
		t.Error("expected error for unknown state name")
	}
}
