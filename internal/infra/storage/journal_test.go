package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/MRamiBalles/ZooSimulator/server/internal/events"
	"github.com/MRamiBalles/ZooSimulator/server/internal/platform/metrics"
)

func openTestJournal(t *testing.T, sessionID string) (*Journal, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	j, db, err := OpenJournal(filepath.Join(t.TempDir(), "db", "zoo.db"), sessionID, m)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return j, m
}

func gameEvents(start time.Time) []events.GameEvent {
	at := func(s int) time.Time { return start.Add(time.Duration(s) * time.Second) }
	return []events.GameEvent{
		{ID: "e1", Timestamp: at(0), Type: events.EventTypeZooGenerated, ActorID: events.ActorGenerator, Generation: 1,
			Payload: events.ZooGeneratedPayload{Population: 5, Species: map[string]int{"Elephant": 2, "Giraffe": 2, "Monkey": 1}}},
		{ID: "e2", Timestamp: at(1), Type: events.EventTypeTimeTick, ActorID: events.ActorDeathManager, Generation: 1,
			Payload: events.TickPayload{TickNumber: 1, Alive: 5}},
		{ID: "e3", Timestamp: at(2), Type: events.EventTypeAnimalsFed, ActorID: events.ActorFeeding, Generation: 1,
			Payload: events.FeedPayload{Fed: 5, Boost: 0.2}},
		{ID: "e4", Timestamp: at(3), Type: events.EventTypeLifeStateChanged, ActorID: events.ActorMonitor, TargetID: "a1", Generation: 1,
			Payload: events.LifeStatePayload{Species: "Monkey", State: "Dead"}},
		{ID: "e5", Timestamp: at(4), Type: events.EventTypeGameEnded, ActorID: events.ActorDeathManager, Generation: 1,
			Payload: events.GameEndedPayload{Population: 5, Ticks: 9}},
		{ID: "e6", Timestamp: at(5), Type: events.EventTypeZooGenerated, ActorID: events.ActorGenerator, Generation: 2,
			Payload: events.ZooGeneratedPayload{Population: 5}},
	}
}

func TestJournalHistory(t *testing.T) {
	j, m := openTestJournal(t, "s1")
	for _, e := range gameEvents(time.Now()) {
		if err := j.Append(e); err != nil {
			t.Fatalf("Append %s: %v", e.ID, err)
		}
	}

	ctx := context.Background()
	tests := []struct {
		name   string
		filter events.EventFilter
		want   []string
	}{
		{"all", events.EventFilter{}, []string{"e1", "e2", "e3", "e4", "e5", "e6"}},
		{"by type", events.EventFilter{Type: events.EventTypeZooGenerated}, []string{"e1", "e6"}},
		{"by generation", events.EventFilter{Generation: 2}, []string{"e6"}},
		{"limit keeps latest", events.EventFilter{Limit: 2}, []string{"e5", "e6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.History(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	fed, err := j.History(ctx, events.EventFilter{Type: events.EventTypeAnimalsFed})
	if err != nil {
		t.Fatal(err)
	}
	var p events.FeedPayload
	if err := json.Unmarshal(fed[0].Payload.(json.RawMessage), &p); err != nil || p.Fed != 5 {
		t.Errorf("payload did not survive the round trip: %+v, %v", p, err)
	}

	journal := m.Snapshot()["journal"].(map[string]interface{})
	if journal["writes"].(int64) != 6 || journal["errors"].(int64) != 0 {
		t.Errorf("unexpected journal metrics %+v", journal)
	}
}

func TestJournalGames(t *testing.T) {
	j, _ := openTestJournal(t, "s1")
	for _, e := range gameEvents(time.Now()) {
		if err := j.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	games, err := j.Games(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}
	first, second := games[0], games[1]
	if first.Generation != 1 || first.Population != 5 || first.EndedAt == nil || first.Ticks != 9 {
		t.Errorf("unexpected first game %+v", first)
	}
	if second.Generation != 2 || second.EndedAt != nil {
		t.Errorf("second game should still be running: %+v", second)
	}
}

func TestGameEndedBeforeStarted(t *testing.T) {
	j, _ := openTestJournal(t, "s1")
	now := time.Now()

	if err := j.Append(events.GameEvent{ID: "end", Timestamp: now, Type: events.EventTypeGameEnded, Generation: 3,
		Payload: events.GameEndedPayload{Population: 4, Ticks: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(events.GameEvent{ID: "start", Timestamp: now.Add(-time.Second), Type: events.EventTypeZooGenerated, Generation: 3,
		Payload: events.ZooGeneratedPayload{Population: 4}}); err != nil {
		t.Fatal(err)
	}

	games, err := j.Games(context.Background())
	if err != nil || len(games) != 1 {
		t.Fatalf("expected one game, got %v, %v", games, err)
	}
	if games[0].Population != 4 || games[0].EndedAt == nil || games[0].Ticks != 2 {
		t.Errorf("out-of-order writes lost data: %+v", games[0])
	}
}

func TestSessionsAreSeparate(t *testing.T) {
	m := metrics.NewCollector()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "zoo.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	a := NewJournal("a", NewSQLiteEventRepository(db), NewSQLiteGameRepository(db), m)
	b := NewJournal("b", NewSQLiteEventRepository(db), NewSQLiteGameRepository(db), m)
	a.Append(events.GameEvent{ID: "a1", Timestamp: time.Now(), Type: events.EventTypeTimeTick, Generation: 1})
	b.Append(events.GameEvent{ID: "b1", Timestamp: time.Now(), Type: events.EventTypeTimeTick, Generation: 1})

	got, err := a.History(context.Background(), events.EventFilter{})
	if err != nil || len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("session a sees %v, %v", got, err)
	}
	all, err := NewSQLiteGameRepository(db).Games(context.Background(), "")
	if err != nil || len(all) != 0 {
		t.Errorf("ticks alone must not create games: %v, %v", all, err)
	}
}

func TestRecap(t *testing.T) {
	db, err := InitSQLite(filepath.Join(t.TempDir(), "zoo.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := NewSQLiteEventRepository(db)
	j := NewJournal("s1", repo, NewSQLiteGameRepository(db), metrics.NewCollector())
	for _, e := range gameEvents(time.Now()) {
		j.Append(e)
	}

	recap, err := NewRecapper(repo).GenerateRecap(context.Background(), "s1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recap) != 4 {
		t.Fatalf("expected 4 recap lines without the tick, got %d: %+v", len(recap), recap)
	}

	tests := []struct {
		summary string
		impact  string
	}{
		{"A new zoo opened with 5 animals.", "NEUTRAL"},
		{"5 animals were fed.", "POSITIVE"},
		{"A Monkey is now Dead.", "NEGATIVE"},
		{"Every animal died after 9 ticks.", "NEGATIVE"},
	}
	for i, tt := range tests {
		if recap[i].Summary != tt.summary || recap[i].Impact != tt.impact {
			t.Errorf("line %d: got %q/%s, want %q/%s", i, recap[i].Summary, recap[i].Impact, tt.summary, tt.impact)
		}
	}
}
