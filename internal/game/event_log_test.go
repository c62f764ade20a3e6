package game

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pveneroso/gogoame-2/internal/config"
)

// TestEventLogWritesJSONL verifies accepted events reach the journal in order
func TestEventLogWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(config.EventLogConfig{MaxEventsPerSec: 10000, MaxEventsPerSource: 10000})

	if el.Emit(NewEvent(EventTypeTick, 1, "", nil)) {
		t.Error("Expected Emit to fail before Start")
	}

	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events := []Event{
		NewEvent(EventTypeSymbolSpawned, 1, "", SpawnPayload{BallID: 1, Symbol: "S1_A"}),
		NewEvent(EventTypeSymbolCombined, 2, "", CombinePayload{BallID: 3, Symbol: "S2_C", Level: 2, Points: 4}),
		NewEvent(EventTypeGameOver, 3, "", GameOverPayload{Reason: "lives"}),
	}
	for i := range events {
		events[i].Sequence = uint64(i + 1)
	}
	if n := el.EmitAll(events); n != len(events) {
		t.Fatalf("Expected %d accepted, got %d", len(events), n)
	}

	el.Stop()
	el.Stop() // idempotent

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var got []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		got = append(got, line)
	}

	if len(got) != len(events) {
		t.Fatalf("Expected %d lines, got %d", len(events), len(got))
	}
	if got[0]["type"] != "symbol_spawned" {
		t.Errorf("Expected first type 'symbol_spawned', got %v", got[0]["type"])
	}
	if got[2]["sequence"] != float64(3) {
		t.Errorf("Expected last sequence 3, got %v", got[2]["sequence"])
	}
}

// TestEventLogConcurrentWriter verifies events emitted while the writer
// drains the ring are written whole and in order. Run with -race.
func TestEventLogConcurrentWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	el := NewEventLog(config.EventLogConfig{MaxEventsPerSec: 1e9, MaxEventsPerSource: 1e9})
	if err := el.Start(path); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const n = 3000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			e := NewEvent(EventTypeSymbolSpawned, uint64(i), "", SpawnPayload{BallID: uint64(i), Symbol: "S1_A"})
			e.Sequence = uint64(i)
			el.Emit(e)
			if i%500 == 0 {
				time.Sleep(2 * BatchFlushInterval)
			}
		}
	}()
	go func() {
		for i := 0; i < 200; i++ {
			el.GetStats()
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()
	el.Stop()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	var last float64
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
		}
		seq, _ := line["sequence"].(float64)
		if seq <= last {
			t.Fatalf("Expected increasing sequence, got %v after %v", seq, last)
		}
		last = seq
		lines++
	}

	if uint64(lines)+el.GetDroppedCount() != n {
		t.Errorf("Expected %d written or dropped, got %d written and %d dropped", n, lines, el.GetDroppedCount())
	}
	if last != n {
		t.Errorf("Expected last sequence %d, got %v", n, last)
	}
}

// TestEventLogRateLimit verifies the global limiter drops bursts
func TestEventLogRateLimit(t *testing.T) {
	el := NewEventLog(config.EventLogConfig{MaxEventsPerSec: 10, MaxEventsPerSource: 1000})
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	accepted := 0
	for i := 0; i < 50; i++ {
		if el.Emit(NewEvent(EventTypeSymbolSpawned, uint64(i), "", nil)) {
			accepted++
		}
	}

	if accepted >= 50 {
		t.Error("Expected some events to be rate limited")
	}
	if el.GetDroppedCount() == 0 {
		t.Error("Expected dropped count to be tracked")
	}
	if el.GetTotalCount() != uint64(accepted) {
		t.Errorf("Expected total %d, got %d", accepted, el.GetTotalCount())
	}
}

// TestEventLogPerSourceLimit verifies one event type cannot starve the rest
func TestEventLogPerSourceLimit(t *testing.T) {
	el := NewEventLog(config.EventLogConfig{MaxEventsPerSec: 100000, MaxEventsPerSource: 10})
	if err := el.Start(""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer el.Stop()

	for i := 0; i < 50; i++ {
		el.Emit(NewEvent(EventTypeSymbolDestroyed, uint64(i), "", nil))
	}

	if !el.Emit(NewEvent(EventTypeLifeLost, 1, "", nil)) {
		t.Error("Expected a different source to pass")
	}
}

// TestEventTypeText verifies event types marshal as their names
func TestEventTypeText(t *testing.T) {
	data, err := json.Marshal(NewEvent(EventTypeCurveSnapped, 1, "", nil))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["type"] != "curve_snapped" {
		t.Errorf("Expected 'curve_snapped', got %v", decoded["type"])
	}
	if decoded["source"] != "curve_snapped" {
		t.Errorf("Expected source defaulted to the type name, got %v", decoded["source"])
	}
}
