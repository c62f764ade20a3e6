package control

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/catalog"
	"github.com/pveneroso/gogoame-2/internal/config"
)

// fakeEngine records calls instead of queueing requests.
type fakeEngine struct {
	mu      sync.Mutex
	cat     *catalog.Catalog
	calls   []string
	sources []string
	refuse  bool
	paused  bool
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	cat, err := catalog.Generate(10, 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return &fakeEngine{cat: cat}
}

func (f *fakeEngine) record(call, source string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.sources = append(f.sources, source)
	return !f.refuse
}

func (f *fakeEngine) Spawn(id catalog.SymbolID, source string) bool {
	return f.record("spawn "+string(id), source)
}
func (f *fakeEngine) DragStart(x, y float64, source string) bool { return f.record("drag_start", source) }
func (f *fakeEngine) DragMove(x, y float64, source string) bool { return f.record("drag_move", source) }
func (f *fakeEngine) DragEnd(source string) bool { return f.record("drag_end", source) }
func (f *fakeEngine) RegenerateCatalog(source string) bool { return f.record("regenerate", source) }
func (f *fakeEngine) Restart(source string) bool { return f.record("restart", source) }
func (f *fakeEngine) Catalog() *catalog.Catalog { return f.cat }

func (f *fakeEngine) PatchConfig(values map[string]any, source string) error {
	next := config.DefaultSimulation()
	if err := next.Apply(values); err != nil {
		return err
	}
	f.record("config", source)
	return nil
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *fakeEngine) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestHandler(t *testing.T, engine Engine, cfg RateLimitConfig) *Handler {
	t.Helper()
	h := NewHandler(engine, cfg)
	t.Cleanup(h.Close)
	return h
}

// TestHandlerDispatch verifies each command kind reaches the engine
func TestHandlerDispatch(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, DefaultRateLimitConfig)

	inputs := []string{
		"spawn S1_A",
		"drag_start 10 20",
		"drag_move 30 20",
		"drag_end",
		"restart",
		"regenerate",
		"config friction=0.9",
	}
	for _, in := range inputs {
		cmd, err := Parse([]byte(in), "client-1")
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if err := h.ProcessCommand(cmd); err != nil {
			t.Errorf("ProcessCommand(%q) failed: %v", in, err)
		}
	}

	want := []string{"spawn S1_A", "drag_start", "drag_move", "drag_end", "restart", "regenerate", "config"}
	got := engine.Calls()
	if len(got) != len(want) {
		t.Fatalf("Expected %d calls, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], got[i])
		}
		if engine.sources[i] != "client-1" {
			t.Errorf("Call %d: expected source client-1, got %s", i, engine.sources[i])
		}
	}
}

// TestHandlerPauseResume verifies direct game control commands
func TestHandlerPauseResume(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, DefaultRateLimitConfig)

	h.ProcessCommand(Command{Kind: CmdPause, Client: "c"})
	if !engine.paused {
		t.Error("Expected engine paused")
	}
	h.ProcessCommand(Command{Kind: CmdResume, Client: "c"})
	if engine.paused {
		t.Error("Expected engine resumed")
	}
}

// TestHandlerErrors verifies refusals are reported with their cause
func TestHandlerErrors(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, DefaultRateLimitConfig)

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"unknown symbol", Command{Kind: CmdSpawn, Symbol: "S99_Z", Client: "c"}, ErrUnknownSymbol},
		{"unknown kind", Command{Kind: CmdUnknown, Client: "c"}, ErrUnknownCommand},
		{"unknown parameter", Command{Kind: CmdConfig, Values: map[string]any{"gravityFlip": true}, Client: "c"}, config.ErrUnknownParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.ProcessCommand(tt.cmd)
			if errors.Cause(err) != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	engine.refuse = true
	if err := h.ProcessCommand(Command{Kind: CmdDragEnd, Client: "c"}); err != ErrRejected {
		t.Errorf("Expected ErrRejected for a full engine queue, got %v", err)
	}
}

// TestHandlerRateLimit verifies per-client budgets are independent
func TestHandlerRateLimit(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, RateLimitConfig{PerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		if err := h.ProcessCommand(Command{Kind: CmdDragEnd, Client: "greedy"}); err != nil {
			t.Fatalf("Command %d within burst failed: %v", i, err)
		}
	}
	if err := h.ProcessCommand(Command{Kind: CmdDragEnd, Client: "greedy"}); err != ErrRateLimited {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
	if err := h.ProcessCommand(Command{Kind: CmdDragEnd, Client: "polite"}); err != nil {
		t.Errorf("Expected a second client to have its own budget, got %v", err)
	}

	h.Forget("greedy")
	if err := h.ProcessCommand(Command{Kind: CmdDragEnd, Client: "greedy"}); err != nil {
		t.Errorf("Expected a forgotten client to start fresh, got %v", err)
	}
}

// TestRateLimiterSweep verifies idle clients are dropped
func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerSecond: 10, Burst: 1, IdleTTL: time.Minute})
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	if rl.Len() != 2 {
		t.Fatalf("Expected 2 clients, got %d", rl.Len())
	}

	rl.sweep(time.Now().Add(2 * time.Minute))
	if rl.Len() != 0 {
		t.Errorf("Expected idle clients swept, got %d", rl.Len())
	}
	rl.Stop() // idempotent
}

// TestCommandQueuePreservesClientOrder verifies one client's commands are
// processed in order and replies are delivered
func TestCommandQueuePreservesClientOrder(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, DefaultRateLimitConfig)
	q := NewCommandQueue(h, QueueConfig{BufferSize: 64, Workers: 4})
	q.Start()

	var replies sync.WaitGroup
	kinds := []CommandKind{CmdDragStart, CmdDragMove, CmdDragMove, CmdDragMove, CmdDragEnd}
	for _, k := range kinds {
		replies.Add(1)
		ok := q.Enqueue(Command{Kind: k, Client: "drawer", Reply: func(err error) {
			if err != nil {
				t.Errorf("Unexpected reply error: %v", err)
			}
			replies.Done()
		}})
		if !ok {
			t.Fatal("Enqueue failed")
		}
	}
	replies.Wait()
	q.Stop()
	q.Stop() // idempotent

	got := engine.Calls()
	want := []string{"drag_start", "drag_move", "drag_move", "drag_move", "drag_end"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	stats := q.Stats()
	if stats.Enqueued != 5 || stats.Processed != 5 || stats.Rejected != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

// TestCommandQueueDropsWhenFull verifies Enqueue never blocks
func TestCommandQueueDropsWhenFull(t *testing.T) {
	engine := newFakeEngine(t)
	h := newTestHandler(t, engine, DefaultRateLimitConfig)
	q := NewCommandQueue(h, QueueConfig{BufferSize: 1, Workers: 1})

	if !q.Enqueue(Command{Kind: CmdDragEnd, Client: "c"}) {
		t.Fatal("Expected first enqueue to succeed")
	}
	if q.Enqueue(Command{Kind: CmdDragEnd, Client: "c"}) {
		t.Error("Expected enqueue on a full shard to fail")
	}
	if q.Stats().Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", q.Stats().Dropped)
	}
}
