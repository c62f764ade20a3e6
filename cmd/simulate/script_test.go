package main

import (
	"strings"
	"testing"

	"github.com/pveneroso/gogoame-2/internal/control"
)

// TestParseScript verifies ordering, comments and command decoding.
func TestParseScript(t *testing.T) {
	src := `# warm up
30 drag_end
0 spawn s1_a

10 drag_start 100 200
12 {"cmd":"drag_move","x":150,"y":210}
`
	steps, err := parseScript(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseScript failed: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("Expected 4 steps, got %d", len(steps))
	}

	want := []struct {
		tick uint64
		kind control.CommandKind
	}{
		{0, control.CmdSpawn},
		{10, control.CmdDragStart},
		{12, control.CmdDragMove},
		{30, control.CmdDragEnd},
	}
	for i, w := range want {
		if steps[i].Tick != w.tick || steps[i].Cmd.Kind != w.kind {
			t.Errorf("Step %d: expected tick %d %v, got tick %d %v", i, w.tick, w.kind, steps[i].Tick, steps[i].Cmd.Kind)
		}
	}

	if steps[0].Cmd.Symbol != "S1_A" {
		t.Errorf("Expected symbol S1_A, got %q", steps[0].Cmd.Symbol)
	}
	if steps[2].Cmd.X != 150 || steps[2].Cmd.Y != 210 {
		t.Errorf("Expected (150, 210), got (%v, %v)", steps[2].Cmd.X, steps[2].Cmd.Y)
	}
	if steps[0].Cmd.Client != "script" {
		t.Errorf("Expected client script, got %q", steps[0].Cmd.Client)
	}
}

// TestParseScriptErrors verifies bad lines report their line number.
func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing command", "5\n", "line 1"},
		{"bad tick", "x spawn S1_A\n", "line 1"},
		{"unknown command", "# c\n3 teleport\n", "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScript(strings.NewReader(tt.src))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
