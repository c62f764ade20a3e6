package main

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/control"
)

// scriptStep is one input applied before the given tick runs.
type scriptStep struct {
	Tick uint64
	Cmd  control.Command
	Line int
}

// parseScript reads "<tick> <command>" lines. Blank lines and lines starting
// with '#' are skipped. Commands use the same text grammar as WebSocket
// clients, e.g. "12 drag_move 140 300" or "0 spawn S1_A".
func parseScript(r io.Reader) ([]scriptStep, error) {
	var steps []scriptStep

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		tickStr, rest, ok := strings.Cut(text, " ")
		if !ok {
			return nil, errors.Errorf("line %d: expected \"<tick> <command>\"", line)
		}
		tick, err := strconv.ParseUint(tickStr, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: bad tick", line)
		}
		cmd, err := control.Parse([]byte(rest), "script")
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		steps = append(steps, scriptStep{Tick: tick, Cmd: cmd, Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Tick < steps[j].Tick })
	return steps, nil
}
