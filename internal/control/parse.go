package control

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
)

// jsonCommand is the wire form of a JSON command:
// {"cmd":"drag_move","x":10,"y":20}, {"cmd":"spawn","symbolId":"S1_A"},
// {"cmd":"config","values":{"friction":0.9}}.
type jsonCommand struct {
	Cmd      string         `json:"cmd"`
	SymbolID string         `json:"symbolId"`
	X        *float64       `json:"x"`
	Y        *float64       `json:"y"`
	Values   map[string]any `json:"values"`
}

// Parse decodes one client message. Messages starting with '{' are JSON,
// anything else is a whitespace separated text command with an optional
// '!' or '/' prefix ("spawn S1_A", "!drag_start 10 20", "set friction=0.9").
func Parse(raw []byte, client string) (Command, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Command{}, ErrEmptyCommand
	}

	var (
		cmd Command
		err error
	)
	if raw[0] == '{' {
		cmd, err = parseJSON(raw)
	} else {
		cmd, err = parseText(string(raw))
	}
	if err != nil {
		return Command{}, err
	}
	cmd.Client = client
	return cmd, nil
}

func parseJSON(raw []byte) (Command, error) {
	var jc jsonCommand
	if err := json.Unmarshal(raw, &jc); err != nil {
		return Command{}, errors.Wrap(err, "invalid JSON command")
	}

	kind := GetCommandKind(strings.ToLower(jc.Cmd))
	cmd := Command{Kind: kind}

	switch kind {
	case CmdSpawn:
		if jc.SymbolID == "" {
			return Command{}, errors.New("spawn requires symbolId")
		}
		cmd.Symbol = catalog.SymbolID(jc.SymbolID)
	case CmdDragStart, CmdDragMove:
		if jc.X == nil || jc.Y == nil {
			return Command{}, errors.Errorf("%s requires x and y", kind)
		}
		cmd.X, cmd.Y = *jc.X, *jc.Y
	case CmdConfig:
		if len(jc.Values) == 0 {
			return Command{}, errors.New("config requires values")
		}
		cmd.Values = jc.Values
	case CmdUnknown:
		return Command{}, errors.Wrap(ErrUnknownCommand, jc.Cmd)
	}
	return cmd, nil
}

func parseText(content string) (Command, error) {
	content = strings.TrimLeft(content, "!/")
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return Command{}, ErrEmptyCommand
	}

	name := strings.ToLower(parts[0])
	args := parts[1:]
	kind := GetCommandKind(name)
	cmd := Command{Kind: kind}

	switch kind {
	case CmdSpawn:
		if len(args) != 1 {
			return Command{}, errors.New("usage: spawn <symbolId>")
		}
		cmd.Symbol = catalog.SymbolID(strings.ToUpper(args[0]))
	case CmdDragStart, CmdDragMove:
		if len(args) != 2 {
			return Command{}, errors.Errorf("usage: %s <x> <y>", kind)
		}
		x, errX := strconv.ParseFloat(args[0], 64)
		y, errY := strconv.ParseFloat(args[1], 64)
		if errX != nil || errY != nil {
			return Command{}, errors.Errorf("%s: coordinates must be numbers", kind)
		}
		cmd.X, cmd.Y = x, y
	case CmdConfig:
		values, err := parseAssignments(args)
		if err != nil {
			return Command{}, err
		}
		cmd.Values = values
	case CmdUnknown:
		return Command{}, errors.Wrap(ErrUnknownCommand, name)
	}
	return cmd, nil
}

// parseAssignments accepts "name=value" pairs or a single "name value" pair.
// Values stay strings; config.Simulation.Set converts them to the field type.
func parseAssignments(args []string) (map[string]any, error) {
	if len(args) == 2 && !strings.Contains(args[0], "=") {
		return map[string]any{args[0]: args[1]}, nil
	}
	if len(args) == 0 {
		return nil, errors.New("usage: config <name>=<value> ...")
	}

	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" || value == "" {
			return nil, errors.Errorf("config: expected name=value, got %q", arg)
		}
		values[name] = value
	}
	return values, nil
}
