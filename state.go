package msl

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// persistedState is the on-disk shape of the host-opaque State blob (spec
// §6 "Persisted state"), following ternarybob-iter's internal/config
// pattern: a tagged struct decoded/encoded wholesale with
// github.com/BurntSushi/toml rather than a hand-rolled format.
type persistedState struct {
	Units []persistedUnit `toml:"unit"`
}

type persistedUnit struct {
	ID        string             `toml:"id"`
	Variables []persistedVariable `toml:"variable"`
}

type persistedVariable struct {
	Name    string `toml:"name"`
	ScopeID int    `toml:"scope_id"` // 0 means unscoped
	Kind    string `toml:"kind"`
	Value   string `toml:"value"`
}

// SaveState serializes, per installed unit, the current value of every
// persistent (global/static/exported/public) variable, one entry per bound scope for
// scoped variables (spec §6 "On shutdown the environment serializes...").
// The returned bytes are the opaque State the host stores wherever it
// likes; the Environment boundary never assumes a filesystem.
func (e *Environment) SaveState() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ps persistedState
	for _, unit := range e.units {
		if !unit.VariableCarryover {
			continue
		}
		pu := persistedUnit{ID: unit.ID}
		for _, v := range unit.Variables {
			if !(v.Flags.Global || v.Flags.Static || v.Flags.Exported || v.Flags.Public) {
				continue
			}
			pu.Variables = append(pu.Variables, snapshotVariable(v)...)
		}
		if len(pu.Variables) > 0 {
			ps.Units = append(ps.Units, pu)
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&ps); err != nil {
		return nil, fmt.Errorf("encode persisted state: %w", err)
	}
	return buf.Bytes(), nil
}

func snapshotVariable(v *Variable) []persistedVariable {
	var out []persistedVariable
	if v.Scoped {
		for scope := 1; scope <= MaxScope; scope++ {
			val := v.Get(scope)
			if val.IsNull() {
				continue
			}
			out = append(out, persistedVariable{Name: v.Name, ScopeID: scope, Kind: literalKind(val), Value: val.String()})
		}
		return out
	}
	val := v.Get(0)
	if val.IsNull() {
		return nil
	}
	return []persistedVariable{{Name: v.Name, Kind: literalKind(val), Value: val.String()}}
}

// literalKind names val's kind for the persisted-state "kind" tag; enums
// persist as their string name and restore as a String (the original
// ordinal is host-assigned and may not even exist across a restart).
func literalKind(val *Value) string {
	switch val.Kind {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// RestoreState writes values from a previously saved State blob back into
// the corresponding linkages' variables (spec §6 "On startup the state is
// supplied to restoreState"). Missing or moved variables — a unit id no
// longer installed, or a variable no longer declared — are tolerated with
// a warning, never an error.
func (e *Environment) RestoreState(data []byte) error {
	var ps persistedState
	if _, err := toml.Decode(string(data), &ps); err != nil {
		return fmt.Errorf("decode persisted state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, pu := range ps.Units {
		unit, ok := e.units[pu.ID]
		if !ok {
			e.logger.Warn(CatState, "restoreState: unit %q no longer installed, skipping", pu.ID)
			continue
		}
		for _, pv := range pu.Variables {
			v := unit.FindLocalVariable(pv.Name)
			if v == nil {
				e.logger.Warn(CatState, "restoreState: unit %q has no variable %q, skipping", pu.ID, pv.Name)
				continue
			}
			val, err := parseLiteral(pv.Kind, pv.Value)
			if err != nil {
				e.logger.Warn(CatState, "restoreState: %s.%s: %v", pu.ID, pv.Name, err)
				continue
			}
			v.Set(pv.ScopeID, val)
		}
	}
	return nil
}

func parseLiteral(kind, s string) (*Value, error) {
	switch kind {
	case "int":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int literal %q: %w", s, err)
		}
		return IntValue(n), nil
	case "float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", s, err)
		}
		return FloatValue(f), nil
	case "bool":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("bad bool literal %q: %w", s, err)
		}
		return BoolValue(b), nil
	default:
		return StringValue(s), nil
	}
}

// SaveStateToFile and LoadStateFromFile are a convenience pair for the
// CLI/console host, which persists across process restarts by writing to
// a plain file (spec §6); any other host is free to route the opaque
// []byte from SaveState/RestoreState elsewhere (a database row, a plugin
// state chunk).
func (e *Environment) SaveStateToFile(path string) error {
	data, err := e.SaveState()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (e *Environment) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}
	return e.RestoreState(data)
}
