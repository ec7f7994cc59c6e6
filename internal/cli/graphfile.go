package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"taskgraph/internal/depref"
	"taskgraph/internal/graph"
	"taskgraph/internal/unit"
)

// unitDef is one entry of a graph description file's "units" array. Args
// and Kwargs are decoded lazily (json.RawMessage) because a value may
// either be a JSON literal or a {"$ref": "<id>"} dependency marker, and
// markers can only be resolved once every unit in the file has been
// constructed.
type unitDef struct {
	ID       string                     `json:"id"`
	Callable string                     `json:"callable"`
	Args     []json.RawMessage          `json:"args"`
	Kwargs   map[string]json.RawMessage `json:"kwargs"`
}

type graphFile struct {
	Units      []unitDef  `json:"units"`
	Precedence [][]string `json:"precedence"`
}

// refMarker is the decoded form of a {"$ref": "<id>", "field": "<name>"}
// JSON object, before it is resolved into a *depref.DepRef against an
// actual constructed unit.
type refMarker struct {
	Ref      string
	Field    string
	HasField bool
}

// LoadGraphFromFile reads a declarative graph description and builds a
// *graph.Graph from it, resolving "callable" names against registry (the
// library's Callable is an opaque Go func and cannot itself live in a JSON
// file — spec.md §1 treats the caller's functions as an external
// collaborator, and the registry stands in for that collaborator here).
//
// Grounded on the teacher's internal/cli.LoadGraphFromFile (same
// DisallowUnknownFields + trailing-data-rejection determinism goals),
// adapted from a shell-task/edge-list schema to opaque-callable units with
// DepRef markers.
func LoadGraphFromFile(path string, registry Registry) (*graph.Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	var gf graphFile
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&gf); err != nil {
		return nil, fmt.Errorf("parse graph json: %w", err)
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse graph json: trailing data")
		}
		return nil, fmt.Errorf("parse graph json: %w", err)
	}
	if len(gf.Units) == 0 {
		return nil, fmt.Errorf("parse graph json: no units")
	}

	units := make(map[string]*unit.Unit, len(gf.Units))
	ordered := make([]*unit.Unit, 0, len(gf.Units))
	for _, def := range gf.Units {
		if def.ID == "" {
			return nil, fmt.Errorf("unit definition missing \"id\"")
		}
		if _, dup := units[def.ID]; dup {
			return nil, fmt.Errorf("duplicate unit id %q", def.ID)
		}
		callable, ok := registry[def.Callable]
		if !ok {
			return nil, fmt.Errorf("unit %q: unknown callable %q (known: %s)", def.ID, def.Callable, registry)
		}
		u := unit.New(callable, unit.WithName(def.ID))
		units[def.ID] = u
		ordered = append(ordered, u)
	}

	for i, def := range gf.Units {
		args, err := resolveArgList(def.Args, units)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", def.ID, err)
		}
		kwargs, err := resolveArgMap(def.Kwargs, units)
		if err != nil {
			return nil, fmt.Errorf("unit %q: %w", def.ID, err)
		}
		ordered[i].SetArgs(args, kwargs)
	}

	g := graph.New()
	if err := g.AddTasks(ordered...); err != nil {
		return nil, err
	}
	for _, chain := range gf.Precedence {
		resolved := make([]*unit.Unit, 0, len(chain))
		for _, id := range chain {
			u, ok := units[id]
			if !ok {
				return nil, fmt.Errorf("precedence chain references unknown unit %q", id)
			}
			resolved = append(resolved, u)
		}
		if err := g.AddPrecedence(resolved...); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func resolveArgList(raws []json.RawMessage, units map[string]*unit.Unit) ([]any, error) {
	out := make([]any, len(raws))
	for i, raw := range raws {
		v, err := resolveArgValue(raw, units)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func resolveArgMap(raws map[string]json.RawMessage, units map[string]*unit.Unit) (map[string]any, error) {
	out := make(map[string]any, len(raws))
	for k, raw := range raws {
		v, err := resolveArgValue(raw, units)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func resolveArgValue(raw json.RawMessage, units map[string]*unit.Unit) (any, error) {
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err == nil {
		if refName, ok := probe["$ref"].(string); ok {
			marker := refMarker{Ref: refName}
			if field, ok := probe["field"].(string); ok {
				marker.Field = field
				marker.HasField = true
			}
			producer, ok := units[marker.Ref]
			if !ok {
				return nil, fmt.Errorf(`"$ref" names unknown unit %q`, marker.Ref)
			}
			if marker.HasField {
				return depref.New(producer, marker.Field), nil
			}
			return depref.New(producer), nil
		}
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	return v, nil
}
