// Package inspector implements the scope/variable inspector from spec
// §4.6: on pause, frame locals/globals are exposed as paged, lazily
// expanded handles into an arena that is cleared on every resume.
//
// Grounded directly on original_source/debugger.py's get_scope/
// format_variable (scope_assign/scope_var_id arena, self-first key
// reordering, mapping/sequence/slotted-object branching), reworked
// against the frame.Value tagged variant instead of Python's runtime
// type introspection.
package inspector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loomscript/dbgadapter/frame"
)

// Descriptor is one entry returned by Expand, matching the DAP Variable
// shape referenced in spec §4.6/§6.
type Descriptor struct {
	Name               string
	Value              string
	Type               string
	EvaluateName       string
	VariablesReference int
	NamedVariables     int
	IndexedVariables   int
}

// ScopeDescriptor is one of the two root scopes returned for a frame
// (spec §4.6: "Locals (cheap) and Globals (expensive)").
type ScopeDescriptor struct {
	Name               string
	VariablesReference int
	Expensive          bool
	NamedVariables     int
}

type entry struct {
	value frame.Value
}

// Arena is the per-pause variable handle table (spec §3: "Variable
// handle... Handles are invalidated on resume"). It is not safe to use
// concurrently with Clear from another pause cycle racing a still-running
// Expand; callers serialize access through the same session-thread
// discipline spec §5 describes for scope_assign/scope_var_id.
type Arena struct {
	mu      sync.Mutex
	entries map[int]entry
	nextID  int
}

// NewArena returns an empty arena with the handle counter at zero.
func NewArena() *Arena {
	return &Arena{entries: make(map[int]entry)}
}

// Clear discards all handles and restarts the counter at zero (spec §4.6:
// "All handles and the ID counter are cleared on every resume").
func (a *Arena) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[int]entry)
	a.nextID = 0
}

func (a *Arena) alloc(v frame.Value) int {
	id := a.nextID
	a.nextID++
	a.entries[id] = entry{value: v}
	return id
}

// handleFor returns the variablesReference to advertise for v: 0 (no
// children) for opaque scalars, a freshly allocated handle otherwise.
func (a *Arena) handleFor(v frame.Value) int {
	if v == nil || v.Kind() == frame.KindOpaque {
		return 0
	}
	return a.alloc(v)
}

func counts(v frame.Value) (named, indexed int) {
	if v == nil {
		return 0, 0
	}
	switch v.Kind() {
	case frame.KindMapping:
		return len(v.MappingKeys()), 0
	case frame.KindSequence:
		return 0, v.SequenceLen()
	case frame.KindObject:
		if ad, ok := v.AttrDict(); ok {
			return len(ad.MappingKeys()), 0
		}
		return len(v.ObjectFields()), 0
	default:
		return 0, 0
	}
}

// Scope registers a root scope value (a frame's Locals or Globals) and
// returns its descriptor (spec §4.6).
func (a *Arena) Scope(name string, value frame.Value, expensive bool) ScopeDescriptor {
	a.mu.Lock()
	defer a.mu.Unlock()
	named, _ := counts(value)
	return ScopeDescriptor{
		Name:               name,
		VariablesReference: a.alloc(value),
		Expensive:          expensive,
		NamedVariables:     named,
	}
}

// selfFirst returns keys with "self", if present, moved to the front and
// everything else lexicographically sorted (spec §4.6: "sort keys
// lexicographically"; "If an entry named self is present, it is moved to
// the front").
func selfFirst(keys []string) []string {
	sort.Strings(keys)
	for i, k := range keys {
		if k == "self" {
			out := make([]string, 0, len(keys))
			out = append(out, "self")
			out = append(out, keys[:i]...)
			out = append(out, keys[i+1:]...)
			return out
		}
	}
	return keys
}

// Expand resolves a variablesReference previously returned by Scope or by
// a prior Expand into its child descriptors, applying the filter/paging
// rules of spec §4.6.
func (a *Arena) Expand(handle int, filter string, start, count int) ([]Descriptor, error) {
	a.mu.Lock()
	e, ok := a.entries[handle]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("inspector: unknown variable handle %d", handle)
	}

	v := e.value
	if v == nil {
		return nil, nil
	}

	switch v.Kind() {
	case frame.KindMapping:
		if filter == "indexed" {
			return nil, nil
		}
		return a.expandNamed(selfFirst(v.MappingKeys()), v.MappingGet, start, count), nil

	case frame.KindObject:
		if filter == "indexed" {
			return nil, nil
		}
		if ad, ok := v.AttrDict(); ok {
			return a.expandNamed(selfFirst(ad.MappingKeys()), ad.MappingGet, start, count), nil
		}
		return a.expandNamed(selfFirst(v.ObjectFields()), func(name string) (frame.Value, bool) {
			return v.ObjectGet(name)
		}, start, count), nil

	case frame.KindSequence:
		if filter == "named" {
			return nil, nil
		}
		n := v.SequenceLen()
		var out []Descriptor
		for i := 0; i < n; i++ {
			if start != 0 && i < start {
				continue
			}
			if count != 0 && len(out) >= count {
				break
			}
			child := v.SequenceGet(i)
			out = append(out, a.describe(fmt.Sprintf("%d", i), child))
		}
		return out, nil

	default:
		return nil, nil
	}
}

func (a *Arena) expandNamed(keys []string, get func(string) (frame.Value, bool), start, count int) []Descriptor {
	var out []Descriptor
	for i, k := range keys {
		if start != 0 && i < start {
			continue
		}
		if count != 0 && len(out) >= count {
			break
		}
		child, ok := get(k)
		if !ok {
			continue
		}
		out = append(out, a.describe(k, child))
	}
	return out
}

func (a *Arena) describe(name string, v frame.Value) Descriptor {
	named, indexed := counts(v)
	a.mu.Lock()
	ref := a.handleFor(v)
	a.mu.Unlock()
	return Descriptor{
		Name:               name,
		Value:              valueString(v),
		Type:               typeString(v),
		EvaluateName:       name,
		VariablesReference: ref,
		NamedVariables:     named,
		IndexedVariables:   indexed,
	}
}

func valueString(v frame.Value) string {
	if v == nil {
		return "None"
	}
	return v.String()
}

func typeString(v frame.Value) string {
	if v == nil {
		return "NoneType"
	}
	return v.TypeString()
}
