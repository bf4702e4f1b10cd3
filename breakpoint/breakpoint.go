// Package breakpoint implements the source+line breakpoint registry (spec
// §3, §4.4), grounded on the Breakpoint/active_breakpoints set in the
// Ren'Py debugger this system was distilled from.
package breakpoint

import (
	"sync"

	"github.com/loomscript/dbgadapter/frame"
)

// Breakpoint is the tuple described in spec §3: source path, line,
// optional condition, optional hit-count threshold, and a mutable
// hit-counter.
type Breakpoint struct {
	Source string
	Line   int

	// Condition, if non-empty, is evaluated via the host's EvalFunc and
	// must be truthy (without raising) for the breakpoint to fire.
	Condition string

	// HitCondition, if non-nil, is the threshold the hit-counter must
	// strictly exceed (spec §4.4, §9: "Hit-count comparison uses strict <
	// against times_hit post-increment").
	HitCondition *int

	hits int
}

// Times reports how many times this breakpoint's location+condition have
// matched, independent of the hit-count threshold. Exposed for tests and
// diagnostics.
func (b *Breakpoint) Times() int {
	return b.hits
}

// applies implements spec §3's predicate:
//
//	matches(F, B) ⇔ F.source = B.source ∧ F.line = B.line ∧
//	                 condition-truthy(B, F) ∧
//	                 (B.counter absent ∨ B.counter < ++B.hits)
//
// Condition evaluation failures (including a raised host error) are
// swallowed and treated as non-matching (spec §4.4, §8: "Condition
// raising an exception never matches").
func (b *Breakpoint) applies(f frame.Frame, eval frame.EvalFunc) bool {
	if f.Source() != b.Source || f.Line() != b.Line {
		return false
	}

	if b.Condition != "" {
		if eval == nil {
			return false
		}
		ok, err := eval(b.Condition, f.Locals(), f.Globals())
		if err != nil || !ok {
			return false
		}
	}

	b.hits++

	if b.HitCondition != nil && *b.HitCondition >= b.hits {
		return false
	}

	return true
}

// Registry is the synchronized breakpoint set (spec §4.4: "all operations
// acquire a single mutex"; §3: "Breakpoint registry mutations happen only
// under the registry lock; evaluation reads the set under the same lock").
type Registry struct {
	mu   sync.Mutex
	bkps []*Breakpoint
	eval frame.EvalFunc
}

// NewRegistry constructs an empty registry. eval is the host condition
// evaluator; it may be nil if conditional breakpoints are never used.
func NewRegistry(eval frame.EvalFunc) *Registry {
	return &Registry{eval: eval}
}

// Register adds a breakpoint to the active set.
func (r *Registry) Register(bp *Breakpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bkps = append(r.bkps, bp)
}

// Clear removes every breakpoint whose source equals the given path (spec
// §4.4: "clear(source) (remove all bps whose source equals the given
// path)").
func (r *Registry) Clear(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.bkps[:0]
	for _, bp := range r.bkps {
		if bp.Source != source {
			kept = append(kept, bp)
		}
	}
	r.bkps = kept
}

// ClearAll removes every breakpoint, used on session reset (spec §5, §7).
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bkps = nil
}

// Matches returns the first breakpoint whose predicate holds for f, or nil.
// Iteration order is unspecified but stable within a single call (spec
// §4.4).
func (r *Registry) Matches(f frame.Frame) *Breakpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bp := range r.bkps {
		if bp.applies(f, r.eval) {
			return bp
		}
	}
	return nil
}
