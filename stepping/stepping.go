// Package stepping implements the stepping state machine described in spec
// §4.5. It is a faithful reimplementation of the Ren'Py debugger's
// base_trace dispatch, including the documented quirk where the second and
// third "Into" clauses key on the same condition (spec §9, Open Questions).
package stepping

import "github.com/loomscript/dbgadapter/frame"

// Mode is the step-mode enum from spec §3.
type Mode int

const (
	None Mode = iota
	Next
	Into
	Out
	// SingleExec is transient: the very next event of any kind pauses and
	// returns the mode to None. It is used to materialize stepIn/stepOut
	// at the first user-visible frame and to honor a pause request
	// (spec §4.5).
	SingleExec
)

// Event is the trace event kind delivered by the tracer (spec §4.3).
type Event int

const (
	EventCall Event = iota
	EventLine
	EventReturn
	EventException
)

// Snapshot is the stored-frame pair captured when a step is issued (spec
// §3: "a pair (active-call-frame, active-line-frame)").
type Snapshot struct {
	CallFrame frame.Frame
	LineFrame frame.Frame
}

// Reason is the pause reason vocabulary from spec §3.
type Reason string

const (
	ReasonBreakpoint Reason = "breakpoint"
	ReasonStep       Reason = "step"
	ReasonStepIn     Reason = "stepIn"
	ReasonStepOut    Reason = "stepOut"
	ReasonPause      Reason = "pause"
)

// Decision is what the engine decided for a single tracer event.
type Decision struct {
	// Pause is true if this event should suspend the target.
	Pause bool
	// Reason is valid only when Pause is true.
	Reason Reason
	// SuppressBreakpoints is true when the stepping engine already
	// decided this event's fate and breakpoint evaluation must be
	// skipped for it (spec §4.5: "each may suppress breakpoint
	// evaluation for the current event").
	SuppressBreakpoints bool
}

// Engine holds the current step Mode and stored Snapshot, and implements
// the transition table of spec §4.5.
type Engine struct {
	Mode     Mode
	Snapshot Snapshot

	// pendingReason is the pause reason recorded by whichever clause
	// armed SingleExec; consumed the next time Consult observes
	// Mode == SingleExec.
	pendingReason Reason
}

// Arm sets Mode to m and stores snap, as done by the DAP session handlers
// for next/stepIn/stepOut (spec §4.7: "snapshot frames; set step mode").
func (e *Engine) Arm(m Mode, snap Snapshot) {
	e.Mode = m
	e.Snapshot = snap
}

// ArmPause forces the very next event to pause with ReasonPause (spec
// §4.7 "pause": "set external-pause flag; the next tracer event will
// honor it"), regardless of any in-progress step.
func (e *Engine) ArmPause() {
	e.Mode = SingleExec
	e.pendingReason = ReasonPause
}

// Consult runs the transition table for one tracer event against the
// current frame f, returning whether to pause and updating e.Mode in
// place. The clauses are checked in the exact order spec §4.5 lists them;
// this order reproduces the documented quirk where the second and third
// "Into" clauses are both keyed on
// "F is S.line-frame ∧ E ≠ return" — the second clause fires first
// (downgrading to Next), so the third (arming SingleExec with reason
// "step") is unreachable, exactly as in the source this was distilled
// from.
func (e *Engine) Consult(evt Event, f frame.Frame) Decision {
	if e.Mode == None {
		return Decision{}
	}

	// SingleExec -> None, pause (reason kept from whatever armed it).
	if e.Mode == SingleExec {
		reason := e.pendingReason
		e.Mode = None
		return Decision{Pause: true, Reason: reason, SuppressBreakpoints: true}
	}

	if e.Mode == Into && evt == EventCall && frame.Same(f.Parent(), e.Snapshot.LineFrame) {
		// We just entered a callee: arm SingleExec to land on its first
		// line.
		e.Mode = SingleExec
		e.pendingReason = ReasonStepIn
		return Decision{SuppressBreakpoints: true}
	}

	if e.Mode == Into && frame.Same(f, e.Snapshot.LineFrame) && evt != EventReturn {
		// Nothing to step into on this line: downgrade to Next. This
		// clause and the next one share the same guard; this one wins
		// (first-wins order is the documented quirk, spec §9).
		e.Mode = Next
		return Decision{}
	}

	if e.Mode == Into && frame.Same(f, e.Snapshot.LineFrame) && evt != EventReturn {
		// Unreachable: the clause above already consumed this guard by
		// downgrading Mode to Next. Kept to mirror the source's
		// structure and documented as dead in spec §9.
		e.Mode = SingleExec
		e.pendingReason = ReasonStep
		return Decision{SuppressBreakpoints: true}
	}

	if e.Mode == Out && frame.Same(f, e.Snapshot.LineFrame) && evt == EventReturn {
		e.Mode = SingleExec
		e.pendingReason = ReasonStepOut
		return Decision{SuppressBreakpoints: true}
	}

	if e.Mode == Next && frame.Same(f, e.Snapshot.LineFrame) && evt != EventCall {
		e.Mode = None
		return Decision{Pause: true, Reason: ReasonStep, SuppressBreakpoints: true}
	}

	return Decision{}
}
