// Package tracer wires the frame-level trace callback (spec §4.3) to the
// stepping engine and breakpoint registry, and implements the pause/resume
// barrier. Spec §9 is explicit that a conforming implementation must
// suspend the target thread on a condition variable rather than poll with
// a sleep loop; this package's Tracer.wait/resume pair is grounded on
// other_examples/229b8a31_krotik-ecal__interpreter-debug.go.go's
// interrogationState, which suspends a thread on sync.Cond.Wait and wakes
// it with Broadcast from whatever goroutine issues the next command.
package tracer

import (
	"sync"

	"github.com/loomscript/dbgadapter/breakpoint"
	"github.com/loomscript/dbgadapter/frame"
	"github.com/loomscript/dbgadapter/log"
	"github.com/loomscript/dbgadapter/stepping"
)

// StopEvent describes a single suspension of the target, passed to the
// OnStop callback so the session layer can emit a DAP "stopped" event
// (spec §4.7).
type StopEvent struct {
	Reason stepping.Reason
	Frame  frame.Frame
}

// Tracer is the trace-callback sink. One Tracer instance is shared by the
// whole debug session; the target interpreter calls Event for every
// call/line/return/exception it executes.
type Tracer struct {
	log         log.Logger
	Breakpoints *breakpoint.Registry

	mu      sync.Mutex
	cond    *sync.Cond
	stepper stepping.Engine

	// running is false while the target thread is parked waiting for a
	// resume command (spec §5: "target thread blocks on a condition
	// variable... until a resume-class command arrives").
	running bool

	// active is the frame the target is currently stopped at, valid only
	// while running is false.
	active frame.Frame

	// activeFrame/activeCallFrame mirror spec §4.3 step 1: activeFrame is
	// updated on every event, activeCallFrame only on call events. They
	// feed the snapshot the session layer captures when arming a step.
	activeFrame     frame.Frame
	activeCallFrame frame.Frame

	// OnStop, if set, is invoked synchronously (while still holding no
	// lock) the moment the target parks, so the session layer can emit
	// the DAP stopped event before the next request is read (spec §4.7:
	// "the stopped event is sent before the response to the command
	// that triggered the stop, when the stop is unsolicited").
	OnStop func(StopEvent)
}

// New constructs a Tracer. Breakpoints may be shared with other
// components that need to mutate the registry (e.g. the session's
// setBreakpoints handler).
func New(logger log.Logger, bps *breakpoint.Registry) *Tracer {
	if logger == nil {
		logger = log.Discard
	}
	t := &Tracer{log: logger, Breakpoints: bps, running: true}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Event is called by the host interpreter for every call/line/return/
// exception it executes (spec §4.3). It blocks the calling goroutine for
// as long as the target is paused.
func (t *Tracer) Event(evt stepping.Event, f frame.Frame) {
	t.mu.Lock()

	t.activeFrame = f
	if evt == stepping.EventCall {
		t.activeCallFrame = f
	}

	decision := t.stepper.Consult(evt, f)

	pause := decision.Pause
	reason := decision.Reason

	// Breakpoints are not evaluated on call/exception events: call-time
	// evaluation is redundant with the ensuing line event (spec §4.3
	// step 3).
	evaluateBreakpoints := evt != stepping.EventCall && evt != stepping.EventException

	if !pause && evaluateBreakpoints && !decision.SuppressBreakpoints && t.Breakpoints != nil {
		if bp := t.Breakpoints.Matches(f); bp != nil {
			pause = true
			reason = stepping.ReasonBreakpoint
		}
	}

	if !pause {
		t.mu.Unlock()
		return
	}

	t.active = f
	t.running = false
	t.mu.Unlock()

	if t.OnStop != nil {
		t.OnStop(StopEvent{Reason: reason, Frame: f})
	}

	t.mu.Lock()
	for !t.running {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// PauseRequested marks the next event as a pause point regardless of
// breakpoints or step mode (spec §4.7 "pause" command: "stop on the very
// next trace event"). It is cheap and idempotent to call multiple times.
func (t *Tracer) PauseRequested() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepper.ArmPause()
}

// ArmStep sets the step mode and stored snapshot for next/stepIn/stepOut
// (spec §4.7). snap should be the (active call frame, active line frame)
// pair captured at the moment the command was issued.
func (t *Tracer) ArmStep(mode stepping.Mode, snap stepping.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepper.Arm(mode, snap)
}

// Resume wakes the parked target thread, clearing the paused frame (spec
// §4.7 "continue": "clear the paused state, wake the target thread").
func (t *Tracer) Resume() {
	t.mu.Lock()
	t.running = true
	t.active = nil
	t.cond.Broadcast()
	t.mu.Unlock()
}

// ActiveFrame returns the frame the target is currently stopped at, or nil
// if it is running.
func (t *Tracer) ActiveFrame() frame.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Snapshot captures the (active-call-frame, active-line-frame) pair as it
// stands right now, for the session layer to pass to ArmStep when it
// issues next/stepIn/stepOut (spec §4.7: "snapshot frames; set step
// mode").
func (t *Tracer) Snapshot() stepping.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stepping.Snapshot{CallFrame: t.activeCallFrame, LineFrame: t.activeFrame}
}

// Paused reports whether the target thread is currently parked.
func (t *Tracer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.running
}

// Reset clears all stepping state and unconditionally wakes any parked
// thread, used when a client disconnects (spec §5: "on disconnect, reset
// all debugger state and resume any paused thread unconditionally").
func (t *Tracer) Reset() {
	if t.Breakpoints != nil {
		t.Breakpoints.ClearAll()
	}
	t.mu.Lock()
	t.stepper = stepping.Engine{}
	t.running = true
	t.active = nil
	t.cond.Broadcast()
	t.mu.Unlock()
}
