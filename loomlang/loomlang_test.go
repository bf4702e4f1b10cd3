package loomlang

import (
	"testing"

	"github.com/loomscript/dbgadapter/breakpoint"
	"github.com/loomscript/dbgadapter/stepping"
	"github.com/loomscript/dbgadapter/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_AssignmentAndArithmetic(t *testing.T) {
	prog, err := Parse(`
x = 1
y = 2
z = x + y * 3
`)
	require.NoError(t, err)

	tr := tracer.New(nil, breakpoint.NewRegistry(nil))
	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	z, ok := ip.globals.vars["z"]
	require.True(t, ok)
	assert.Equal(t, float64(7), z.num)
}

func TestRun_IfWhileFunctionCall(t *testing.T) {
	prog, err := Parse(`
func fib(n) {
	if n < 2 {
		return n
	}
	return fib(n - 1) + fib(n - 2)
}
result = fib(6)
`)
	require.NoError(t, err)

	tr := tracer.New(nil, breakpoint.NewRegistry(nil))
	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	result := ip.globals.vars["result"]
	assert.Equal(t, float64(8), result.num)
}

func TestRun_WhileLoopAccumulates(t *testing.T) {
	prog, err := Parse(`
i = 0
total = 0
while i < 5 {
	total = total + i
	i = i + 1
}
`)
	require.NoError(t, err)

	tr := tracer.New(nil, breakpoint.NewRegistry(nil))
	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	assert.Equal(t, float64(10), ip.globals.vars["total"].num)
}

// TestBreakpointHitsDuringRealExecution drives the breakpoint registry and
// tracer against a genuine loomlang program instead of a fake frame,
// exercising the scenario 4 hit-count contract of spec §8 end to end.
func TestBreakpointHitsDuringRealExecution(t *testing.T) {
	prog, err := Parse(`
i = 0
while i < 3 {
	i = i + 1
}
`)
	require.NoError(t, err)

	bps := breakpoint.NewRegistry(EvalCondition)
	threshold := 2
	bps.Register(&breakpoint.Breakpoint{Source: "t.loom", Line: 4, HitCondition: &threshold})

	tr := tracer.New(nil, bps)
	var stops []stepping.Reason
	tr.OnStop = func(e tracer.StopEvent) {
		stops = append(stops, e.Reason)
		tr.Resume()
	}

	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	// Line 4 ("i = i + 1") runs 3 times; hit condition 2 fires only once
	// the hit count strictly exceeds 2, i.e. on the 3rd hit.
	require.Len(t, stops, 1)
	assert.Equal(t, stepping.ReasonBreakpoint, stops[0])
}

func TestEvalCondition_ReadsLocalsOverGlobals(t *testing.T) {
	prog, err := Parse(`x = 10`)
	require.NoError(t, err)
	tr := tracer.New(nil, breakpoint.NewRegistry(nil))
	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	ok, err := EvalCondition("x == 10", ip.globals, ip.globals)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalCondition("x == 11", ip.globals, ip.globals)
	require.NoError(t, err)
	assert.False(t, ok)

	locals := newEnv()
	locals.vars["x"] = numberValue(11)
	ok, err = EvalCondition("x == 11", locals, ip.globals)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuiltins_ListDictLen(t *testing.T) {
	prog, err := Parse(`
l = list(1, 2, 3)
d = dict()
set(d, "a", 1)
n = len(l)
`)
	require.NoError(t, err)
	tr := tracer.New(nil, breakpoint.NewRegistry(nil))
	ip := New(tr, "t.loom")
	_, err = ip.Run(prog)
	require.NoError(t, err)

	assert.Equal(t, float64(3), ip.globals.vars["n"].num)
	assert.Equal(t, float64(1), ip.globals.vars["d"].dict.m["a"].num)
}
