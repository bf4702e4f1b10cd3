package session

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/loomscript/dbgadapter/breakpoint"
	"github.com/loomscript/dbgadapter/frame"
	"github.com/loomscript/dbgadapter/inspector"
	"github.com/loomscript/dbgadapter/loomlang"
	"github.com/loomscript/dbgadapter/stepping"
	"github.com/loomscript/dbgadapter/tracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	source string
	line   int
	parent *fakeFrame
}

var _ frame.Frame = (*fakeFrame)(nil)

func (f *fakeFrame) Source() string { return f.source }
func (f *fakeFrame) Line() int      { return f.line }
func (f *fakeFrame) Parent() frame.Frame {
	if f.parent == nil {
		return nil
	}
	return f.parent
}
func (f *fakeFrame) Locals() frame.Value  { return fakeMapping{} }
func (f *fakeFrame) Globals() frame.Value { return fakeMapping{} }
func (f *fakeFrame) FuncName() string     { return "main" }
func (f *fakeFrame) ParamNames() []string { return nil }
func (f *fakeFrame) IsVariadic() bool     { return false }
func (f *fakeFrame) BytecodeOffset() int  { return -1 }

type fakeMapping struct{}

func (fakeMapping) Kind() frame.Kind                      { return frame.KindMapping }
func (fakeMapping) String() string                        { return "{}" }
func (fakeMapping) TypeString() string                    { return "dict" }
func (fakeMapping) MappingKeys() []string                 { return nil }
func (fakeMapping) MappingGet(string) (frame.Value, bool) { return nil, false }
func (fakeMapping) SequenceLen() int                      { return 0 }
func (fakeMapping) SequenceGet(int) frame.Value           { return nil }
func (fakeMapping) ObjectFields() []string                { return nil }
func (fakeMapping) ObjectGet(string) (frame.Value, bool)  { return nil, false }
func (fakeMapping) AttrDict() (frame.Value, bool)         { return nil, false }

// testHarness wires a Server's serveOne loop to one end of an in-memory
// pipe, letting tests act as the DAP client on the other end without
// binding a real TCP port.
type testHarness struct {
	t      *testing.T
	client net.Conn
	reader *bufio.Reader
	seq    int
	tracer *tracer.Tracer
	bps    *breakpoint.Registry
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	bps := breakpoint.NewRegistry(loomlang.EvalCondition)
	tr := tracer.New(nil, bps)
	srv := NewServer(Config{
		Tracer:      tr,
		Breakpoints: bps,
		Arena:       inspector.NewArena(),
	})

	go srv.serveOne(serverConn)

	return &testHarness{t: t, client: clientConn, reader: bufio.NewReader(clientConn), tracer: tr, bps: bps}
}

func (h *testHarness) send(command string, args interface{}) {
	h.seq++
	raw, _ := json.Marshal(args)
	req := &dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: h.seq, Type: "request"},
		Command:         command,
		Arguments:       raw,
	}
	require.NoError(h.t, dap.WriteProtocolMessage(h.client, req))
}

func (h *testHarness) recv() dap.Message {
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := dap.ReadBaseMessage(h.reader)
	require.NoError(h.t, err)
	m, err := dap.DecodeProtocolMessage(msg)
	require.NoError(h.t, err)
	return m
}

func TestInitialize_RespondsThenEmitsInitialized(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("initialize", map[string]interface{}{})
	resp := h.recv()
	initResp, ok := resp.(*dap.InitializeResponse)
	require.True(t, ok)
	assert.True(t, initResp.Success)
	assert.True(t, initResp.Body.SupportsConfigurationDoneRequest)

	ev := h.recv()
	_, ok = ev.(*dap.InitializedEvent)
	assert.True(t, ok)
}

func TestSetBreakpoints_VerifiedInRequestOrder(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "t.loom"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 2}, {Line: 5}},
	})

	resp := h.recv().(*dap.SetBreakpointsResponse)
	require.Len(t, resp.Body.Breakpoints, 2)
	assert.True(t, resp.Body.Breakpoints[0].Verified)
	assert.Equal(t, 2, resp.Body.Breakpoints[0].Line)
	assert.Equal(t, 5, resp.Body.Breakpoints[1].Line)
}

// TestScenario_HitBreakpointThenStepOver reproduces spec §8 scenarios 1
// and 2: a breakpoint stop, then `next` stepping to the following line.
func TestScenario_HitBreakpointThenStepOver(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("initialize", map[string]interface{}{})
	h.recv() // initialize response
	h.recv() // initialized event

	h.send("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "t.loom"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 2}},
	})
	h.recv() // setBreakpoints response

	h.send("configurationDone", map[string]interface{}{})
	h.recv()

	h.send("launch", map[string]interface{}{})
	h.recv()

	// One activation record whose current line advances, as a host
	// interpreter's frame does; stepping compares frames by identity.
	fr := &fakeFrame{source: "t.loom", line: 1}

	go func() {
		h.tracer.Event(stepping.EventCall, fr)
		h.tracer.Event(stepping.EventLine, fr)
		fr.line = 2
		h.tracer.Event(stepping.EventLine, fr)
	}()

	stopped := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)
	assert.Contains(t, stopped.Body.Description, ":2")

	h.send("next", map[string]interface{}{})
	h.recv() // next response

	fr.line = 3
	go h.tracer.Event(stepping.EventLine, fr)

	stopped2 := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "step", stopped2.Body.Reason)
	assert.Contains(t, stopped2.Body.Description, ":3")
}

func TestDisconnect_ResumesTargetAndClearsBreakpoints(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "t.loom"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 2}},
	})
	h.recv()

	line := &fakeFrame{source: "t.loom", line: 2}
	returned := make(chan struct{})
	go func() {
		h.tracer.Event(stepping.EventLine, line)
		close(returned)
	}()

	require.Eventually(t, h.tracer.Paused, time.Second, time.Millisecond)
	h.recv() // stopped event

	h.send("disconnect", map[string]interface{}{})
	h.recv() // disconnect response

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("target did not resume after disconnect")
	}
	assert.Nil(t, h.bps.Matches(line))
}

// TestScenario_ConditionalBreakpoint reproduces spec §8 scenario 3: a real
// loomlang loop runs against a breakpoint with a condition, which must
// fire on exactly one iteration, and the reported Locals scope must show
// the loop variable at that exact value.
func TestScenario_ConditionalBreakpoint(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("initialize", map[string]interface{}{})
	h.recv() // initialize response
	h.recv() // initialized event

	h.send("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "t.loom"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 4, Condition: "i == 3"}},
	})
	h.recv() // setBreakpoints response

	h.send("configurationDone", map[string]interface{}{})
	h.recv()

	h.send("launch", map[string]interface{}{})
	h.recv()

	prog, err := loomlang.Parse(`
i = 0
while i < 5 {
	x = i
	i = i + 1
}
`)
	require.NoError(t, err)
	ip := loomlang.New(h.tracer, "t.loom")
	go func() { _, _ = ip.Run(prog) }()

	stopped := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)
	assert.Contains(t, stopped.Body.Description, ":4")

	h.send("scopes", dap.ScopesArguments{FrameId: 0})
	scopesResp := h.recv().(*dap.ScopesResponse)
	require.NotEmpty(t, scopesResp.Body.Scopes)
	locals := scopesResp.Body.Scopes[0]
	assert.Equal(t, "Locals", locals.Name)

	h.send("variables", dap.VariablesArguments{VariablesReference: locals.VariablesReference})
	varsResp := h.recv().(*dap.VariablesResponse)
	found := false
	for _, v := range varsResp.Body.Variables {
		if v.Name == "i" {
			found = true
			assert.Equal(t, "3", v.Value)
		}
	}
	assert.True(t, found, "expected Locals to contain i")

	// The condition is true for exactly one of the five iterations, so
	// resuming must run the loop to completion with no further stop.
	h.send("continue", map[string]interface{}{})
	h.recv() // continue response
}

// TestScenario_StepInThenOut reproduces spec §8 scenario 5: a breakpoint
// at a call site, a stepIn that lands inside the callee, and a stepOut
// that returns to the statement following the call.
func TestScenario_StepInThenOut(t *testing.T) {
	h := newHarness(t)
	defer h.client.Close()

	h.send("initialize", map[string]interface{}{})
	h.recv()
	h.recv()

	h.send("setBreakpoints", dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: "t.loom"},
		Breakpoints: []dap.SourceBreakpoint{{Line: 5}},
	})
	h.recv()

	h.send("configurationDone", map[string]interface{}{})
	h.recv()

	h.send("launch", map[string]interface{}{})
	h.recv()

	prog, err := loomlang.Parse(`
func f() {
	y = 1
}
f()
z = 2
`)
	require.NoError(t, err)
	ip := loomlang.New(h.tracer, "t.loom")
	go func() { _, _ = ip.Run(prog) }()

	stopped := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "breakpoint", stopped.Body.Reason)
	assert.Contains(t, stopped.Body.Description, ":5")

	h.send("stepIn", map[string]interface{}{})
	h.recv() // stepIn response

	stepIn := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "stepIn", stepIn.Body.Reason)
	assert.Contains(t, stepIn.Body.Description, ":3")

	h.send("stepOut", map[string]interface{}{})
	h.recv() // stepOut response

	stepOut := h.recv().(*dap.StoppedEvent)
	assert.Equal(t, "stepOut", stepOut.Body.Reason)
	assert.Contains(t, stepOut.Body.Description, ":6")
}
