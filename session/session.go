// Package session implements the DAP session protocol layer (spec §4.7):
// a single-client TCP server that frames messages via dapproto, dispatches
// each request, and emits the stopped/initialized events at the right
// points in the exchange.
//
// Grounded on the teacher's debug/dap/session.go for the broad shape
// (a manager type owning synchronized state, constructed with a
// Logger) and directly on original_source/debugger.py's
// DebugAdapterProtocolServer.run/attach_one_client/enter_read_loop/
// resolve_message for the accept-one-client-to-completion loop and the
// exact per-command semantics.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/loomscript/dbgadapter/breakpoint"
	"github.com/loomscript/dbgadapter/dapproto"
	"github.com/loomscript/dbgadapter/disasm"
	"github.com/loomscript/dbgadapter/frame"
	"github.com/loomscript/dbgadapter/inspector"
	"github.com/loomscript/dbgadapter/log"
	"github.com/loomscript/dbgadapter/stepping"
	"github.com/loomscript/dbgadapter/tracer"
)

// Config wires a Server to the debugger core components it dispatches
// against.
type Config struct {
	Tracer      *tracer.Tracer
	Breakpoints *breakpoint.Registry
	Arena       *inspector.Arena
	Disasm      disasm.Disassembler
	Logger      log.Logger
}

// Server is a single-client DAP TCP server (spec §4.7, §6).
type Server struct {
	cfg Config

	mu      sync.Mutex
	onReady func()
}

// NewServer constructs a Server from cfg, filling in defaults for any
// unset optional field.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard
	}
	if cfg.Disasm == nil {
		cfg.Disasm = disasm.None
	}
	return &Server{cfg: cfg}
}

// OnReady registers a callback fired once a client's launch request has
// been answered, signaling the boot-time wait in debugger.Attach can
// stop blocking.
func (s *Server) OnReady(f func()) {
	s.mu.Lock()
	s.onReady = f
	s.mu.Unlock()
}

func (s *Server) fireReady() {
	s.mu.Lock()
	f := s.onReady
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

// ListenAndServe binds addr with SO_REUSEADDR and serves clients one at a
// time, forever (spec §6: "TCP listen on 0.0.0.0:<port>, SO_REUSEADDR=1,
// backlog 0"). Go's net package exposes no portable backlog knob; the
// accept-one-client-to-completion loop below is what actually enforces
// the single-client invariant (spec §3: "At most one client is connected
// at a time; additional connections wait... until disconnect"), so
// backlog size is immaterial to correctness.
func (s *Server) ListenAndServe(addr string) error {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		s.serveOne(c)
	}
}

func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// conn wraps the socket with the mutex that serializes writes: the
// session thread writes responses from the read loop, but the target
// thread writes the stopped event directly from Tracer.OnStop while
// holding no other lock (spec §5 — "the target thread may write events
// directly while holding no lock, because the session thread is blocked
// in a read at that moment"), so both paths funnel through here to keep
// the seq counter monotonic and the bytes on the wire from interleaving.
type conn struct {
	mu  sync.Mutex
	raw net.Conn
	seq int
}

// send assigns the next seq value via setSeq, then writes msg, all under
// one lock so seq assignment order matches write order.
func (c *conn) send(msg dap.Message, setSeq func(int)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	setSeq(c.seq)
	return dapproto.WriteMessage(c.raw, msg)
}

// serveOne reads and dispatches requests from a single client until
// disconnect or EOF, then resets the debugger so the target is never
// left orphaned in a paused state (spec §4.7 step 3, §5: "A disconnect
// mid-pause therefore resumes the target").
func (s *Server) serveOne(raw net.Conn) {
	defer raw.Close()

	sessionID := "session-" + uuid.New().String()
	s.cfg.Logger.Infof("dap: %s connected from %s", sessionID, raw.RemoteAddr())
	defer s.cfg.Logger.Infof("dap: %s closed", sessionID)

	c := &conn{raw: raw}
	s.cfg.Tracer.OnStop = func(e tracer.StopEvent) {
		s.sendStopped(c, e)
	}
	defer func() {
		s.cfg.Tracer.OnStop = nil
		s.cfg.Tracer.Reset()
	}()

	reader := bufio.NewReader(raw)
	for {
		msg, err := dapproto.ReadMessage(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			s.cfg.Logger.Errorf("dap: framing error: %v", err)
			continue
		}

		if s.dispatch(c, msg) {
			return
		}
	}
}

// dispatch routes one decoded request to its handler, recovering from any
// panic so a single bad handler can never take down the session (spec §7:
// "Dispatch error... log with stack trace; send an error response...
// and continue"; "Interpreter trace callback failure: must never
// propagate"). It returns true when the session should end.
func (s *Server) dispatch(c *conn, msg dap.Message) (disconnect bool) {
	seq, command := requestIdentity(msg)

	defer func() {
		if r := recover(); r != nil {
			s.cfg.Logger.Errorf("dap: panic handling %s: %v", command, r)
			s.sendError(c, seq, command, "Error")
		}
	}()

	switch req := msg.(type) {
	case *dap.InitializeRequest:
		s.handleInitialize(c, req)
	case *dap.SetBreakpointsRequest:
		s.handleSetBreakpoints(c, req)
	case *dap.ConfigurationDoneRequest:
		s.handleConfigurationDone(c, req)
	case *dap.LaunchRequest:
		s.handleLaunch(c, req)
	case *dap.DisconnectRequest:
		s.handleDisconnect(c, req)
		return true
	case *dap.ContinueRequest:
		s.handleContinue(c, req)
	case *dap.ThreadsRequest:
		s.handleThreads(c, req)
	case *dap.StackTraceRequest:
		s.handleStackTrace(c, req)
	case *dap.ScopesRequest:
		s.handleScopes(c, req)
	case *dap.VariablesRequest:
		s.handleVariables(c, req)
	case *dap.PauseRequest:
		s.handlePause(c, req)
	case *dap.NextRequest:
		s.handleStep(c, &req.Request, stepping.Next)
	case *dap.StepInRequest:
		s.handleStep(c, &req.Request, stepping.Into)
	case *dap.StepOutRequest:
		s.handleStep(c, &req.Request, stepping.Out)
	default:
		s.sendError(c, seq, command, "NotImplemented")
	}
	return false
}

// requestIdentity extracts (seq, command) from any decoded message so the
// panic handler and the NotImplemented branch can respond without
// knowing the concrete type.
func requestIdentity(msg dap.Message) (int, string) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		return req.Seq, req.Command
	case *dap.SetBreakpointsRequest:
		return req.Seq, req.Command
	case *dap.ConfigurationDoneRequest:
		return req.Seq, req.Command
	case *dap.LaunchRequest:
		return req.Seq, req.Command
	case *dap.DisconnectRequest:
		return req.Seq, req.Command
	case *dap.ContinueRequest:
		return req.Seq, req.Command
	case *dap.ThreadsRequest:
		return req.Seq, req.Command
	case *dap.StackTraceRequest:
		return req.Seq, req.Command
	case *dap.ScopesRequest:
		return req.Seq, req.Command
	case *dap.VariablesRequest:
		return req.Seq, req.Command
	case *dap.PauseRequest:
		return req.Seq, req.Command
	case *dap.NextRequest:
		return req.Seq, req.Command
	case *dap.StepInRequest:
		return req.Seq, req.Command
	case *dap.StepOutRequest:
		return req.Seq, req.Command
	case *dap.Request:
		return req.Seq, req.Command
	default:
		return 0, ""
	}
}

func (s *Server) sendError(c *conn, requestSeq int, command, message string) {
	resp := dapproto.NewErrorResponse(requestSeq, command, message)
	if err := c.send(resp, func(n int) { resp.Seq = n }); err != nil {
		s.cfg.Logger.Errorf("dap: failed to send error response: %v", err)
	}
}

func (s *Server) sendStopped(c *conn, e tracer.StopEvent) {
	desc := ""
	if e.Frame != nil {
		desc = e.Frame.Source() + ":" + strconv.Itoa(e.Frame.Line())
	}
	ev := &dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "stopped"},
		Body: dap.StoppedEventBody{
			Reason:            string(e.Reason),
			Description:       desc,
			ThreadId:          0,
			PreserveFocusHint: false,
			AllThreadsStopped: true,
		},
	}
	if err := c.send(ev, func(n int) { ev.Seq = n }); err != nil {
		s.cfg.Logger.Errorf("dap: failed to send stopped event: %v", err)
	}
}

func (s *Server) handleInitialize(c *conn, req *dap.InitializeRequest) {
	resp := &dap.InitializeResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dapproto.Capabilities(),
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })

	initialized := &dap.InitializedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "initialized"},
	}
	_ = c.send(initialized, func(n int) { initialized.Seq = n })
}

func (s *Server) handleSetBreakpoints(c *conn, req *dap.SetBreakpointsRequest) {
	source := req.Arguments.Source.Path
	s.cfg.Breakpoints.Clear(source)

	verified := make([]dap.Breakpoint, 0, len(req.Arguments.Breakpoints))
	for _, sb := range req.Arguments.Breakpoints {
		bp := &breakpoint.Breakpoint{
			Source:    source,
			Line:      sb.Line,
			Condition: sb.Condition,
		}
		if sb.HitCondition != "" {
			if n, err := strconv.Atoi(sb.HitCondition); err == nil {
				bp.HitCondition = &n
			}
		}
		s.cfg.Breakpoints.Register(bp)
		verified = append(verified, dap.Breakpoint{Verified: true, Line: sb.Line, Source: &req.Arguments.Source})
	}

	resp := &dap.SetBreakpointsResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.SetBreakpointsResponseBody{Breakpoints: verified},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleConfigurationDone(c *conn, req *dap.ConfigurationDoneRequest) {
	resp := &dap.ConfigurationDoneResponse{Response: *dapproto.NewResponse(req.Seq, req.Command, nil)}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleLaunch(c *conn, req *dap.LaunchRequest) {
	resp := &dap.LaunchResponse{Response: *dapproto.NewResponse(req.Seq, req.Command, nil)}
	_ = c.send(resp, func(n int) { resp.Seq = n })
	s.fireReady()
}

func (s *Server) handleDisconnect(c *conn, req *dap.DisconnectRequest) {
	resp := &dap.DisconnectResponse{Response: *dapproto.NewResponse(req.Seq, req.Command, nil)}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleContinue(c *conn, req *dap.ContinueRequest) {
	resp := &dap.ContinueResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.ContinueResponseBody{AllThreadsContinued: true},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })

	s.cfg.Tracer.ArmStep(stepping.None, stepping.Snapshot{})
	s.cfg.Arena.Clear()
	s.cfg.Tracer.Resume()
}

func (s *Server) handleThreads(c *conn, req *dap.ThreadsRequest) {
	resp := &dap.ThreadsResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: 0, Name: "main"}}},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleStackTrace(c *conn, req *dap.StackTraceRequest) {
	root := s.cfg.Tracer.ActiveFrame()
	start := req.Arguments.StartFrame
	levels := req.Arguments.Levels

	var frames []dap.StackFrame
	level := 0
	for f := root; f != nil; f = f.Parent() {
		if level >= start {
			frames = append(frames, dap.StackFrame{
				Id:               level,
				Name:             f.FuncName() + disasm.Signature(f),
				Source:           &dap.Source{Path: f.Source()},
				Line:             f.Line(),
				Column:           0,
				PresentationHint: "normal",
			})
		}
		level++
		if levels != 0 && level >= levels+start {
			break
		}
	}

	resp := &dap.StackTraceResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.StackTraceResponseBody{StackFrames: frames, TotalFrames: len(frames)},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleScopes(c *conn, req *dap.ScopesRequest) {
	f := frameAt(s.cfg.Tracer.ActiveFrame(), req.Arguments.FrameId)

	var scopes []dap.Scope
	if f != nil {
		locals := s.cfg.Arena.Scope("Locals", f.Locals(), false)
		globals := s.cfg.Arena.Scope("Globals", f.Globals(), true)
		scopes = []dap.Scope{
			{Name: locals.Name, VariablesReference: locals.VariablesReference, Expensive: locals.Expensive, NamedVariables: locals.NamedVariables},
			{Name: globals.Name, VariablesReference: globals.VariablesReference, Expensive: globals.Expensive, NamedVariables: globals.NamedVariables},
		}
	}

	resp := &dap.ScopesResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.ScopesResponseBody{Scopes: scopes},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handleVariables(c *conn, req *dap.VariablesRequest) {
	descs, err := s.cfg.Arena.Expand(req.Arguments.VariablesReference, req.Arguments.Filter, req.Arguments.Start, req.Arguments.Count)
	if err != nil {
		s.cfg.Logger.Warnf("dap: variables: %v", err)
	}

	vars := make([]dap.Variable, 0, len(descs))
	for _, d := range descs {
		vars = append(vars, dap.Variable{
			Name:               d.Name,
			Value:              d.Value,
			Type:               d.Type,
			EvaluateName:       d.EvaluateName,
			VariablesReference: d.VariablesReference,
			NamedVariables:     d.NamedVariables,
			IndexedVariables:   d.IndexedVariables,
		})
	}

	resp := &dap.VariablesResponse{
		Response: *dapproto.NewResponse(req.Seq, req.Command, nil),
		Body:     dap.VariablesResponseBody{Variables: vars},
	}
	_ = c.send(resp, func(n int) { resp.Seq = n })
}

func (s *Server) handlePause(c *conn, req *dap.PauseRequest) {
	resp := &dap.PauseResponse{Response: *dapproto.NewResponse(req.Seq, req.Command, nil)}
	_ = c.send(resp, func(n int) { resp.Seq = n })
	s.cfg.Tracer.PauseRequested()
}

func (s *Server) handleStep(c *conn, req *dap.Request, mode stepping.Mode) {
	resp := dapproto.NewResponse(req.Seq, req.Command, nil)
	_ = c.send(resp, func(n int) { resp.Seq = n })

	snap := s.cfg.Tracer.Snapshot()
	s.cfg.Tracer.ArmStep(mode, snap)
	s.cfg.Arena.Clear()
	s.cfg.Tracer.Resume()
}

// frameAt walks root's parent chain ord steps, matching
// original_source/debugger.py's get_frame.
func frameAt(root frame.Frame, ord int) frame.Frame {
	f := root
	for i := 0; f != nil && i < ord; i++ {
		f = f.Parent()
	}
	return f
}
