// Package debugger is the top-level wiring object: it owns the tracer,
// breakpoint registry, and inspector arena, and exposes the Attach entry
// point a host interpreter calls at startup (spec §6: "Boot-time
// behavior. The target calls an attach() entry that installs the tracer
// and, unless nowait, blocks until a client has issued launch").
//
// Grounded on original_source/debugger.py's module-level attach()/
// wait_for_connection() and the "global-ish state... model them as
// explicitly constructed objects installed via attach()" guidance of
// spec §9.
package debugger

import (
	"os"
	"strconv"

	"github.com/loomscript/dbgadapter/breakpoint"
	"github.com/loomscript/dbgadapter/disasm"
	"github.com/loomscript/dbgadapter/frame"
	"github.com/loomscript/dbgadapter/inspector"
	"github.com/loomscript/dbgadapter/log"
	"github.com/loomscript/dbgadapter/session"
	"github.com/loomscript/dbgadapter/tracer"
)

// DefaultPort is the reference port from spec §6.
const DefaultPort = 14711

// PortEnv and NowaitEnv are the environment variable names spec §6
// specifies for overriding the listen port and skipping the boot-time
// wait for a client.
const (
	PortEnv   = "DEBUGGER_PORT"
	NowaitEnv = "DEBUGGER_NOWAIT"
)

// Debugger is the process-wide debugging facility for one embedded
// interpreter. Construct one with New and call Attach once at interpreter
// startup.
type Debugger struct {
	Tracer      *tracer.Tracer
	Breakpoints *breakpoint.Registry
	Arena       *inspector.Arena
	Disasm      disasm.Disassembler

	log    log.Logger
	server *session.Server
}

// Options configures New. All fields are optional.
type Options struct {
	Logger        log.Logger
	Eval          frame.EvalFunc
	Disassembler  disasm.Disassembler
	CurrentThread string
}

// New constructs a Debugger with an empty breakpoint registry, a fresh
// variable arena, and a tracer wired to both.
func New(opts Options) *Debugger {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard
	}
	dis := opts.Disassembler
	if dis == nil {
		dis = disasm.None
	}

	bps := breakpoint.NewRegistry(opts.Eval)
	tr := tracer.New(logger, bps)
	arena := inspector.NewArena()

	d := &Debugger{
		Tracer:      tr,
		Breakpoints: bps,
		Arena:       arena,
		Disasm:      dis,
		log:         logger,
	}
	d.server = session.NewServer(session.Config{
		Tracer:      tr,
		Breakpoints: bps,
		Arena:       arena,
		Disasm:      dis,
		Logger:      logger,
	})
	return d
}

// Attach starts the DAP TCP listener and, unless DEBUGGER_NOWAIT is set,
// blocks until a client has completed launch (spec §6). addr overrides
// the listen address entirely when non-empty; otherwise the port is
// DefaultPort or DEBUGGER_PORT.
func (d *Debugger) Attach(addr string) error {
	if addr == "" {
		addr = "0.0.0.0:" + strconv.Itoa(resolvePort())
	}

	ready := make(chan struct{})
	d.server.OnReady(func() { close(ready) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.ListenAndServe(addr)
	}()

	if os.Getenv(NowaitEnv) == "true" {
		return nil
	}

	select {
	case err := <-errCh:
		return err
	case <-ready:
		return nil
	}
}

// Serve blocks forever serving DAP clients on addr, for hosts that want
// to run the debugger on its own goroutine without the boot-time wait
// semantics of Attach.
func (d *Debugger) Serve(addr string) error {
	if addr == "" {
		addr = "0.0.0.0:" + strconv.Itoa(resolvePort())
	}
	return d.server.ListenAndServe(addr)
}

func resolvePort() int {
	if v := os.Getenv(PortEnv); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			return p
		}
	}
	return DefaultPort
}
