// Command loomdbg runs a loomlang script under the debugger, exposing it
// as a DAP server over TCP. It plays the role the teacher's cmd/dlv-mcp
// plays for driving `dlv dap`, minus the MCP tool-frontend layer spec §1
// scopes out: this process speaks DAP directly.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomscript/dbgadapter/debugger"
	"github.com/loomscript/dbgadapter/log"
	"github.com/loomscript/dbgadapter/loomlang"
)

const help = `
loomdbg: run a loomlang script under the in-process debugger

Usage: loomdbg <script.loom> [OPTIONS]

Options:
  --listen <addr>     Listen address (default: 0.0.0.0:14711, or $DEBUGGER_PORT)
  --nowait            Do not block startup waiting for a client to launch
  --log <path>        Append debugger diagnostics to this file (default: stderr)
  --help              Show this help message
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Println(strings.TrimSpace(help))
		return nil
	}

	script := args[0]
	var listen, logPath string
	nowait := false

	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--listen":
			if i+1 >= len(rest) {
				return fmt.Errorf("--listen requires an argument")
			}
			i++
			listen = rest[i]
		case "--log":
			if i+1 >= len(rest) {
				return fmt.Errorf("--log requires an argument")
			}
			i++
			logPath = rest[i]
		case "--nowait":
			nowait = true
		default:
			return fmt.Errorf("unrecognized option %q", rest[i])
		}
	}

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := os.ReadFile(script)
	if err != nil {
		return fmt.Errorf("reading %s: %w", script, err)
	}
	prog, err := loomlang.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", script, err)
	}

	if nowait {
		os.Setenv(debugger.NowaitEnv, "true")
	}

	dbg := debugger.New(debugger.Options{
		Logger: logger,
		Eval:   loomlang.EvalCondition,
	})

	logger.Infof("loomdbg: waiting for a DAP client to launch %s", filepath.Base(script))
	if err := dbg.Attach(listen); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	interp := loomlang.New(dbg.Tracer, script)
	logger.Infof("loomdbg: running %s", script)
	result, err := interp.Run(prog)
	if err != nil {
		logger.Errorf("loomdbg: %s exited with error: %v", script, err)
		return err
	}
	logger.Infof("loomdbg: %s finished, result=%s", script, result.String())
	return nil
}

func openLogger(path string) (log.Logger, func(), error) {
	if path == "" {
		return log.NewWriterLogger(os.Stderr), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return log.NewWriterLogger(f), func() { f.Close() }, nil
}
