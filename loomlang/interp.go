package loomlang

import (
	"fmt"

	"github.com/loomscript/dbgadapter/stepping"
	"github.com/loomscript/dbgadapter/tracer"
)

// Interp runs a parsed Program against a tracer, emitting the call/line/
// return/exception events spec §3 describes ("the host interpreter calls
// into the tracer at call, line, return, and exception points"). Grounded
// on original_source/debugger.py's sys.settrace(self.trace_event) hookup:
// loomlang plays the role of the Ren'Py VM, the tracer plays the debugger.
type Interp struct {
	tracer  *tracer.Tracer
	source  string
	globals *env
	funcs   map[string]*FuncDef
}

// New constructs an interpreter bound to t. Every Run call shares the
// same module-level globals across the process lifetime, matching a
// script interpreter's single persistent module namespace.
func New(t *tracer.Tracer, source string) *Interp {
	return &Interp{tracer: t, source: source, globals: newEnv(), funcs: map[string]*FuncDef{}}
}

type execResult struct {
	returned bool
	value    *Value
}

// Run executes a program as the module's top-level frame. Function
// definitions are hoisted into the interpreter's function table as they
// are encountered, matching a script interpreter that defines functions
// by executing a `func` statement rather than pre-scanning the module.
func (ip *Interp) Run(prog *Program) (*Value, error) {
	top := &Frame{source: ip.source, line: 0, funcName: "<module>", locals: ip.globals, globals: ip.globals}
	ip.tracer.Event(stepping.EventCall, top)
	res, err := ip.execStmts(top, prog.Stmts)
	if err != nil {
		return nil, err
	}
	ip.tracer.Event(stepping.EventReturn, top)
	if res.returned {
		return res.value, nil
	}
	return nilValue(), nil
}

func (ip *Interp) execStmts(fr *Frame, stmts []Node) (execResult, error) {
	for _, s := range stmts {
		fr.line = s.Line()
		ip.tracer.Event(stepping.EventLine, fr)
		res, err := ip.execStmt(fr, s)
		if err != nil {
			ip.tracer.Event(stepping.EventException, fr)
			return execResult{}, err
		}
		if res.returned {
			return res, nil
		}
	}
	return execResult{}, nil
}

func (ip *Interp) ctx(fr *Frame) evalCtx {
	return evalCtx{
		locals:  fr.locals,
		globals: fr.globals,
		call: func(name string, args []*Value, line int) (*Value, error) {
			return ip.call(fr, name, args, line)
		},
	}
}

func (ip *Interp) execStmt(fr *Frame, n Node) (execResult, error) {
	switch s := n.(type) {
	case *AssignStmt:
		v, err := evalExpr(s.Expr, ip.ctx(fr))
		if err != nil {
			return execResult{}, err
		}
		fr.locals.vars[s.Name] = v
		return execResult{}, nil

	case *IfStmt:
		cond, err := evalExpr(s.Cond, ip.ctx(fr))
		if err != nil {
			return execResult{}, err
		}
		if cond.truthy() {
			return ip.execStmts(fr, s.Then)
		}
		return ip.execStmts(fr, s.Else)

	case *WhileStmt:
		for {
			fr.line = s.Cond.Line()
			cond, err := evalExpr(s.Cond, ip.ctx(fr))
			if err != nil {
				return execResult{}, err
			}
			if !cond.truthy() {
				return execResult{}, nil
			}
			res, err := ip.execStmts(fr, s.Body)
			if err != nil {
				return execResult{}, err
			}
			if res.returned {
				return res, nil
			}
		}

	case *FuncDef:
		ip.funcs[s.Name] = s
		return execResult{}, nil

	case *ReturnStmt:
		if s.Expr == nil {
			return execResult{returned: true, value: nilValue()}, nil
		}
		v, err := evalExpr(s.Expr, ip.ctx(fr))
		if err != nil {
			return execResult{}, err
		}
		return execResult{returned: true, value: v}, nil

	case *ExprStmt:
		_, err := evalExpr(s.Expr, ip.ctx(fr))
		return execResult{}, err

	default:
		return execResult{}, fmt.Errorf("loomlang: line %d: unhandled statement %T", n.Line(), n)
	}
}

// call dispatches either to a builtin or a user-defined function, pushing
// a new Frame parented on the call site's frame (spec §3: stepping.Into
// keys on the child call frame's Parent() being the line frame active at
// the call, so the parent pointer must be the caller's *current* frame,
// not some module-level root).
func (ip *Interp) call(caller *Frame, name string, args []*Value, line int) (*Value, error) {
	if fn, ok := builtins[name]; ok {
		return fn(args)
	}
	fd, ok := ip.funcs[name]
	if !ok {
		return nil, fmt.Errorf("loomlang: line %d: undefined function %q", line, name)
	}
	newFrame := &Frame{
		source:   ip.source,
		line:     fd.Line(),
		parent:   caller,
		funcName: fd.Name,
		params:   fd.Params,
		variadic: fd.Variadic,
		locals:   newEnv(),
		globals:  ip.globals,
	}
	bindParams(newFrame, fd, args)

	ip.tracer.Event(stepping.EventCall, newFrame)
	res, err := ip.execStmts(newFrame, fd.Body)
	if err != nil {
		return nil, err
	}
	ip.tracer.Event(stepping.EventReturn, newFrame)
	if res.returned {
		return res.value, nil
	}
	return nilValue(), nil
}

func bindParams(fr *Frame, fd *FuncDef, args []*Value) {
	fixed := fd.Params
	if fd.Variadic && len(fixed) > 0 {
		fixed = fd.Params[:len(fd.Params)-1]
	}
	for i, p := range fixed {
		if i < len(args) {
			fr.locals.vars[p] = args[i]
		} else {
			fr.locals.vars[p] = nilValue()
		}
	}
	if fd.Variadic && len(fd.Params) > 0 {
		restName := fd.Params[len(fd.Params)-1]
		rest := &List{}
		if len(args) > len(fixed) {
			rest.items = append(rest.items, args[len(fixed):]...)
		}
		fr.locals.vars[restName] = listValue(rest)
	}
}
