package loomlang

import (
	"fmt"

	"github.com/loomscript/dbgadapter/frame"
)

// lookup resolves an identifier against locals first, then globals,
// matching the scoping rule a single-environment tree-walker needs and
// mirroring the "Locals, then Globals" scope order of spec §4.6.
func lookup(name string, locals, globals frame.Value) (*Value, bool) {
	if locals != nil {
		if v, ok := locals.MappingGet(name); ok {
			return v.(*Value), true
		}
	}
	if globals != nil {
		if v, ok := globals.MappingGet(name); ok {
			return v.(*Value), true
		}
	}
	return nil, false
}

// evalCtx bundles the scope a subexpression evaluates against with an
// optional call hook. Conditions (EvalCondition) leave call nil, so a
// CallExpr inside a breakpoint condition is a hard error — the core
// never runs interpreter side effects to test a condition. Ordinary
// statement evaluation (interp.go) supplies call so `f(x)` works inline.
type evalCtx struct {
	locals, globals frame.Value
	call            func(name string, args []*Value, line int) (*Value, error)
}

// evalExpr evaluates an expression AST node. It is used both by the
// interpreter itself and by EvalCondition, the frame.EvalFunc the
// breakpoint registry calls to test conditions (spec §9: "the core never
// parses expressions itself" — here the *host* owns both the parser and
// the evaluator behind one hook).
func evalExpr(n Node, ctx evalCtx) (*Value, error) {
	switch e := n.(type) {
	case *NumberLit:
		return numberValue(e.Value), nil
	case *StringLit:
		return stringValue(e.Value), nil
	case *BoolLit:
		return boolValue(e.Value), nil
	case *NilLit:
		return nilValue(), nil
	case *Ident:
		v, ok := lookup(e.Name, ctx.locals, ctx.globals)
		if !ok {
			return nil, fmt.Errorf("loomlang: line %d: undefined variable %q", e.Line(), e.Name)
		}
		return v, nil
	case *UnaryExpr:
		v, err := evalExpr(e.Expr, ctx)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "-":
			n, err := v.asNumber()
			if err != nil {
				return nil, err
			}
			return numberValue(-n), nil
		case "!":
			return boolValue(!v.truthy()), nil
		default:
			return nil, fmt.Errorf("loomlang: line %d: unknown unary operator %q", e.Line(), e.Op)
		}
	case *BinaryExpr:
		return evalBinary(e, ctx)
	case *CallExpr:
		if ctx.call == nil {
			return nil, fmt.Errorf("loomlang: line %d: function calls are not allowed here", e.Line())
		}
		args := make([]*Value, len(e.Args))
		for i, a := range e.Args {
			v, err := evalExpr(a, ctx)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return ctx.call(e.Callee, args, e.Line())
	default:
		return nil, fmt.Errorf("loomlang: unhandled expression node %T", n)
	}
}

func evalBinary(e *BinaryExpr, ctx evalCtx) (*Value, error) {
	left, err := evalExpr(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := evalExpr(e.Right, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "==":
		return boolValue(valuesEqual(left, right)), nil
	case "!=":
		return boolValue(!valuesEqual(left, right)), nil
	}
	// Remaining operators are numeric, except "+" also supports string
	// concatenation (the one overload loomlang carries from the original
	// script language's permissive string+number formatting).
	if e.Op == "+" && (left.tag == tagString || right.tag == tagString) {
		return stringValue(left.String() + right.String()), nil
	}
	ln, err := left.asNumber()
	if err != nil {
		return nil, fmt.Errorf("loomlang: line %d: %w", e.Line(), err)
	}
	rn, err := right.asNumber()
	if err != nil {
		return nil, fmt.Errorf("loomlang: line %d: %w", e.Line(), err)
	}
	switch e.Op {
	case "+":
		return numberValue(ln + rn), nil
	case "-":
		return numberValue(ln - rn), nil
	case "*":
		return numberValue(ln * rn), nil
	case "/":
		if rn == 0 {
			return nil, fmt.Errorf("loomlang: line %d: division by zero", e.Line())
		}
		return numberValue(ln / rn), nil
	case "<":
		return boolValue(ln < rn), nil
	case ">":
		return boolValue(ln > rn), nil
	case "<=":
		return boolValue(ln <= rn), nil
	case ">=":
		return boolValue(ln >= rn), nil
	default:
		return nil, fmt.Errorf("loomlang: line %d: unknown operator %q", e.Line(), e.Op)
	}
}

func valuesEqual(a, b *Value) bool {
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case tagNil:
		return true
	case tagNumber:
		return a.num == b.num
	case tagString:
		return a.str == b.str
	case tagBool:
		return a.flag == b.flag
	default:
		return a == b
	}
}

// EvalCondition is the frame.EvalFunc this interpreter exposes to the
// breakpoint registry (spec §3/§9). It parses expr fresh on every call —
// conditions are rare and short, so no AST caching is warranted.
func EvalCondition(expr string, locals, globals frame.Value) (bool, error) {
	node, err := ParseExpr(expr)
	if err != nil {
		return false, err
	}
	v, err := evalExpr(node, evalCtx{locals: locals, globals: globals})
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}
