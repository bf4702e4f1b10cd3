// Package disasm specifies the optional bytecode disassembler at
// interface level only (spec §1: "The bytecode disassembler used to
// annotate stack frames is an optional feature specified only at
// interface level"). A host interpreter with no bytecode representation
// can leave it unset. The stack trace handler uses only Signature; it
// never calls Disassemble and its frames carry no subsource.
package disasm

import "github.com/loomscript/dbgadapter/frame"

// Instruction is one disassembled opcode, annotated for display alongside
// its source line (spec §6: "disassembly lines {text, line, source}").
type Instruction struct {
	Text    string
	Line    int
	Current bool
}

// Disassembler produces the instruction stream for a frame's code object
// at the moment it is inspected.
type Disassembler interface {
	Disassemble(f frame.Frame) []Instruction
}

// None is the default Disassembler: it reports no instructions. Used when
// the host has no bytecode representation to disassemble.
var None Disassembler = none{}

type none struct{}

func (none) Disassemble(frame.Frame) []Instruction { return nil }

// Signature formats a frame's call signature the way
// original_source/debugger.py's format_method_signature does:
// "(p1, p2, *rest)" with the last parameter marked variadic.
func Signature(f frame.Frame) string {
	params := f.ParamNames()
	if len(params) == 0 {
		return "()"
	}
	out := "("
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		if f.IsVariadic() && i == len(params)-1 {
			out += "*" + p
		} else {
			out += p
		}
	}
	return out + ")"
}
