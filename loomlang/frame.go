package loomlang

import "github.com/loomscript/dbgadapter/frame"

// Frame is one loomlang activation record. It implements frame.Frame,
// the only contract the debugger core uses to walk the call stack.
type Frame struct {
	source   string
	line     int
	parent   *Frame
	funcName string
	params   []string
	variadic bool
	locals   *env
	globals  *env
	bcOffset int
}

var _ frame.Frame = (*Frame)(nil)

func (f *Frame) Source() string  { return f.source }
func (f *Frame) Line() int       { return f.line }
func (f *Frame) FuncName() string { return f.funcName }
func (f *Frame) ParamNames() []string { return f.params }
func (f *Frame) IsVariadic() bool     { return f.variadic }
func (f *Frame) BytecodeOffset() int  { return -1 }

func (f *Frame) Parent() frame.Frame {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *Frame) Locals() frame.Value  { return f.locals }
func (f *Frame) Globals() frame.Value { return f.globals }
