package loomlang

import (
	"sort"

	"github.com/loomscript/dbgadapter/frame"
)

// env is a live view over a frame's variable bindings, used for both
// Frame.Locals() and Frame.Globals(). Unlike Dict it is not itself a
// first-class loomlang value — it exists only so the debugger core can
// read (never write) a frame's bindings through the frame.Value seam
// without the interpreter copying them on every scopes/variables request.
type env struct {
	vars map[string]*Value
}

var _ frame.Value = (*env)(nil)

func newEnv() *env { return &env{vars: map[string]*Value{}} }

func (e *env) Kind() frame.Kind   { return frame.KindMapping }
func (e *env) String() string     { return "<env>" }
func (e *env) TypeString() string { return "env" }

func (e *env) MappingKeys() []string {
	out := make([]string, 0, len(e.vars))
	for k := range e.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (e *env) MappingGet(key string) (frame.Value, bool) {
	v, ok := e.vars[key]
	return v, ok
}

func (e *env) SequenceLen() int                      { return 0 }
func (e *env) SequenceGet(int) frame.Value           { return nil }
func (e *env) ObjectFields() []string                { return nil }
func (e *env) ObjectGet(string) (frame.Value, bool)  { return nil, false }
func (e *env) AttrDict() (frame.Value, bool)         { return nil, false }
