package loomlang

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/loomscript/dbgadapter/frame"
)

type valueTag int

const (
	tagNil valueTag = iota
	tagNumber
	tagString
	tagBool
	tagList
	tagDict
)

// Value is the runtime representation for every loomlang value.
type Value struct {
	tag  valueTag
	num  float64
	str  string
	flag bool
	list *List
	dict *Dict
}

var _ frame.Value = (*Value)(nil)

// List is a mutable, order-preserving sequence value.
type List struct {
	items []*Value
}

// Dict is a mutable, insertion-ordered mapping value.
type Dict struct {
	order []string
	m     map[string]*Value
}

func newDict() *Dict { return &Dict{m: map[string]*Value{}} }

func (d *Dict) set(key string, v *Value) {
	if _, ok := d.m[key]; !ok {
		d.order = append(d.order, key)
	}
	d.m[key] = v
}

func numberValue(n float64) *Value { return &Value{tag: tagNumber, num: n} }
func stringValue(s string) *Value  { return &Value{tag: tagString, str: s} }
func boolValue(b bool) *Value      { return &Value{tag: tagBool, flag: b} }
func nilValue() *Value             { return &Value{tag: tagNil} }
func listValue(l *List) *Value     { return &Value{tag: tagList, list: l} }
func dictValue(d *Dict) *Value     { return &Value{tag: tagDict, dict: d} }

func (v *Value) Kind() frame.Kind {
	switch v.tag {
	case tagList:
		return frame.KindSequence
	case tagDict:
		return frame.KindMapping
	default:
		return frame.KindOpaque
	}
}

func (v *Value) String() string {
	switch v.tag {
	case tagNil:
		return "nil"
	case tagNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case tagString:
		return v.str
	case tagBool:
		return strconv.FormatBool(v.flag)
	case tagList:
		parts := make([]string, len(v.list.items))
		for i, it := range v.list.items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case tagDict:
		parts := make([]string, 0, len(v.dict.order))
		for _, k := range v.dict.order {
			parts = append(parts, k+": "+v.dict.m[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

func (v *Value) TypeString() string {
	switch v.tag {
	case tagNil:
		return "nil"
	case tagNumber:
		return "number"
	case tagString:
		return "string"
	case tagBool:
		return "bool"
	case tagList:
		return "list"
	case tagDict:
		return "dict"
	default:
		return "unknown"
	}
}

func (v *Value) MappingKeys() []string {
	if v.tag != tagDict {
		return nil
	}
	out := append([]string(nil), v.dict.order...)
	sort.Strings(out)
	return out
}

func (v *Value) MappingGet(key string) (frame.Value, bool) {
	if v.tag != tagDict {
		return nil, false
	}
	val, ok := v.dict.m[key]
	return val, ok
}

func (v *Value) SequenceLen() int {
	if v.tag != tagList {
		return 0
	}
	return len(v.list.items)
}

func (v *Value) SequenceGet(i int) frame.Value {
	if v.tag != tagList || i < 0 || i >= len(v.list.items) {
		return nil
	}
	return v.list.items[i]
}

func (v *Value) ObjectFields() []string              { return nil }
func (v *Value) ObjectGet(string) (frame.Value, bool) { return nil, false }
func (v *Value) AttrDict() (frame.Value, bool)        { return nil, false }

func (v *Value) truthy() bool {
	switch v.tag {
	case tagNil:
		return false
	case tagNumber:
		return v.num != 0
	case tagString:
		return v.str != ""
	case tagBool:
		return v.flag
	case tagList:
		return len(v.list.items) > 0
	case tagDict:
		return len(v.dict.order) > 0
	default:
		return false
	}
}

func (v *Value) asNumber() (float64, error) {
	if v.tag != tagNumber {
		return 0, fmt.Errorf("loomlang: %s is not a number", v.TypeString())
	}
	return v.num, nil
}
