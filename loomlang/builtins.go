package loomlang

import "fmt"

var builtins = map[string]func(args []*Value) (*Value, error){
	"len": func(args []*Value) (*Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("loomlang: len() takes exactly one argument")
		}
		switch args[0].tag {
		case tagList:
			return numberValue(float64(len(args[0].list.items))), nil
		case tagDict:
			return numberValue(float64(len(args[0].dict.order))), nil
		case tagString:
			return numberValue(float64(len(args[0].str))), nil
		default:
			return nil, fmt.Errorf("loomlang: len() of %s", args[0].TypeString())
		}
	},
	"list": func(args []*Value) (*Value, error) {
		l := &List{items: append([]*Value(nil), args...)}
		return listValue(l), nil
	},
	"dict": func(args []*Value) (*Value, error) {
		return dictValue(newDict()), nil
	},
	"append": func(args []*Value) (*Value, error) {
		if len(args) != 2 || args[0].tag != tagList {
			return nil, fmt.Errorf("loomlang: append(list, value)")
		}
		args[0].list.items = append(args[0].list.items, args[1])
		return args[0], nil
	},
	"set": func(args []*Value) (*Value, error) {
		if len(args) != 3 || args[0].tag != tagDict || args[1].tag != tagString {
			return nil, fmt.Errorf("loomlang: set(dict, key, value)")
		}
		args[0].dict.set(args[1].str, args[2])
		return args[0], nil
	},
	"get": func(args []*Value) (*Value, error) {
		if len(args) != 2 || args[0].tag != tagDict || args[1].tag != tagString {
			return nil, fmt.Errorf("loomlang: get(dict, key)")
		}
		v, ok := args[0].dict.m[args[1].str]
		if !ok {
			return nilValue(), nil
		}
		return v, nil
	},
}
