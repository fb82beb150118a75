package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RegisterBuiltins binds the builtin functions and the Error class into g.
func RegisterBuiltins(g *Globals) {
	for _, fn := range builtinFunctions {
		g.Define(fn.Name, ObjVal(fn), false)
	}
	if g.errorClass == nil {
		g.errorClass = newErrorClass()
	}
	g.Define("Error", ObjVal(g.errorClass), false)
}

// BuiltinNames lists the globals RegisterBuiltins defines, for compilers
// that need to know them up front.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinFunctions)+1)
	for _, fn := range builtinFunctions {
		names = append(names, fn.Name)
	}
	return append(names, "Error")
}

var builtinFunctions = []*NativeFunction{
	{Name: "print", Arity: -1, Fn: builtinPrint},
	{Name: "println", Arity: -1, Fn: builtinPrint},
	{Name: "len", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		return length(args[0])
	}},
	{Name: "str", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		return StringVal(args[0].String()), nil
	}},
	{Name: "int", Arity: 1, Fn: builtinInt},
	{Name: "float", Arity: 1, Fn: builtinFloat},
	{Name: "type", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		return StringVal(args[0].TypeName()), nil
	}},
	{Name: "push", Arity: 2, Fn: func(vm *VM, args []Value) (Value, error) {
		return arrayPush(vm, args)
	}},
	{Name: "keys", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		m, err := wantMap(args[0], "keys")
		if err != nil {
			return Value{}, err
		}
		return ObjVal(NewArray(m.Keys())), nil
	}},
	{Name: "values", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		m, err := wantMap(args[0], "values")
		if err != nil {
			return Value{}, err
		}
		return ObjVal(NewArray(m.Values())), nil
	}},
	{Name: "range", Arity: -1, Fn: builtinRange},
	{Name: "abs", Arity: 1, Fn: func(vm *VM, args []Value) (Value, error) {
		switch v := args[0]; v.Type {
		case ValInt:
			if v.AsInt() < 0 {
				return IntVal(-v.AsInt()), nil
			}
			return v, nil
		case ValFloat:
			return FloatVal(math.Abs(v.AsFloat())), nil
		}
		return Value{}, raise(TypeError, "abs expects a number, got %s", args[0].TypeName())
	}},
	{Name: "min", Arity: -1, Fn: func(vm *VM, args []Value) (Value, error) {
		return extremum("min", args, OP_LT)
	}},
	{Name: "max", Arity: -1, Fn: func(vm *VM, args []Value) (Value, error) {
		return extremum("max", args, OP_GT)
	}},
	{Name: "sqrt", Arity: 1, Fn: floatFn("sqrt", math.Sqrt)},
	{Name: "floor", Arity: 1, Fn: roundFn("floor", math.Floor)},
	{Name: "ceil", Arity: 1, Fn: roundFn("ceil", math.Ceil)},
	{Name: "clock", Arity: 0, Fn: func(vm *VM, args []Value) (Value, error) {
		return FloatVal(float64(time.Now().UnixNano()) / 1e9), nil
	}},
}

// builtinPrint writes its arguments separated by spaces and records the line
func builtinPrint(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	line := strings.Join(parts, " ")
	vm.output = append(vm.output, line)
	if vm.out != nil {
		if _, err := fmt.Fprintln(vm.out, line); err != nil {
			return Value{}, fmt.Errorf("print: %w", err)
		}
	}
	return NullVal(), nil
}

func length(v Value) (Value, error) {
	switch v.Type {
	case ValString:
		return IntVal(int64(len([]rune(v.Str)))), nil
	case ValObj:
		switch o := v.Obj.(type) {
		case *Array:
			return IntVal(int64(len(o.Elements))), nil
		case *Map:
			return IntVal(int64(o.Len())), nil
		case *Range:
			return IntVal(o.Len()), nil
		}
	}
	return Value{}, raise(TypeError, "len of %s", v.TypeName())
}

func builtinInt(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.Type {
	case ValInt:
		return v, nil
	case ValFloat:
		return IntVal(int64(v.AsFloat())), nil
	case ValBool:
		return IntVal(int64(v.Data)), nil
	case ValString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return Value{}, raise(TypeError, "cannot convert %q to Int", v.Str)
		}
		return IntVal(n), nil
	}
	return Value{}, raise(TypeError, "cannot convert %s to Int", v.TypeName())
}

func builtinFloat(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.Type {
	case ValInt:
		return FloatVal(float64(v.AsInt())), nil
	case ValFloat:
		return v, nil
	case ValString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return Value{}, raise(TypeError, "cannot convert %q to Float", v.Str)
		}
		return FloatVal(f), nil
	}
	return Value{}, raise(TypeError, "cannot convert %s to Float", v.TypeName())
}

// builtinRange is range(end) or range(start, end)
func builtinRange(vm *VM, args []Value) (Value, error) {
	var start, end Value
	switch len(args) {
	case 1:
		start, end = IntVal(0), args[0]
	case 2:
		start, end = args[0], args[1]
	default:
		return Value{}, raise(ArityMismatch, "range expects 1 or 2 arguments, got %d", len(args))
	}
	if start.Type != ValInt || end.Type != ValInt {
		return Value{}, raise(TypeError, "range bounds must be Int")
	}
	return ObjVal(&Range{Start: start.AsInt(), End: end.AsInt()}), nil
}

func extremum(name string, args []Value, op Opcode) (Value, error) {
	if len(args) == 1 {
		if arr := args[0].AsArray(); arr != nil {
			args = arr.Elements
		}
	}
	if len(args) == 0 {
		return Value{}, raise(ArityMismatch, "%s of nothing", name)
	}
	best := args[0]
	for _, v := range args[1:] {
		better, err := compare(op, v, best)
		if err != nil {
			return Value{}, err
		}
		if better {
			best = v
		}
	}
	return best, nil
}

func floatFn(name string, f func(float64) float64) NativeFn {
	return func(vm *VM, args []Value) (Value, error) {
		if !args[0].IsNumber() {
			return Value{}, raise(TypeError, "%s expects a number, got %s", name, args[0].TypeName())
		}
		return FloatVal(f(args[0].Number())), nil
	}
}

func roundFn(name string, f func(float64) float64) NativeFn {
	return func(vm *VM, args []Value) (Value, error) {
		switch args[0].Type {
		case ValInt:
			return args[0], nil
		case ValFloat:
			return IntVal(int64(f(args[0].AsFloat()))), nil
		}
		return Value{}, raise(TypeError, "%s expects a number, got %s", name, args[0].TypeName())
	}
}

func wantMap(v Value, fn string) (*Map, error) {
	if m := v.AsMap(); m != nil {
		return m, nil
	}
	return nil, raise(TypeError, "%s expects a Map, got %s", fn, v.TypeName())
}

func wantString(v Value, fn string) (string, error) {
	if v.IsString() {
		return v.Str, nil
	}
	return "", raise(TypeError, "%s expects a String, got %s", fn, v.TypeName())
}

// builtinMethod finds a method of a builtin type. Methods receive the
// receiver as args[0]; Arity does not count it.
func builtinMethod(recv Value, name string) *NativeFunction {
	switch recv.Type {
	case ValString:
		return stringMethods[name]
	case ValObj:
		switch recv.Obj.(type) {
		case *Array:
			return arrayMethods[name]
		case *Map:
			return mapMethods[name]
		case *Range:
			return rangeMethods[name]
		}
	}
	return nil
}

func arrayPush(vm *VM, args []Value) (Value, error) {
	arr := args[0].AsArray()
	if arr == nil {
		return Value{}, raise(TypeError, "push expects an Array, got %s", args[0].TypeName())
	}
	arr.Elements = append(arr.Elements, args[1])
	return args[0], nil
}

func method(name string, arity int, fn NativeFn) *NativeFunction {
	return &NativeFunction{Name: name, Arity: arity, Fn: fn}
}

var arrayMethods map[string]*NativeFunction

// arrayMethods call back into the VM, which reaches builtinMethod, so the
// table is filled at init time.
func init() {
	arrayMethods = map[string]*NativeFunction{
		"push": method("push", 1, arrayPush),
		"pop": method("pop", 0, func(vm *VM, args []Value) (Value, error) {
			arr := args[0].AsArray()
			if len(arr.Elements) == 0 {
				return Value{}, raise(IndexOutOfBounds, "pop from an empty Array")
			}
			last := arr.Elements[len(arr.Elements)-1]
			arr.Elements[len(arr.Elements)-1] = Value{}
			arr.Elements = arr.Elements[:len(arr.Elements)-1]
			return last, nil
		}),
		"len": method("len", 0, func(vm *VM, args []Value) (Value, error) {
			return length(args[0])
		}),
		"map": method("map", 1, func(vm *VM, args []Value) (Value, error) {
			src := args[0].AsArray().Elements
			out := make([]Value, 0, len(src))
			for _, v := range src {
				r, err := vm.Call(args[1], v)
				if err != nil {
					return Value{}, err
				}
				out = append(out, r)
			}
			return ObjVal(NewArray(out)), nil
		}),
		"filter": method("filter", 1, func(vm *VM, args []Value) (Value, error) {
			var out []Value
			for _, v := range args[0].AsArray().Elements {
				keep, err := vm.Call(args[1], v)
				if err != nil {
					return Value{}, err
				}
				if keep.Truthy() {
					out = append(out, v)
				}
			}
			return ObjVal(NewArray(out)), nil
		}),
		"reduce": method("reduce", 2, func(vm *VM, args []Value) (Value, error) {
			acc := args[2]
			for _, v := range args[0].AsArray().Elements {
				var err error
				if acc, err = vm.Call(args[1], acc, v); err != nil {
					return Value{}, err
				}
			}
			return acc, nil
		}),
		"each": method("each", 1, func(vm *VM, args []Value) (Value, error) {
			for _, v := range args[0].AsArray().Elements {
				if _, err := vm.Call(args[1], v); err != nil {
					return Value{}, err
				}
			}
			return NullVal(), nil
		}),
		"join": method("join", 1, func(vm *VM, args []Value) (Value, error) {
			sep, err := wantString(args[1], "join")
			if err != nil {
				return Value{}, err
			}
			elems := args[0].AsArray().Elements
			parts := make([]string, len(elems))
			for i, v := range elems {
				parts[i] = v.String()
			}
			return StringVal(strings.Join(parts, sep)), nil
		}),
		"contains": method("contains", 1, func(vm *VM, args []Value) (Value, error) {
			for _, v := range args[0].AsArray().Elements {
				if v.Equals(args[1]) {
					return BoolVal(true), nil
				}
			}
			return BoolVal(false), nil
		}),
		"index_of": method("index_of", 1, func(vm *VM, args []Value) (Value, error) {
			for i, v := range args[0].AsArray().Elements {
				if v.Equals(args[1]) {
					return IntVal(int64(i)), nil
				}
			}
			return IntVal(-1), nil
		}),
		"reverse": method("reverse", 0, func(vm *VM, args []Value) (Value, error) {
			src := args[0].AsArray().Elements
			out := make([]Value, len(src))
			for i, v := range src {
				out[len(src)-1-i] = v
			}
			return ObjVal(NewArray(out)), nil
		}),
		"slice": method("slice", 2, func(vm *VM, args []Value) (Value, error) {
			src := args[0].AsArray().Elements
			if args[1].Type != ValInt || args[2].Type != ValInt {
				return Value{}, raise(TypeError, "slice bounds must be Int")
			}
			start, end := clampSlice(args[1].AsInt(), args[2].AsInt(), len(src))
			out := make([]Value, end-start)
			copy(out, src[start:end])
			return ObjVal(NewArray(out)), nil
		}),
		"first": method("first", 0, func(vm *VM, args []Value) (Value, error) {
			if elems := args[0].AsArray().Elements; len(elems) > 0 {
				return elems[0], nil
			}
			return NullVal(), nil
		}),
		"last": method("last", 0, func(vm *VM, args []Value) (Value, error) {
			if elems := args[0].AsArray().Elements; len(elems) > 0 {
				return elems[len(elems)-1], nil
			}
			return NullVal(), nil
		}),
	}
}

// clampSlice resolves negative bounds and clamps both into [0, n]
func clampSlice(start, end int64, n int) (int, int) {
	if start < 0 {
		start += int64(n)
	}
	if end < 0 {
		end += int64(n)
	}
	start = int64(math.Max(0, math.Min(float64(start), float64(n))))
	end = int64(math.Max(float64(start), math.Min(float64(end), float64(n))))
	return int(start), int(end)
}

var stringMethods = map[string]*NativeFunction{
	"len": method("len", 0, func(vm *VM, args []Value) (Value, error) {
		return length(args[0])
	}),
	"upper": method("upper", 0, func(vm *VM, args []Value) (Value, error) {
		return StringVal(strings.ToUpper(args[0].Str)), nil
	}),
	"lower": method("lower", 0, func(vm *VM, args []Value) (Value, error) {
		return StringVal(strings.ToLower(args[0].Str)), nil
	}),
	"trim": method("trim", 0, func(vm *VM, args []Value) (Value, error) {
		return StringVal(strings.TrimSpace(args[0].Str)), nil
	}),
	"split": method("split", 1, func(vm *VM, args []Value) (Value, error) {
		sep, err := wantString(args[1], "split")
		if err != nil {
			return Value{}, err
		}
		parts := strings.Split(args[0].Str, sep)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = StringVal(p)
		}
		return ObjVal(NewArray(out)), nil
	}),
	"contains": method("contains", 1, func(vm *VM, args []Value) (Value, error) {
		sub, err := wantString(args[1], "contains")
		if err != nil {
			return Value{}, err
		}
		return BoolVal(strings.Contains(args[0].Str, sub)), nil
	}),
	"starts_with": method("starts_with", 1, func(vm *VM, args []Value) (Value, error) {
		p, err := wantString(args[1], "starts_with")
		if err != nil {
			return Value{}, err
		}
		return BoolVal(strings.HasPrefix(args[0].Str, p)), nil
	}),
	"ends_with": method("ends_with", 1, func(vm *VM, args []Value) (Value, error) {
		p, err := wantString(args[1], "ends_with")
		if err != nil {
			return Value{}, err
		}
		return BoolVal(strings.HasSuffix(args[0].Str, p)), nil
	}),
	"replace": method("replace", 2, func(vm *VM, args []Value) (Value, error) {
		from, err := wantString(args[1], "replace")
		if err != nil {
			return Value{}, err
		}
		to, err := wantString(args[2], "replace")
		if err != nil {
			return Value{}, err
		}
		return StringVal(strings.ReplaceAll(args[0].Str, from, to)), nil
	}),
	"chars": method("chars", 0, func(vm *VM, args []Value) (Value, error) {
		runes := []rune(args[0].Str)
		out := make([]Value, len(runes))
		for i, r := range runes {
			out[i] = StringVal(string(r))
		}
		return ObjVal(NewArray(out)), nil
	}),
}

var mapMethods = map[string]*NativeFunction{
	"len": method("len", 0, func(vm *VM, args []Value) (Value, error) {
		return length(args[0])
	}),
	"keys": method("keys", 0, func(vm *VM, args []Value) (Value, error) {
		return ObjVal(NewArray(args[0].AsMap().Keys())), nil
	}),
	"values": method("values", 0, func(vm *VM, args []Value) (Value, error) {
		return ObjVal(NewArray(args[0].AsMap().Values())), nil
	}),
	"has": method("has", 1, func(vm *VM, args []Value) (Value, error) {
		return BoolVal(args[0].AsMap().Has(args[1])), nil
	}),
	"remove": method("remove", 1, func(vm *VM, args []Value) (Value, error) {
		m := args[0].AsMap()
		v, ok := m.Get(args[1])
		if !ok {
			return NullVal(), nil
		}
		m.Delete(args[1])
		return v, nil
	}),
	"get": method("get", -1, func(vm *VM, args []Value) (Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return Value{}, raise(ArityMismatch, "get expects 1 or 2 arguments, got %d", len(args)-1)
		}
		if v, ok := args[0].AsMap().Get(args[1]); ok {
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return NullVal(), nil
	}),
}

var rangeMethods = map[string]*NativeFunction{
	"len": method("len", 0, func(vm *VM, args []Value) (Value, error) {
		return length(args[0])
	}),
	"to_array": method("to_array", 0, func(vm *VM, args []Value) (Value, error) {
		items, err := vm.collect(args[0])
		if err != nil {
			return Value{}, err
		}
		return ObjVal(NewArray(items)), nil
	}),
}
