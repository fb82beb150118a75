package vm

import (
	"math"
	"strconv"
	"strings"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNull ValueType = iota
	ValInt
	ValFloat
	ValBool
	ValString
	ValObj // Heap object (array, map, class, instance, closure, ...)
)

// Value is a tagged union passed by value on the stack.
// Scalars and strings never allocate; arrays, maps and the other objects are
// shared by pointer.
type Value struct {
	Type ValueType
	Data uint64 // int64 bits, float64 bits, or bool (0/1)
	Str  string
	Obj  Object
}

// Object is implemented by every heap value.
type Object interface {
	TypeName() string
	Inspect() string
}

// Constructors

func NullVal() Value {
	return Value{Type: ValNull}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func StringVal(s string) Value {
	return Value{Type: ValString, Str: s}
}

func ObjVal(o Object) Value {
	return Value{Type: ValObj, Obj: o}
}

// Accessors

func (v Value) AsInt() int64     { return int64(v.Data) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsBool() bool     { return v.Data == 1 }
func (v Value) AsString() string { return v.Str }
func (v Value) IsNull() bool     { return v.Type == ValNull }
func (v Value) IsNumber() bool   { return v.Type == ValInt || v.Type == ValFloat }
func (v Value) IsString() bool   { return v.Type == ValString }
func (v Value) IsObj() bool      { return v.Type == ValObj }

func (v Value) AsArray() *Array {
	a, _ := v.Obj.(*Array)
	return a
}

func (v Value) AsMap() *Map {
	m, _ := v.Obj.(*Map)
	return m
}

func (v Value) AsClass() *Class {
	c, _ := v.Obj.(*Class)
	return c
}

func (v Value) AsInstance() *Instance {
	i, _ := v.Obj.(*Instance)
	return i
}

// Number returns the value as float64 for mixed arithmetic.
func (v Value) Number() float64 {
	if v.Type == ValInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Truthy: null and false are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNull:
		return false
	case ValBool:
		return v.AsBool()
	}
	return true
}

// TypeName returns the user-facing type name.
func (v Value) TypeName() string {
	switch v.Type {
	case ValNull:
		return "Null"
	case ValInt:
		return "Int"
	case ValFloat:
		return "Float"
	case ValBool:
		return "Bool"
	case ValString:
		return "String"
	case ValObj:
		return v.Obj.TypeName()
	}
	return "Unknown"
}

// Equals compares by value for scalars, strings, arrays and maps; other
// objects compare by identity.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		// Implicit Int -> Float conversion
		if v.IsNumber() && other.IsNumber() {
			return v.Number() == other.Number()
		}
		return false
	}
	switch v.Type {
	case ValInt, ValBool:
		return v.Data == other.Data
	case ValFloat:
		return v.AsFloat() == other.AsFloat()
	case ValNull:
		return true
	case ValString:
		return v.Str == other.Str
	case ValObj:
		switch a := v.Obj.(type) {
		case *Array:
			b, ok := other.Obj.(*Array)
			if !ok || len(a.Elements) != len(b.Elements) {
				return false
			}
			for i := range a.Elements {
				if !a.Elements[i].Equals(b.Elements[i]) {
					return false
				}
			}
			return true
		case *Map:
			b, ok := other.Obj.(*Map)
			if !ok || a.Len() != b.Len() {
				return false
			}
			for _, e := range a.entries {
				if e.dead {
					continue
				}
				bv, found := b.Get(e.key)
				if !found || !bv.Equals(e.value) {
					return false
				}
			}
			return true
		case *Range:
			b, ok := other.Obj.(*Range)
			return ok && *a == *b
		}
		return v.Obj == other.Obj
	}
	return false
}

// String renders the value the way print and interpolation show it.
func (v Value) String() string {
	if v.Type == ValString {
		return v.Str
	}
	return v.Inspect()
}

// Inspect renders the value as a literal; strings are quoted.
func (v Value) Inspect() string {
	switch v.Type {
	case ValNull:
		return "null"
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValFloat:
		return formatFloat(v.AsFloat())
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValString:
		return strconv.Quote(v.Str)
	case ValObj:
		return v.Obj.Inspect()
	}
	return "?"
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func joinInspect(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Inspect()
	}
	return strings.Join(parts, ", ")
}
