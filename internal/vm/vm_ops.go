package vm

import (
	"math"
	"strings"
)

// arith implements + - * / % with Int -> Float promotion
func arith(op Opcode, a, b Value) (Value, error) {
	if op == OP_ADD {
		if a.IsString() || b.IsString() {
			return StringVal(a.String() + b.String()), nil
		}
		if x, y := a.AsArray(), b.AsArray(); x != nil && y != nil {
			elems := make([]Value, 0, len(x.Elements)+len(y.Elements))
			elems = append(elems, x.Elements...)
			elems = append(elems, y.Elements...)
			return ObjVal(NewArray(elems)), nil
		}
	}
	if !a.IsNumber() || !b.IsNumber() {
		return Value{}, raise(TypeError, "unsupported operand types for %s: %s and %s", opSymbol(op), a.TypeName(), b.TypeName())
	}

	// Integer zero divisor fails whatever the dividend
	if (op == OP_DIV || op == OP_MOD) && b.Type == ValInt && b.AsInt() == 0 {
		if op == OP_DIV {
			return Value{}, raise(DivisionByZero, "division by zero")
		}
		return Value{}, raise(DivisionByZero, "modulo by zero")
	}

	if a.Type == ValInt && b.Type == ValInt {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OP_ADD:
			return IntVal(x + y), nil
		case OP_SUB:
			return IntVal(x - y), nil
		case OP_MUL:
			return IntVal(x * y), nil
		case OP_DIV:
			if x == math.MinInt64 && y == -1 {
				return IntVal(x), nil
			}
			return IntVal(x / y), nil
		case OP_MOD:
			if y == -1 {
				return IntVal(0), nil
			}
			return IntVal(x % y), nil
		}
	}

	x, y := a.Number(), b.Number()
	switch op {
	case OP_ADD:
		return FloatVal(x + y), nil
	case OP_SUB:
		return FloatVal(x - y), nil
	case OP_MUL:
		return FloatVal(x * y), nil
	case OP_DIV:
		if y == 0 {
			return Value{}, raise(DivisionByZero, "division by zero")
		}
		return FloatVal(x / y), nil
	case OP_MOD:
		if y == 0 {
			return Value{}, raise(DivisionByZero, "modulo by zero")
		}
		return FloatVal(math.Mod(x, y)), nil
	}
	return Value{}, raise(TypeError, "unknown arithmetic operator %s", op)
}

// compare orders two numbers or two strings
func compare(op Opcode, a, b Value) (bool, error) {
	var c int
	switch {
	case a.Type == ValInt && b.Type == ValInt:
		x, y := a.AsInt(), b.AsInt()
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	case a.IsNumber() && b.IsNumber():
		x, y := a.Number(), b.Number()
		if math.IsNaN(x) || math.IsNaN(y) {
			return false, nil
		}
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	case a.IsString() && b.IsString():
		c = strings.Compare(a.Str, b.Str)
	default:
		return false, raise(TypeError, "cannot compare %s and %s with %s", a.TypeName(), b.TypeName(), opSymbol(op))
	}

	switch op {
	case OP_LT:
		return c < 0, nil
	case OP_LE:
		return c <= 0, nil
	case OP_GT:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func opSymbol(op Opcode) string {
	switch op {
	case OP_ADD:
		return "+"
	case OP_SUB:
		return "-"
	case OP_MUL:
		return "*"
	case OP_DIV:
		return "/"
	case OP_MOD:
		return "%"
	case OP_LT:
		return "<"
	case OP_LE:
		return "<="
	case OP_GT:
		return ">"
	case OP_GE:
		return ">="
	}
	return op.String()
}

// elementIndex resolves a possibly negative index against length n
func elementIndex(key Value, n int, what string) (int, error) {
	if key.Type != ValInt {
		return 0, raise(TypeError, "%s index must be Int, got %s", what, key.TypeName())
	}
	i := key.AsInt()
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, raise(IndexOutOfBounds, "index %d out of bounds for %s of length %d", key.AsInt(), what, n)
	}
	return int(i), nil
}

// index implements obj[key]
func index(obj, key Value) (Value, error) {
	switch obj.Type {
	case ValString:
		runes := []rune(obj.Str)
		i, err := elementIndex(key, len(runes), "String")
		if err != nil {
			return Value{}, err
		}
		return StringVal(string(runes[i])), nil
	case ValObj:
		switch o := obj.Obj.(type) {
		case *Array:
			i, err := elementIndex(key, len(o.Elements), "Array")
			if err != nil {
				return Value{}, err
			}
			return o.Elements[i], nil
		case *Map:
			v, ok := o.Get(key)
			if !ok {
				return NullVal(), nil
			}
			return v, nil
		case *Range:
			i, err := elementIndex(key, int(o.Len()), "Range")
			if err != nil {
				return Value{}, err
			}
			return IntVal(o.Start + int64(i)), nil
		}
	}
	return Value{}, raise(NotIndexable, "%s is not indexable", obj.TypeName())
}

// setIndex implements obj[key] = v
func setIndex(obj, key, v Value) error {
	switch o := obj.Obj.(type) {
	case *Array:
		i, err := elementIndex(key, len(o.Elements), "Array")
		if err != nil {
			return err
		}
		o.Elements[i] = v
		return nil
	case *Map:
		o.Set(key, v)
		return nil
	}
	return raise(NotIndexable, "%s does not support index assignment", obj.TypeName())
}
