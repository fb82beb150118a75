package soli

import (
	"fmt"
	"math"
	"reflect"

	"github.com/solisoft/soli/internal/vm"
)

var (
	valueType = reflect.TypeOf(vm.Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Marshaller handles conversion between Go and soli values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a soli value. Structs (and pointers to
// them) become maps keyed by exported field name; funcs become builtins.
func (m *Marshaller) ToValue(val interface{}) (vm.Value, error) {
	if val == nil {
		return vm.NullVal(), nil
	}
	if v, ok := val.(vm.Value); ok {
		return v, nil
	}
	return m.toValue(reflect.ValueOf(val), "<host>")
}

func (m *Marshaller) toValue(v reflect.Value, name string) (vm.Value, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return vm.NullVal(), nil
	}
	if v.Type() == valueType {
		return v.Interface().(vm.Value), nil
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.IntVal(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return vm.NullVal(), fmt.Errorf("%d overflows Int", u)
		}
		return vm.IntVal(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return vm.FloatVal(v.Float()), nil
	case reflect.Bool:
		return vm.BoolVal(v.Bool()), nil
	case reflect.String:
		return vm.StringVal(v.String()), nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return vm.NullVal(), nil
		}
		elems := make([]vm.Value, v.Len())
		for i := range elems {
			el, err := m.toValue(v.Index(i), name)
			if err != nil {
				return vm.NullVal(), fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = el
		}
		return vm.ObjVal(vm.NewArray(elems)), nil
	case reflect.Map:
		if v.IsNil() {
			return vm.NullVal(), nil
		}
		result := vm.NewMap()
		iter := v.MapRange()
		for iter.Next() {
			key, err := m.toValue(iter.Key(), name)
			if err != nil {
				return vm.NullVal(), fmt.Errorf("map key: %w", err)
			}
			val, err := m.toValue(iter.Value(), name)
			if err != nil {
				return vm.NullVal(), fmt.Errorf("map value: %w", err)
			}
			result.Set(key, val)
		}
		return vm.ObjVal(result), nil
	case reflect.Struct:
		return m.structToMap(v, name)
	case reflect.Ptr:
		if v.IsNil() {
			return vm.NullVal(), nil
		}
		return m.toValue(v.Elem(), name)
	case reflect.Func:
		if v.IsNil() {
			return vm.NullVal(), nil
		}
		return vm.ObjVal(m.wrapFunc(name, v)), nil
	}
	return vm.NullVal(), fmt.Errorf("unsupported Go type %s", v.Type())
}

func (m *Marshaller) structToMap(v reflect.Value, name string) (vm.Value, error) {
	result := vm.NewMap()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // Skip unexported fields
			continue
		}
		val, err := m.toValue(v.Field(i), name)
		if err != nil {
			return vm.NullVal(), fmt.Errorf("field %s: %w", field.Name, err)
		}
		result.Set(vm.StringVal(field.Name), val)
	}
	return vm.ObjVal(result), nil
}

// wrapFunc turns a Go func into a builtin. A trailing error result is
// raised as HostError; with two or more other results they come back as
// an array.
func (m *Marshaller) wrapFunc(name string, fn reflect.Value) *vm.NativeFunction {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	isVariadic := fnType.IsVariadic()
	arity := numIn
	if isVariadic {
		arity = -1
	}

	call := func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if isVariadic && len(args) < numIn-1 {
			return vm.NullVal(), vm.NewRuntimeError(vm.ArityMismatch, "%s expects at least %d arguments, got %d", name, numIn-1, len(args))
		}
		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			targetType := fnType.In(min(i, numIn-1))
			if isVariadic && i >= numIn-1 {
				targetType = fnType.In(numIn - 1).Elem()
			}
			rv, err := m.convert(arg, targetType)
			if err != nil {
				return vm.NullVal(), vm.NewRuntimeError(vm.TypeError, "%s: argument %d: %v", name, i+1, err)
			}
			goArgs[i] = rv
		}

		results := fn.Call(goArgs)
		if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
			if err, _ := results[n-1].Interface().(error); err != nil {
				return vm.NullVal(), vm.NewRuntimeError(vm.HostError, "%s: %v", name, err)
			}
			results = results[:n-1]
		}

		switch len(results) {
		case 0:
			return vm.NullVal(), nil
		case 1:
			return m.toValue(results[0], name)
		}
		elems := make([]vm.Value, len(results))
		for i, res := range results {
			val, err := m.toValue(res, name)
			if err != nil {
				return vm.NullVal(), vm.NewRuntimeError(vm.TypeError, "%s: result %d: %v", name, i+1, err)
			}
			elems[i] = val
		}
		return vm.ObjVal(vm.NewArray(elems)), nil
	}
	return &vm.NativeFunction{Name: name, Arity: arity, Fn: call}
}

// FromValue converts a soli value to Go. targetType is optional; when nil
// ints come back as int, arrays as []interface{} and maps as
// map[string]interface{} (map[interface{}]interface{} if a key is not a
// string). Functions and classes come back as vm.Value.
func (m *Marshaller) FromValue(v vm.Value, targetType reflect.Type) (interface{}, error) {
	if targetType == nil {
		return m.natural(v)
	}
	rv, err := m.convert(v, targetType)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func (m *Marshaller) natural(v vm.Value) (interface{}, error) {
	switch v.Type {
	case vm.ValNull:
		return nil, nil
	case vm.ValInt:
		return int(v.AsInt()), nil // Default to int
	case vm.ValFloat:
		return v.AsFloat(), nil
	case vm.ValBool:
		return v.AsBool(), nil
	case vm.ValString:
		return v.AsString(), nil
	}

	switch o := v.Obj.(type) {
	case *vm.Array:
		out := make([]interface{}, len(o.Elements))
		for i, el := range o.Elements {
			val, err := m.natural(el)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case *vm.Map:
		return m.mapToGo(o)
	case *vm.Instance:
		out := make(map[string]interface{}, len(o.Fields))
		for name, field := range o.Fields {
			val, err := m.natural(field)
			if err != nil {
				return nil, err
			}
			out[name] = val
		}
		return out, nil
	}
	return v, nil
}

func (m *Marshaller) mapToGo(o *vm.Map) (interface{}, error) {
	keys := o.Keys()
	allStrings := true
	for _, k := range keys {
		if !k.IsString() {
			allStrings = false
			break
		}
	}

	if allStrings {
		out := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			val, _ := o.Get(k)
			gv, err := m.natural(val)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = gv
		}
		return out, nil
	}

	out := make(map[interface{}]interface{}, len(keys))
	for _, k := range keys {
		gk, err := m.natural(k)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		if gk != nil && !reflect.TypeOf(gk).Comparable() {
			return nil, fmt.Errorf("map key %s is not comparable in Go", k.Inspect())
		}
		val, _ := o.Get(k)
		gv, err := m.natural(val)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		out[gk] = gv
	}
	return out, nil
}

// convert builds a Go value of type t from v.
func (m *Marshaller) convert(v vm.Value, t reflect.Type) (reflect.Value, error) {
	if t == valueType {
		return reflect.ValueOf(v), nil
	}
	out := reflect.New(t).Elem()

	switch t.Kind() {
	case reflect.Interface:
		nat, err := m.natural(v)
		if err != nil {
			return out, err
		}
		if nat == nil {
			return out, nil
		}
		rv := reflect.ValueOf(nat)
		if !rv.Type().AssignableTo(t) {
			return out, fmt.Errorf("cannot use %s as %s", v.TypeName(), t)
		}
		out.Set(rv)
		return out, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type != vm.ValInt {
			return out, fmt.Errorf("expected Int, got %s", v.TypeName())
		}
		if out.OverflowInt(v.AsInt()) {
			return out, fmt.Errorf("%d overflows %s", v.AsInt(), t)
		}
		out.SetInt(v.AsInt())
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Type != vm.ValInt || v.AsInt() < 0 {
			return out, fmt.Errorf("expected non-negative Int, got %s", v.Inspect())
		}
		if out.OverflowUint(uint64(v.AsInt())) {
			return out, fmt.Errorf("%d overflows %s", v.AsInt(), t)
		}
		out.SetUint(uint64(v.AsInt()))
		return out, nil

	case reflect.Float32, reflect.Float64:
		if !v.IsNumber() {
			return out, fmt.Errorf("expected Float, got %s", v.TypeName())
		}
		out.SetFloat(v.Number())
		return out, nil

	case reflect.Bool:
		if v.Type != vm.ValBool {
			return out, fmt.Errorf("expected Bool, got %s", v.TypeName())
		}
		out.SetBool(v.AsBool())
		return out, nil

	case reflect.String:
		if v.Type != vm.ValString {
			return out, fmt.Errorf("expected String, got %s", v.TypeName())
		}
		out.SetString(v.AsString())
		return out, nil

	case reflect.Slice:
		if v.IsNull() {
			return out, nil
		}
		arr := v.AsArray()
		if arr == nil {
			return out, fmt.Errorf("expected Array, got %s", v.TypeName())
		}
		slice := reflect.MakeSlice(t, len(arr.Elements), len(arr.Elements))
		for i, el := range arr.Elements {
			rv, err := m.convert(el, t.Elem())
			if err != nil {
				return out, fmt.Errorf("index %d: %w", i, err)
			}
			slice.Index(i).Set(rv)
		}
		return slice, nil

	case reflect.Map:
		if v.IsNull() {
			return out, nil
		}
		mp := v.AsMap()
		if mp == nil {
			return out, fmt.Errorf("expected Map, got %s", v.TypeName())
		}
		result := reflect.MakeMapWithSize(t, mp.Len())
		for _, k := range mp.Keys() {
			kv, err := m.convert(k, t.Key())
			if err != nil {
				return out, fmt.Errorf("map key: %w", err)
			}
			val, _ := mp.Get(k)
			vv, err := m.convert(val, t.Elem())
			if err != nil {
				return out, fmt.Errorf("map value %s: %w", k.Inspect(), err)
			}
			result.SetMapIndex(kv, vv)
		}
		return result, nil

	case reflect.Struct:
		lookup, err := fieldLookup(v)
		if err != nil {
			return out, err
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			val, ok := lookup(field.Name)
			if !ok {
				continue
			}
			rv, err := m.convert(val, field.Type)
			if err != nil {
				return out, fmt.Errorf("field %s: %w", field.Name, err)
			}
			out.Field(i).Set(rv)
		}
		return out, nil

	case reflect.Ptr:
		if v.IsNull() {
			return out, nil
		}
		elem, err := m.convert(v, t.Elem())
		if err != nil {
			return out, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}
	return out, fmt.Errorf("cannot convert %s to %s", v.TypeName(), t)
}

// fieldLookup reads struct fields from a map with string keys or from an
// instance.
func fieldLookup(v vm.Value) (func(string) (vm.Value, bool), error) {
	if mp := v.AsMap(); mp != nil {
		return func(name string) (vm.Value, bool) { return mp.Get(vm.StringVal(name)) }, nil
	}
	if inst := v.AsInstance(); inst != nil {
		return inst.Get, nil
	}
	return nil, fmt.Errorf("expected Map or instance, got %s", v.TypeName())
}
