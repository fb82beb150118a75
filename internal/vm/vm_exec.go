package vm

import (
	"strings"
)

// executeOneOp runs every instruction except RETURN and END_FINALLY, which
// need the run loop's stop depth.
func (vm *VM) executeOneOp(ins Instruction) error {
	frame := vm.frame
	switch ins.Op {
	case OP_CONST:
		vm.push(frame.closure.Proto.Chunk.Constants[ins.A])

	case OP_NULL:
		vm.push(NullVal())

	case OP_TRUE:
		vm.push(BoolVal(true))

	case OP_FALSE:
		vm.push(BoolVal(false))

	case OP_POP:
		vm.pop()

	case OP_DUP:
		vm.push(vm.peek(int(ins.A)))

	case OP_CLOSE_SCOPE:
		// Keep the top value, drop the A locals under it
		n := int(ins.A)
		top := vm.pop()
		vm.closeUpvalues(vm.sp - n)
		for i := vm.sp - n; i < vm.sp; i++ {
			vm.stack[i] = Value{}
		}
		vm.sp -= n
		vm.push(top)

	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
		b := vm.pop()
		a := vm.pop()
		v, err := arith(ins.Op, a, b)
		if err != nil {
			return err
		}
		vm.push(v)

	case OP_NEG:
		val := vm.pop()
		switch val.Type {
		case ValInt:
			vm.push(IntVal(-val.AsInt()))
		case ValFloat:
			vm.push(FloatVal(-val.AsFloat()))
		default:
			return raise(TypeError, "cannot negate %s", val.TypeName())
		}

	case OP_NOT:
		vm.push(BoolVal(!vm.pop().Truthy()))

	case OP_EQ:
		b := vm.pop()
		a := vm.pop()
		vm.push(BoolVal(a.Equals(b)))

	case OP_NE:
		b := vm.pop()
		a := vm.pop()
		vm.push(BoolVal(!a.Equals(b)))

	case OP_LT, OP_LE, OP_GT, OP_GE:
		b := vm.pop()
		a := vm.pop()
		v, err := compare(ins.Op, a, b)
		if err != nil {
			return err
		}
		vm.push(BoolVal(v))

	case OP_GET_LOCAL:
		vm.push(vm.stack[frame.base+int(ins.A)])

	case OP_SET_LOCAL:
		vm.stack[frame.base+int(ins.A)] = vm.peek(0)

	case OP_GET_GLOBAL:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		v, ok := vm.globals.Get(name)
		if !ok {
			return raise(UndefinedVariable, "undefined variable %s", name)
		}
		vm.push(v)

	case OP_SET_GLOBAL:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		if !vm.globals.Has(name) {
			return raise(UndefinedVariable, "undefined variable %s", name)
		}
		if vm.globals.IsConst(name) {
			return raise(ConstAssignment, "cannot assign to constant %s", name)
		}
		vm.globals.Set(name, vm.peek(0))

	case OP_DEFINE_GLOBAL:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		vm.globals.Define(name, vm.pop(), ins.B == 1)

	case OP_GET_UPVALUE:
		vm.push(vm.readUpvalue(frame.closure.Upvalues[ins.A]))

	case OP_SET_UPVALUE:
		vm.writeUpvalue(frame.closure.Upvalues[ins.A], vm.peek(0))

	case OP_CLOSE_UPVALUE:
		vm.closeUpvalues(vm.sp - 1)
		vm.pop()

	case OP_JUMP:
		frame.ip += int(ins.A)

	case OP_JUMP_IF_FALSE:
		if !vm.pop().Truthy() {
			frame.ip += int(ins.A)
		}

	case OP_JUMP_IF_TRUE:
		if vm.pop().Truthy() {
			frame.ip += int(ins.A)
		}

	case OP_JUMP_IF_FALSE_KEEP:
		if !vm.peek(0).Truthy() {
			frame.ip += int(ins.A)
		}

	case OP_JUMP_IF_TRUE_KEEP:
		if vm.peek(0).Truthy() {
			frame.ip += int(ins.A)
		}

	case OP_JUMP_IF_NOT_NULL:
		if !vm.peek(0).IsNull() {
			frame.ip += int(ins.A)
		}

	case OP_JUMP_IF_NULL:
		if vm.peek(0).IsNull() {
			frame.ip += int(ins.A)
		}

	case OP_LOOP:
		frame.ip -= int(ins.A)

	case OP_CALL:
		names := vm.argNames(ins.B)
		argc := int(ins.A) + len(names)
		return vm.callValue(vm.peek(argc), argc, names)

	case OP_CLOSURE:
		proto := frame.closure.Proto.Chunk.Constants[ins.A].Obj.(*FunctionProto)
		vm.push(ObjVal(vm.makeClosure(proto, frame)))

	case OP_ARRAY:
		n := int(ins.A)
		elems := make([]Value, n)
		copy(elems, vm.stack[vm.sp-n:vm.sp])
		vm.dropN(n)
		vm.push(ObjVal(NewArray(elems)))

	case OP_ARRAY_APPEND:
		v := vm.pop()
		arr := vm.peek(0).AsArray()
		arr.Elements = append(arr.Elements, v)

	case OP_ARRAY_EXTEND:
		src := vm.pop()
		arr := vm.peek(0).AsArray()
		items, err := vm.collect(src)
		if err != nil {
			return err
		}
		arr.Elements = append(arr.Elements, items...)

	case OP_MAP:
		n := int(ins.A)
		m := NewMap()
		start := vm.sp - 2*n
		for i := 0; i < n; i++ {
			m.Set(vm.stack[start+2*i], vm.stack[start+2*i+1])
		}
		vm.dropN(2 * n)
		vm.push(ObjVal(m))

	case OP_MAP_INSERT:
		v := vm.pop()
		k := vm.pop()
		vm.peek(0).AsMap().Set(k, v)

	case OP_MAP_MERGE:
		src := vm.pop()
		other := src.AsMap()
		if other == nil {
			return raise(TypeError, "cannot spread %s into a map", src.TypeName())
		}
		other.Each(vm.peek(0).AsMap().Set)

	case OP_INDEX:
		key := vm.pop()
		obj := vm.pop()
		v, err := index(obj, key)
		if err != nil {
			return err
		}
		vm.push(v)

	case OP_SET_INDEX:
		v := vm.pop()
		key := vm.pop()
		obj := vm.pop()
		if err := setIndex(obj, key, v); err != nil {
			return err
		}
		vm.push(v)

	case OP_RANGE:
		end := vm.pop()
		start := vm.pop()
		if start.Type != ValInt || end.Type != ValInt {
			return raise(TypeError, "range bounds must be Int, got %s and %s", start.TypeName(), end.TypeName())
		}
		vm.push(ObjVal(&Range{Start: start.AsInt(), End: end.AsInt(), Inclusive: ins.A == 1}))

	case OP_INTERPOLATE:
		n := int(ins.A)
		var sb strings.Builder
		for _, part := range vm.stack[vm.sp-n : vm.sp] {
			sb.WriteString(part.String())
		}
		vm.dropN(n)
		vm.push(StringVal(sb.String()))

	case OP_GET_PROPERTY:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		obj := vm.pop()
		v, err := vm.getProperty(obj, name)
		if err != nil {
			return err
		}
		vm.push(v)

	case OP_SET_PROPERTY:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		v := vm.pop()
		obj := vm.pop()
		if err := vm.setProperty(obj, name, v); err != nil {
			return err
		}
		vm.push(v)

	case OP_CLASS:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		vm.push(ObjVal(NewClass(name)))

	case OP_INHERIT:
		super := vm.pop()
		sc := super.AsClass()
		if sc == nil {
			return raise(InheritanceError, "cannot inherit from %s", super.TypeName())
		}
		vm.peek(0).AsClass().Super = sc

	case OP_METHOD, OP_STATIC_METHOD:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		method := vm.pop().Obj.(*Closure)
		class := vm.peek(0).AsClass()
		method.Owner = class
		switch {
		case ins.Op == OP_STATIC_METHOD:
			class.StaticMethods[name] = method
		case method.Proto.IsInitializer:
			class.Init = method
		default:
			class.Methods[name] = method
		}

	case OP_FIELD:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		init := vm.pop()
		class := vm.peek(0).AsClass()
		spec := &FieldSpec{Name: name, Const: ins.B == 1}
		if c, ok := init.Obj.(*Closure); ok {
			c.Owner = class
			spec.Init = c
		}
		class.Fields = append(class.Fields, spec)

	case OP_STATIC_FIELD:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		v := vm.pop()
		class := vm.peek(0).AsClass()
		class.StaticFields[name] = v
		if ins.B == 1 {
			class.StaticConsts[name] = true
		}

	case OP_NEW:
		names := vm.argNames(ins.B)
		argc := int(ins.A) + len(names)
		return vm.instantiate(vm.peek(argc), argc, names)

	case OP_GET_SUPER:
		name := frame.closure.Proto.Chunk.Constants[ins.A].Str
		this := vm.pop()
		v, err := vm.getSuper(this, name)
		if err != nil {
			return err
		}
		vm.push(v)

	case OP_TRY_BEGIN:
		vm.pushHandler(ins)

	case OP_TRY_END:
		if n := len(vm.handlers); n > 0 && vm.handlers[n-1].frameDepth == vm.frameCount {
			vm.handlers = vm.handlers[:n-1]
		}

	case OP_THROW:
		return throwValue(vm.pop())

	case OP_ENTER_FINALLY:
		vm.completions = append(vm.completions, completion{kind: completionNormal})

	case OP_GET_ITER:
		it, err := vm.newIterator(vm.pop())
		if err != nil {
			return err
		}
		vm.iterators = append(vm.iterators, it)

	case OP_FOR_ITER:
		it := vm.iterators[len(vm.iterators)-1]
		key, val, ok := it.next()
		if !ok {
			vm.iterators = vm.iterators[:len(vm.iterators)-1]
			frame.ip += int(ins.A)
			break
		}
		if ins.B == 1 {
			vm.push(key)
			vm.push(val)
		} else {
			vm.push(element(it, key, val))
		}

	case OP_POP_ITER:
		vm.iterators = vm.iterators[:len(vm.iterators)-1]

	case OP_MATCH_FAIL:
		v := vm.pop()
		return raise(MatchError, "no match arm matched %s", v.Inspect())

	case OP_IMPORT:
		path := frame.closure.Proto.Chunk.Constants[ins.A].Str
		return vm.importModule(path, vm.argNames(ins.B))

	default:
		return raise(TypeError, "unknown opcode %d", ins.Op)
	}
	return nil
}

// argNames decodes the names constant of CALL, NEW and IMPORT
func (vm *VM) argNames(idx int32) []string {
	if idx < 0 {
		return nil
	}
	arr := vm.frame.closure.Proto.Chunk.Constants[idx].AsArray()
	names := make([]string, len(arr.Elements))
	for i, v := range arr.Elements {
		names[i] = v.Str
	}
	return names
}

// dropN pops n values without returning them
func (vm *VM) dropN(n int) {
	for i := vm.sp - n; i < vm.sp; i++ {
		vm.stack[i] = Value{}
	}
	vm.sp -= n
}
