package vm

// callValue dispatches a call on the callee sitting argc slots below the top
func (vm *VM) callValue(callee Value, argc int, names []string) error {
	retSlot := vm.sp - argc - 1
	if callee.Type != ValObj {
		return raise(NotCallable, "%s is not callable", callee.TypeName())
	}

	switch fn := callee.Obj.(type) {
	case *Closure:
		return vm.callClosure(fn, retSlot, argc, names)
	case *BoundMethod:
		if fn.Method != nil {
			vm.stack[retSlot] = fn.Receiver
			return vm.callClosure(fn.Method, retSlot, argc, names)
		}
		if names != nil {
			return raise(ArityMismatch, "%s does not take named arguments", fn.Native.Name)
		}
		args := make([]Value, argc+1)
		args[0] = fn.Receiver
		copy(args[1:], vm.stack[retSlot+1:vm.sp])
		return vm.callNative(fn.Native, retSlot, args, argc)
	case *NativeFunction:
		if names != nil {
			return raise(ArityMismatch, "%s does not take named arguments", fn.Name)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[retSlot+1:vm.sp])
		return vm.callNative(fn, retSlot, args, argc)
	case *Class:
		return vm.instantiate(callee, argc, names)
	default:
		return raise(NotCallable, "%s is not callable", callee.TypeName())
	}
}

// callNative runs a Go builtin and leaves its result in retSlot. argc is the
// user-visible argument count, checked against the builtin's arity.
func (vm *VM) callNative(fn *NativeFunction, retSlot int, args []Value, argc int) error {
	if fn.Arity >= 0 && argc != fn.Arity {
		return raise(ArityMismatch, "%s expects %d arguments, got %d", fn.Name, fn.Arity, argc)
	}
	result, err := fn.Fn(vm, args)
	if err != nil {
		return err
	}
	vm.dropN(vm.sp - retSlot)
	vm.push(result)
	return nil
}

// callClosure binds the arguments above retSlot to the closure's parameters
// and pushes its frame. Methods find their receiver already in retSlot.
func (vm *VM) callClosure(closure *Closure, retSlot, argc int, names []string) error {
	proto := closure.Proto
	base := retSlot + 1
	if proto.IsMethod {
		base = retSlot
	}

	if names != nil || argc != proto.Arity {
		if err := vm.bindArguments(closure, retSlot, base, argc, names); err != nil {
			vm.closeUpvalues(retSlot + 1)
			return err
		}
	}

	if err := vm.pushFrame(closure, retSlot, base); err != nil {
		return err
	}
	if e := vm.logger.Trace(); e.Enabled() {
		e.Str("fn", proto.Name).Int("depth", vm.frameCount).Msg("call")
	}
	return nil
}

// bindArguments rearranges positional and named arguments into parameter
// order and fills missing trailing parameters from their defaults.
func (vm *VM) bindArguments(closure *Closure, retSlot, base, argc int, names []string) error {
	proto := closure.Proto
	positional := argc - len(names)
	if positional > proto.Arity {
		return raise(ArityMismatch, "%s expects at most %d arguments, got %d", proto.Name, proto.Arity, positional)
	}

	args := make([]Value, proto.Arity)
	set := make([]bool, proto.Arity)
	first := retSlot + 1
	for i := 0; i < positional; i++ {
		args[i] = vm.stack[first+i]
		set[i] = true
	}
	for n, name := range names {
		idx := -1
		for i, p := range proto.ParamNames {
			if p == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return raise(ArityMismatch, "%s has no parameter named %s", proto.Name, name)
		}
		if set[idx] {
			return raise(ArityMismatch, "%s got parameter %s twice", proto.Name, name)
		}
		args[idx] = vm.stack[first+positional+n]
		set[idx] = true
	}
	for i := 0; i < proto.RequiredArity; i++ {
		if !set[i] {
			return raise(ArityMismatch, "%s expects %d arguments, missing %s", proto.Name, proto.RequiredArity, proto.ParamNames[i])
		}
	}

	vm.dropN(vm.sp - first)
	for _, a := range args {
		vm.push(a)
	}

	// Defaults run with the earlier parameters already in their slots
	for i := proto.RequiredArity; i < proto.Arity; i++ {
		if set[i] {
			continue
		}
		def := vm.defaultClosure(closure, proto.Defaults[i-proto.RequiredArity], base)
		v, err := vm.Call(ObjVal(def))
		if err != nil {
			return err
		}
		vm.stack[first+i] = v
	}
	return nil
}

// defaultClosure instantiates a default-value prototype against the frame
// that is about to start at base.
func (vm *VM) defaultClosure(callee *Closure, proto *FunctionProto, base int) *Closure {
	c := &Closure{Proto: proto, Upvalues: make([]*Upvalue, len(proto.Upvalues)), Owner: callee.Owner}
	for i, uv := range proto.Upvalues {
		if uv.IsLocal {
			c.Upvalues[i] = vm.captureUpvalue(base + uv.Index)
		} else {
			c.Upvalues[i] = callee.Upvalues[uv.Index]
		}
	}
	return c
}

// Call invokes callee synchronously and returns its result. It is safe to
// use from natives while a run is in progress; the VM state is restored if
// the call fails.
func (vm *VM) Call(callee Value, args ...Value) (Value, error) {
	entrySp := vm.sp
	depth := vm.frameCount
	nHandlers, nIters, nCompl := len(vm.handlers), len(vm.iterators), len(vm.completions)

	restore := func() {
		vm.closeUpvalues(entrySp)
		vm.dropN(vm.sp - entrySp)
		vm.frameCount = depth
		if depth > 0 {
			vm.frame = &vm.frames[depth-1]
		} else {
			vm.frame = nil
		}
		vm.handlers = vm.handlers[:nHandlers]
		vm.iterators = vm.iterators[:nIters]
		vm.completions = vm.completions[:nCompl]
	}

	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.callValue(callee, len(args), nil); err != nil {
		restore()
		return NullVal(), err
	}
	if vm.frameCount == depth {
		// A native finished without a frame
		return vm.pop(), nil
	}

	result, err := vm.run(depth)
	if err != nil {
		restore()
		return NullVal(), err
	}
	return result, nil
}
