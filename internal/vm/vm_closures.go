package vm

// makeClosure materializes proto inside frame, capturing its upvalues
func (vm *VM) makeClosure(proto *FunctionProto, frame *CallFrame) *Closure {
	closure := &Closure{
		Proto:    proto,
		Upvalues: make([]*Upvalue, len(proto.Upvalues)),
		Owner:    frame.closure.Owner,
	}
	for i, uv := range proto.Upvalues {
		if uv.IsLocal {
			closure.Upvalues[i] = vm.captureUpvalue(frame.base + uv.Index)
		} else {
			closure.Upvalues[i] = frame.closure.Upvalues[uv.Index]
		}
	}
	return closure
}

// captureUpvalue returns the open upvalue for slot, creating it if needed.
// Closures capturing the same slot share one cell.
func (vm *VM) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	uv := vm.openUpvalues

	// List is sorted by location, highest first
	for uv != nil && uv.Location > slot {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Location == slot {
		return uv
	}

	created := &Upvalue{Location: slot, Next: uv}
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above slot, moving the
// value off the stack into the cell.
func (vm *VM) closeUpvalues(slot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= slot {
		uv := vm.openUpvalues
		uv.Closed = vm.stack[uv.Location]
		uv.Location = -1
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}

func (vm *VM) readUpvalue(uv *Upvalue) Value {
	if uv.IsOpen() {
		return vm.stack[uv.Location]
	}
	return uv.Closed
}

func (vm *VM) writeUpvalue(uv *Upvalue, v Value) {
	if uv.IsOpen() {
		vm.stack[uv.Location] = v
		return
	}
	uv.Closed = v
}
