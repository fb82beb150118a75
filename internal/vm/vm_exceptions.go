package vm

import (
	"errors"
)

// handler is a live try region
type handler struct {
	catchIP    int // -1 when the region has no catch
	finallyIP  int // -1 when the region has no finally
	stackDepth int
	frameDepth int
	iterDepth  int
	complDepth int
}

type completionKind uint8

const (
	completionNormal completionKind = iota
	completionThrow
	completionReturn
)

// completion is what a finally body resumes once it ends
type completion struct {
	kind  completionKind
	value Value // return value
	err   error // error to rethrow
}

func (vm *VM) pushHandler(ins Instruction) {
	next := vm.frame.ip
	h := handler{
		catchIP:    -1,
		finallyIP:  -1,
		stackDepth: vm.sp,
		frameDepth: vm.frameCount,
		iterDepth:  len(vm.iterators),
		complDepth: len(vm.completions),
	}
	if ins.A >= 0 {
		h.catchIP = next + int(ins.A)
	}
	if ins.B >= 0 {
		h.finallyIP = next + int(ins.B)
	}
	vm.handlers = append(vm.handlers, h)
}

// unwindTo drops frames, stack values and loop state above h
func (vm *VM) unwindTo(h handler) {
	vm.closeUpvalues(h.stackDepth)
	vm.dropN(vm.sp - h.stackDepth)
	vm.frameCount = h.frameDepth
	vm.frame = &vm.frames[vm.frameCount-1]
	vm.iterators = vm.iterators[:h.iterDepth]
	vm.completions = vm.completions[:h.complDepth]
}

// handleError routes err to the innermost handler opened inside the current
// run. It reports false when the error must propagate.
func (vm *VM) handleError(err error, stopDepth int) bool {
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind == Cancelled {
		return false
	}
	n := len(vm.handlers)
	if n == 0 || vm.handlers[n-1].frameDepth <= stopDepth {
		return false
	}
	h := vm.handlers[n-1]
	vm.handlers = vm.handlers[:n-1]

	vm.logger.Debug().Str("kind", string(re.Kind)).Int("line", re.Line).Msg("exception caught")

	vm.unwindTo(h)
	if h.catchIP >= 0 {
		vm.push(vm.exceptionValue(re))
		vm.frame.ip = h.catchIP
		return true
	}
	vm.completions = append(vm.completions, completion{kind: completionThrow, err: re})
	vm.frame.ip = h.finallyIP
	return true
}

// exceptionValue is what a catch clause binds: the thrown value, or an
// Error instance describing a runtime error.
func (vm *VM) exceptionValue(re *RuntimeError) Value {
	if re.thrown {
		return re.Value
	}
	if !re.Value.IsNull() {
		return re.Value
	}
	inst := NewInstance(vm.errorClass())
	inst.Set("message", StringVal(re.Message))
	inst.Set("kind", StringVal(string(re.Kind)))
	inst.Set("line", IntVal(int64(re.Line)))
	re.Value = ObjVal(inst)
	return re.Value
}

// errorClass returns the Error class of the current globals
func (vm *VM) errorClass() *Class {
	if vm.globals.errorClass == nil {
		vm.globals.errorClass = newErrorClass()
	}
	return vm.globals.errorClass
}

func newErrorClass() *Class {
	class := NewClass("Error")
	class.NativeInit = func(vm *VM, inst *Instance, args []Value) error {
		if len(args) > 1 {
			return raise(ArityMismatch, "Error expects at most 1 argument, got %d", len(args))
		}
		msg := ""
		if len(args) == 1 {
			msg = args[0].String()
		}
		inst.Set("message", StringVal(msg))
		inst.Set("kind", StringVal("Error"))
		inst.Set("line", IntVal(int64(vm.currentLine())))
		return nil
	}
	return class
}

// finalizeError shapes an error that escaped the whole run. A thrown Error
// carrying a runtime kind reports as that kind again.
func (vm *VM) finalizeError(err error) error {
	var re *RuntimeError
	if !errors.As(err, &re) || !re.thrown {
		return err
	}
	re.thrown = false
	inst := re.Value.AsInstance()
	if inst == nil || !inst.Class.IsSubclassOf(vm.errorClass()) {
		return re
	}
	kind, _ := inst.Get("kind")
	if k := ErrorKind(kind.Str); knownKinds[k] {
		re.Kind = k
	}
	if msg, ok := inst.Get("message"); ok {
		re.Message = msg.String()
	}
	if line, ok := inst.Get("line"); ok && line.Type == ValInt && line.AsInt() > 0 {
		re.Line = int(line.AsInt())
	}
	return re
}
