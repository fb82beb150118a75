package vm

// instantiate handles NEW (and calling a class): allocate, run field
// initializers superclass-first, then the nearest constructor.
func (vm *VM) instantiate(callee Value, argc int, names []string) error {
	class := callee.AsClass()
	if class == nil {
		return raise(NotCallable, "cannot instantiate %s", callee.TypeName())
	}
	retSlot := vm.sp - argc - 1
	inst := NewInstance(class)
	if err := vm.initFields(inst, class); err != nil {
		return err
	}

	ctor := class.findConstructor()
	switch {
	case ctor == nil:
		if argc > 0 {
			return raise(ArityMismatch, "%s has no constructor but got %d arguments", class.Name, argc)
		}
		vm.stack[retSlot] = ObjVal(inst)
		return nil

	case ctor.Init != nil:
		vm.stack[retSlot] = ObjVal(inst)
		return vm.callClosure(ctor.Init, retSlot, argc, names)

	default:
		if names != nil {
			return raise(ArityMismatch, "%s does not take named arguments", class.Name)
		}
		args := make([]Value, argc)
		copy(args, vm.stack[retSlot+1:vm.sp])
		if err := ctor.NativeInit(vm, inst, args); err != nil {
			return err
		}
		vm.dropN(vm.sp - retSlot)
		vm.push(ObjVal(inst))
		return nil
	}
}

func (vm *VM) initFields(inst *Instance, class *Class) error {
	if class.Super != nil {
		if err := vm.initFields(inst, class.Super); err != nil {
			return err
		}
	}
	for _, f := range class.Fields {
		v := NullVal()
		if f.Init != nil {
			var err error
			v, err = vm.Call(ObjVal(&BoundMethod{Receiver: ObjVal(inst), Method: f.Init}))
			if err != nil {
				return err
			}
		}
		inst.Set(f.Name, v)
	}
	return nil
}

// getSuper resolves super.name from the class that owns the running method
func (vm *VM) getSuper(this Value, name string) (Value, error) {
	owner := vm.frame.closure.Owner
	if owner == nil || owner.Super == nil {
		return Value{}, raise(InheritanceError, "super used outside a subclass method")
	}
	super := owner.Super

	if name != "new" {
		m, ok := super.FindMethod(name)
		if !ok {
			return Value{}, raise(UndefinedProperty, "%s has no method %s", super.Name, name)
		}
		return ObjVal(&BoundMethod{Receiver: this, Method: m}), nil
	}

	ctor := super.findConstructor()
	switch {
	case ctor == nil:
		return ObjVal(&BoundMethod{Receiver: this, Native: &NativeFunction{
			Name:  super.Name + ".new",
			Arity: 0,
			Fn:    func(vm *VM, args []Value) (Value, error) { return NullVal(), nil },
		}}), nil
	case ctor.Init != nil:
		return ObjVal(&BoundMethod{Receiver: this, Method: ctor.Init}), nil
	default:
		return ObjVal(&BoundMethod{Receiver: this, Native: &NativeFunction{
			Name:  ctor.Name + ".new",
			Arity: -1,
			Fn: func(vm *VM, args []Value) (Value, error) {
				inst := args[0].AsInstance()
				if inst == nil {
					return Value{}, raise(TypeError, "super constructor needs an instance")
				}
				return NullVal(), ctor.NativeInit(vm, inst, args[1:])
			},
		}}), nil
	}
}

// getProperty implements obj.name
func (vm *VM) getProperty(obj Value, name string) (Value, error) {
	switch o := obj.Obj.(type) {
	case *Instance:
		if v, ok := o.Get(name); ok {
			return v, nil
		}
		if m, ok := o.Class.FindMethod(name); ok {
			return ObjVal(&BoundMethod{Receiver: obj, Method: m}), nil
		}
		return Value{}, raise(UndefinedProperty, "%s has no property %s", o.Class.Name, name)

	case *Class:
		if v, ok := o.FindStatic(name); ok {
			return v, nil
		}
		if name == "name" {
			return StringVal(o.Name), nil
		}
		return Value{}, raise(UndefinedProperty, "class %s has no static member %s", o.Name, name)

	case *Map:
		if v, ok := o.Get(StringVal(name)); ok {
			return v, nil
		}
	}

	if fn := builtinMethod(obj, name); fn != nil {
		return ObjVal(&BoundMethod{Receiver: obj, Native: fn}), nil
	}
	return Value{}, raise(UndefinedProperty, "%s has no property %s", obj.TypeName(), name)
}

// setProperty implements obj.name = v
func (vm *VM) setProperty(obj Value, name string, v Value) error {
	switch o := obj.Obj.(type) {
	case *Instance:
		if o.Class.isConstField(name) {
			return raise(ConstAssignment, "cannot assign to constant field %s.%s", o.Class.Name, name)
		}
		o.Set(name, v)
		return nil

	case *Class:
		owner := o.staticOwner(name)
		if owner == nil {
			owner = o
		}
		if owner.StaticConsts[name] {
			return raise(ConstAssignment, "cannot assign to constant %s.%s", owner.Name, name)
		}
		owner.StaticFields[name] = v
		return nil

	case *Map:
		o.Set(StringVal(name), v)
		return nil
	}
	return raise(TypeError, "cannot set property %s on %s", name, obj.TypeName())
}
