package vm

import (
	"fmt"
	"strings"
)

// UpvalueDesc tells the Closure instruction where to capture each upvalue:
// from a local slot of the enclosing frame, or from the enclosing closure's
// own upvalue list.
type UpvalueDesc struct {
	IsLocal bool
	Index   int
}

// FunctionProto represents a function compiled to bytecode.
// It is immutable once compiled and shared by every closure made from it.
type FunctionProto struct {
	Name          string
	Arity         int      // Total number of parameters (not counting this)
	RequiredArity int      // Parameters without a default value
	ParamNames    []string // For named-argument binding
	// Defaults[i] computes the value of parameter RequiredArity+i. Each is a
	// zero-argument prototype compiled inside this function, so it can read
	// earlier parameters through upvalues.
	Defaults      []*FunctionProto
	Chunk         *Chunk
	Upvalues      []UpvalueDesc
	IsMethod      bool // Slot 0 holds this
	IsInitializer bool // Constructor: returns this regardless of body
}

func (f *FunctionProto) TypeName() string { return "Function" }
func (f *FunctionProto) Inspect() string  { return fmt.Sprintf("<fn %s>", f.Name) }

// Closure wraps a FunctionProto with its captured upvalues
type Closure struct {
	Proto    *FunctionProto
	Upvalues []*Upvalue
	// Owner is the class whose method table holds this closure (or whose
	// method created it), used to resolve super.
	Owner *Class
}

func (c *Closure) TypeName() string { return "Function" }
func (c *Closure) Inspect() string  { return fmt.Sprintf("<fn %s>", c.Proto.Name) }

// Upvalue represents a captured variable from an enclosing scope.
// It is "open" while the variable still lives on the stack and "closed"
// once the owning frame has returned. Every closure that captured the same
// variable holds the same *Upvalue.
type Upvalue struct {
	// When open: Location is the absolute stack slot.
	// When closed: Location is -1 and Closed holds the value.
	Location int
	Closed   Value

	// For the VM's open upvalue list (singly linked, sorted by location)
	Next *Upvalue
}

func (u *Upvalue) IsOpen() bool { return u.Location >= 0 }

// NativeFn is the Go signature of a builtin.
type NativeFn func(vm *VM, args []Value) (Value, error)

// NativeFunction wraps a Go function as a callable value.
// Arity -1 accepts any number of arguments.
type NativeFunction struct {
	Name  string
	Arity int
	Fn    NativeFn
}

func (n *NativeFunction) TypeName() string { return "Function" }
func (n *NativeFunction) Inspect() string  { return "<builtin " + n.Name + ">" }

// BoundMethod pairs a receiver with a method. Exactly one of Method and
// Native is set; natives get the receiver as their first argument.
type BoundMethod struct {
	Receiver Value
	Method   *Closure
	Native   *NativeFunction
}

func (b *BoundMethod) TypeName() string { return "Function" }
func (b *BoundMethod) Inspect() string {
	if b.Native != nil {
		return "<builtin method " + b.Native.Name + ">"
	}
	return fmt.Sprintf("<method %s>", b.Method.Proto.Name)
}

func (b *BoundMethod) name() string {
	if b.Native != nil {
		return b.Native.Name
	}
	return b.Method.Proto.Name
}

// Array is a mutable, reference-shared list.
type Array struct {
	Elements []Value
}

func NewArray(elems []Value) *Array {
	return &Array{Elements: elems}
}

func (a *Array) TypeName() string { return "Array" }
func (a *Array) Inspect() string  { return "[" + joinInspect(a.Elements) + "]" }

// Range is an integer range; End is exclusive unless Inclusive.
type Range struct {
	Start     int64
	End       int64
	Inclusive bool
}

func (r *Range) TypeName() string { return "Range" }
func (r *Range) Inspect() string {
	if r.Inclusive {
		return fmt.Sprintf("%d..=%d", r.Start, r.End)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Len returns the number of integers in the range.
func (r *Range) Len() int64 {
	end := r.End
	if r.Inclusive {
		end++
	}
	if end <= r.Start {
		return 0
	}
	return end - r.Start
}

// FieldSpec is an instance field declared on a class.
type FieldSpec struct {
	Name  string
	Init  *Closure // nil means the field starts as null
	Const bool
}

// Class holds method tables and field declarations. Lookups that miss walk
// the Super chain; nothing is copied down at Inherit time.
type Class struct {
	Name          string
	Super         *Class
	Methods       map[string]*Closure
	StaticMethods map[string]*Closure
	StaticFields  map[string]Value
	StaticConsts  map[string]bool
	Fields        []*FieldSpec
	Init          *Closure // constructor, nil when the class declares none
	// NativeInit runs in place of a constructor for builtin classes.
	NativeInit func(vm *VM, inst *Instance, args []Value) error
}

func NewClass(name string) *Class {
	return &Class{
		Name:          name,
		Methods:       make(map[string]*Closure),
		StaticMethods: make(map[string]*Closure),
		StaticFields:  make(map[string]Value),
		StaticConsts:  make(map[string]bool),
	}
}

func (c *Class) TypeName() string { return "Class" }
func (c *Class) Inspect() string  { return fmt.Sprintf("<class %s>", c.Name) }

// FindMethod looks up an instance method along the inheritance chain.
func (c *Class) FindMethod(name string) (*Closure, bool) {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// findConstructor returns the nearest class up the chain that declares a
// constructor, compiled or native.
func (c *Class) findConstructor() *Class {
	for k := c; k != nil; k = k.Super {
		if k.Init != nil || k.NativeInit != nil {
			return k
		}
	}
	return nil
}

// FindStatic looks up a static field, then a static method, along the chain.
func (c *Class) FindStatic(name string) (Value, bool) {
	for k := c; k != nil; k = k.Super {
		if v, ok := k.StaticFields[name]; ok {
			return v, true
		}
		if m, ok := k.StaticMethods[name]; ok {
			return ObjVal(m), true
		}
	}
	return Value{}, false
}

// staticOwner returns the class in the chain that declares the static field.
func (c *Class) staticOwner(name string) *Class {
	for k := c; k != nil; k = k.Super {
		if _, ok := k.StaticFields[name]; ok {
			return k
		}
	}
	return nil
}

// IsSubclassOf reports whether c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// isConstField reports whether name is a const instance field anywhere up
// the chain.
func (c *Class) isConstField(name string) bool {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.Fields {
			if f.Name == name {
				return f.Const
			}
		}
	}
	return false
}

// Instance is an object created by new.
type Instance struct {
	Class  *Class
	Fields map[string]Value
	order  []string // field names in definition order, for printing
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: make(map[string]Value)}
}

func (i *Instance) TypeName() string { return i.Class.Name }
func (i *Instance) Inspect() string {
	if len(i.order) == 0 {
		return fmt.Sprintf("<%s instance>", i.Class.Name)
	}
	parts := make([]string, len(i.order))
	for n, name := range i.order {
		parts[n] = name + ": " + i.Fields[name].Inspect()
	}
	return i.Class.Name + "{" + strings.Join(parts, ", ") + "}"
}

// Get returns a field value.
func (i *Instance) Get(name string) (Value, bool) {
	v, ok := i.Fields[name]
	return v, ok
}

// Set assigns a field, recording first-assignment order.
func (i *Instance) Set(name string, v Value) {
	if _, ok := i.Fields[name]; !ok {
		i.order = append(i.order, name)
	}
	i.Fields[name] = v
}
