package vm

import "sort"

// Globals is the global variable table shared by every frame of a run.
// Hosts seed it with builtins before execution and read results after.
type Globals struct {
	values map[string]Value
	consts map[string]bool

	// errorClass is the Error class runtime errors are caught as
	errorClass *Class
}

// NewGlobals creates an empty table.
func NewGlobals() *Globals {
	return &Globals{
		values: make(map[string]Value),
		consts: make(map[string]bool),
	}
}

// Get returns the value bound to name.
func (g *Globals) Get(name string) (Value, bool) {
	v, ok := g.values[name]
	return v, ok
}

// Set binds name, creating it if needed.
func (g *Globals) Set(name string, v Value) {
	g.values[name] = v
}

// Define binds name and records whether it may be reassigned.
func (g *Globals) Define(name string, v Value, isConst bool) {
	g.values[name] = v
	if isConst {
		g.consts[name] = true
	} else {
		delete(g.consts, name)
	}
}

// IsConst reports whether name was defined const.
func (g *Globals) IsConst(name string) bool {
	return g.consts[name]
}

// Has reports whether name is bound.
func (g *Globals) Has(name string) bool {
	_, ok := g.values[name]
	return ok
}

func (g *Globals) Len() int {
	return len(g.values)
}

// Names returns the bound names in sorted order.
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.values))
	for name := range g.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent table with the same bindings. Arrays, maps
// and other objects stay shared.
func (g *Globals) Clone() *Globals {
	out := &Globals{
		values: make(map[string]Value, len(g.values)),
		consts: make(map[string]bool, len(g.consts)),
	}
	for k, v := range g.values {
		out.values[k] = v
	}
	for k := range g.consts {
		out.consts[k] = true
	}
	out.errorClass = g.errorClass
	return out
}
