package vm

import (
	"errors"
)

// SetGlobal sets a global variable
func (vm *VM) SetGlobal(name string, value Value) {
	vm.globals.Set(name, value)
}

// GetGlobal reads a global variable
func (vm *VM) GetGlobal(name string) (Value, bool) {
	return vm.globals.Get(name)
}

// Globals returns the global table of the VM
func (vm *VM) Globals() *Globals {
	return vm.globals
}

// Output returns every line printed so far, in order.
func (vm *VM) Output() []string {
	out := make([]string, len(vm.output))
	copy(out, vm.output)
	return out
}

// importModule runs the module at path once and checks that the requested
// names exist. Modules share the importer's globals.
func (vm *VM) importModule(path string, names []string) error {
	if vm.resolver == nil {
		return raise(ImportError, "cannot import %q: no module resolver configured", path)
	}
	if !vm.imported[path] {
		mod, err := vm.resolver.Resolve(path)
		if err != nil {
			var re *RuntimeError
			if errors.As(err, &re) {
				return err
			}
			return raise(ImportError, "cannot import %q: %v", path, err)
		}
		// Mark first so import cycles terminate
		vm.imported[path] = true
		vm.logger.Debug().Str("module", path).Msg("import")

		savedFile := vm.file
		vm.file = mod.File
		_, err = vm.Call(ObjVal(&Closure{Proto: mod.Main}))
		vm.file = savedFile
		if err != nil {
			delete(vm.imported, path)
			return err
		}
	}
	for _, name := range names {
		if !vm.globals.Has(name) {
			return raise(ImportError, "module %q does not define %s", path, name)
		}
	}
	return nil
}

// Invoke calls the global function name with args. It is meant for hosts
// after Run has defined the module's functions.
func (vm *VM) Invoke(name string, args ...Value) (result Value, err error) {
	fn, ok := vm.globals.Get(name)
	if !ok {
		return NullVal(), raise(UndefinedVariable, "undefined function %s", name)
	}
	defer func() {
		if r := recover(); r != nil {
			fault, ok := r.(error)
			if !ok || !(errors.Is(fault, errStackUnderflow) || KindOf(fault) == StackOverflow) {
				panic(r)
			}
			result, err = NullVal(), fault
		}
	}()
	result, err = vm.Call(fn, args...)
	if err != nil {
		return NullVal(), vm.finalizeError(err)
	}
	return result, nil
}
