package vm

// iterator is the traversal state of one for-in loop. next yields the
// index or key alongside the element.
type iterator interface {
	next() (key, value Value, ok bool)
}

// arrayIter reads the live backing array, so elements pushed during the
// loop are visited.
type arrayIter struct {
	arr *Array
	pos int
}

func (it *arrayIter) next() (Value, Value, bool) {
	if it.pos >= len(it.arr.Elements) {
		return Value{}, Value{}, false
	}
	i := it.pos
	it.pos++
	return IntVal(int64(i)), it.arr.Elements[i], true
}

// mapIter walks a snapshot of the keys taken when the loop started.
// Single-variable loops get the key as the element.
type mapIter struct {
	m    *Map
	keys []Value
	pos  int
}

func (it *mapIter) next() (Value, Value, bool) {
	for it.pos < len(it.keys) {
		k := it.keys[it.pos]
		it.pos++
		v, ok := it.m.Get(k)
		if !ok {
			// deleted mid-loop
			continue
		}
		return k, v, true
	}
	return Value{}, Value{}, false
}

type rangeIter struct {
	cur, end int64
	start    int64
}

func (it *rangeIter) next() (Value, Value, bool) {
	if it.cur >= it.end {
		return Value{}, Value{}, false
	}
	v := it.cur
	it.cur++
	return IntVal(v - it.start), IntVal(v), true
}

type stringIter struct {
	chars []rune
	pos   int
}

func (it *stringIter) next() (Value, Value, bool) {
	if it.pos >= len(it.chars) {
		return Value{}, Value{}, false
	}
	i := it.pos
	it.pos++
	return IntVal(int64(i)), StringVal(string(it.chars[i])), true
}

func (vm *VM) newIterator(v Value) (iterator, error) {
	switch v.Type {
	case ValString:
		return &stringIter{chars: []rune(v.Str)}, nil
	case ValObj:
		switch o := v.Obj.(type) {
		case *Array:
			return &arrayIter{arr: o}, nil
		case *Map:
			return &mapIter{m: o, keys: o.Keys()}, nil
		case *Range:
			return &rangeIter{cur: o.Start, end: o.Start + o.Len(), start: o.Start}, nil
		}
	}
	return nil, raise(NotIterable, "%s is not iterable", v.TypeName())
}

// element is what a single-variable loop binds: keys for maps, values
// otherwise.
func element(it iterator, key, value Value) Value {
	if _, ok := it.(*mapIter); ok {
		return key
	}
	return value
}

// collect drains an iterable into a slice (spread, builtins)
func (vm *VM) collect(v Value) ([]Value, error) {
	if arr := v.AsArray(); arr != nil {
		out := make([]Value, len(arr.Elements))
		copy(out, arr.Elements)
		return out, nil
	}
	it, err := vm.newIterator(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		key, val, ok := it.next()
		if !ok {
			return out, nil
		}
		out = append(out, element(it, key, val))
	}
}
