package vm

import (
	"math"
	"strings"
)

// Map is an insertion-ordered hash map. Keys are compared by value for
// scalars and strings and by identity for objects.
type Map struct {
	entries []mapEntry
	index   map[mapKey]int
}

type mapEntry struct {
	key   Value
	value Value
	dead  bool
}

type mapKey struct {
	typ  ValueType
	data uint64
	str  string
	obj  Object
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[mapKey]int)}
}

func keyOf(v Value) mapKey {
	switch v.Type {
	case ValFloat:
		// 1.0 and 1 address the same entry
		f := v.AsFloat()
		if f == math.Trunc(f) && math.Abs(f) < 1<<62 {
			return mapKey{typ: ValInt, data: uint64(int64(f))}
		}
		return mapKey{typ: ValFloat, data: v.Data}
	case ValObj:
		return mapKey{typ: ValObj, obj: v.Obj}
	}
	return mapKey{typ: v.Type, data: v.Data, str: v.Str}
}

func (m *Map) TypeName() string { return "Map" }
func (m *Map) Inspect() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, e := range m.entries {
		if e.dead {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(e.key.Inspect())
		b.WriteString(": ")
		b.WriteString(e.value.Inspect())
	}
	b.WriteByte('}')
	return b.String()
}

// Len returns the number of live entries.
func (m *Map) Len() int {
	return len(m.index)
}

// Get looks up key.
func (m *Map) Get(key Value) (Value, bool) {
	i, ok := m.index[keyOf(key)]
	if !ok {
		return Value{}, false
	}
	return m.entries[i].value, true
}

// Has reports whether key is present.
func (m *Map) Has(key Value) bool {
	_, ok := m.index[keyOf(key)]
	return ok
}

// Set inserts or replaces; replacing keeps the original position.
func (m *Map) Set(key, value Value) {
	k := keyOf(key)
	if i, ok := m.index[k]; ok {
		m.entries[i].value = value
		return
	}
	m.entries = append(m.entries, mapEntry{key: key, value: value})
	m.index[k] = len(m.entries) - 1
}

// Delete removes key and reports whether it was present.
func (m *Map) Delete(key Value) bool {
	k := keyOf(key)
	i, ok := m.index[k]
	if !ok {
		return false
	}
	m.entries[i].dead = true
	m.entries[i].value = Value{}
	delete(m.index, k)
	if len(m.entries) > 32 && len(m.index) < len(m.entries)/2 {
		m.compact()
	}
	return true
}

func (m *Map) compact() {
	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.dead {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(m.entries); i++ {
		m.entries[i] = mapEntry{}
	}
	m.entries = live
	for i, e := range m.entries {
		m.index[keyOf(e.key)] = i
	}
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []Value {
	keys := make([]Value, 0, len(m.index))
	for _, e := range m.entries {
		if !e.dead {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Values returns the values in insertion order.
func (m *Map) Values() []Value {
	vals := make([]Value, 0, len(m.index))
	for _, e := range m.entries {
		if !e.dead {
			vals = append(vals, e.value)
		}
	}
	return vals
}

// Each calls fn for every entry in insertion order.
func (m *Map) Each(fn func(k, v Value)) {
	for _, e := range m.entries {
		if !e.dead {
			fn(e.key, e.value)
		}
	}
}

// Copy returns a shallow copy.
func (m *Map) Copy() *Map {
	out := NewMap()
	m.Each(out.Set)
	return out
}
