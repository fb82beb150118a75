// Package vm implements the bytecode compiler and virtual machine for soli.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST       Opcode = iota // A: constant index
	OP_NULL                      // Push null
	OP_TRUE                      // Push true
	OP_FALSE                     // Push false
	OP_POP                       // Discard top of stack
	OP_DUP                       // A: copy the value A slots below the top (0 = top)
	OP_CLOSE_SCOPE               // A: drop A values below the top, closing captured ones

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_NEG // Unary minus
	OP_NOT // !

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Variables
	OP_GET_LOCAL     // A: slot
	OP_SET_LOCAL     // A: slot (value stays on stack)
	OP_GET_GLOBAL    // A: name constant
	OP_SET_GLOBAL    // A: name constant (value stays on stack)
	OP_DEFINE_GLOBAL // A: name constant (pops value)
	OP_GET_UPVALUE   // A: upvalue index
	OP_SET_UPVALUE   // A: upvalue index (value stays on stack)
	OP_CLOSE_UPVALUE // Close the upvalue at the top slot and pop it

	// Jumps; A is relative to the next instruction
	OP_JUMP               // Unconditional forward jump
	OP_JUMP_IF_FALSE      // Pop, jump if falsy
	OP_JUMP_IF_TRUE       // Pop, jump if truthy
	OP_JUMP_IF_FALSE_KEEP // Jump if falsy, value stays (&&)
	OP_JUMP_IF_TRUE_KEEP  // Jump if truthy, value stays (||)
	OP_JUMP_IF_NOT_NULL   // Jump if not null, value stays (??)
	OP_JUMP_IF_NULL       // Jump if null, value stays (?.)
	OP_LOOP               // Jump backwards by A

	// Functions
	OP_CALL    // A: positional count, B: names constant or -1
	OP_RETURN  // Return top of stack
	OP_CLOSURE // A: prototype constant

	// Collections
	OP_ARRAY        // A: element count
	OP_ARRAY_APPEND // [arr, v] -> [arr]
	OP_ARRAY_EXTEND // [arr, iterable] -> [arr]
	OP_MAP          // A: key/value pair count
	OP_MAP_INSERT   // [map, k, v] -> [map]
	OP_MAP_MERGE    // [map, other] -> [map]
	OP_INDEX        // [obj, key] -> [value]
	OP_SET_INDEX    // [obj, key, v] -> [v]
	OP_RANGE        // A: 1 when inclusive; [start, end] -> [range]
	OP_INTERPOLATE  // A: part count; stringify and join

	// Properties and classes
	OP_GET_PROPERTY  // A: name constant
	OP_SET_PROPERTY  // A: name constant; [obj, v] -> [v]
	OP_CLASS         // A: name constant
	OP_INHERIT       // [class, super] -> [class]
	OP_METHOD        // A: name constant; [class, closure] -> [class]
	OP_STATIC_METHOD // A: name constant; [class, closure] -> [class]
	OP_FIELD         // A: name constant, B: 1 when const; [class, init|null] -> [class]
	OP_STATIC_FIELD  // A: name constant, B: 1 when const; [class, v] -> [class]
	OP_NEW           // A: positional count, B: names constant or -1
	OP_GET_SUPER     // A: name constant; [this] -> [bound method]

	// Exceptions
	OP_TRY_BEGIN     // A: catch offset or -1, B: finally offset or -1
	OP_TRY_END       // Pop the innermost handler
	OP_THROW         // Throw top of stack
	OP_ENTER_FINALLY // Record a normal completion before a finally body
	OP_END_FINALLY   // Resume the recorded completion

	// Iteration
	OP_GET_ITER // Pop an iterable onto the iterator stack
	OP_FOR_ITER // A: exit offset, B: 1 to push key and value
	OP_POP_ITER // Drop the innermost iterator

	// Misc
	OP_MATCH_FAIL // Raise a match error for the value on top
	OP_IMPORT     // A: path constant, B: names constant or -1
)

// OpcodeNames maps opcodes to their string representation for debugging
var OpcodeNames = map[Opcode]string{
	OP_CONST:       "CONST",
	OP_NULL:        "NULL",
	OP_TRUE:        "TRUE",
	OP_FALSE:       "FALSE",
	OP_POP:         "POP",
	OP_DUP:         "DUP",
	OP_CLOSE_SCOPE: "CLOSE_SCOPE",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_NEG: "NEG",
	OP_NOT: "NOT",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",
	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL",
	OP_GET_UPVALUE:   "GET_UPVALUE",
	OP_SET_UPVALUE:   "SET_UPVALUE",
	OP_CLOSE_UPVALUE: "CLOSE_UPVALUE",

	OP_JUMP:               "JUMP",
	OP_JUMP_IF_FALSE:      "JUMP_IF_FALSE",
	OP_JUMP_IF_TRUE:       "JUMP_IF_TRUE",
	OP_JUMP_IF_FALSE_KEEP: "JUMP_IF_FALSE_KEEP",
	OP_JUMP_IF_TRUE_KEEP:  "JUMP_IF_TRUE_KEEP",
	OP_JUMP_IF_NOT_NULL:   "JUMP_IF_NOT_NULL",
	OP_JUMP_IF_NULL:       "JUMP_IF_NULL",
	OP_LOOP:               "LOOP",

	OP_CALL:    "CALL",
	OP_RETURN:  "RETURN",
	OP_CLOSURE: "CLOSURE",

	OP_ARRAY:        "ARRAY",
	OP_ARRAY_APPEND: "ARRAY_APPEND",
	OP_ARRAY_EXTEND: "ARRAY_EXTEND",
	OP_MAP:          "MAP",
	OP_MAP_INSERT:   "MAP_INSERT",
	OP_MAP_MERGE:    "MAP_MERGE",
	OP_INDEX:        "INDEX",
	OP_SET_INDEX:    "SET_INDEX",
	OP_RANGE:        "RANGE",
	OP_INTERPOLATE:  "INTERPOLATE",

	OP_GET_PROPERTY:  "GET_PROPERTY",
	OP_SET_PROPERTY:  "SET_PROPERTY",
	OP_CLASS:         "CLASS",
	OP_INHERIT:       "INHERIT",
	OP_METHOD:        "METHOD",
	OP_STATIC_METHOD: "STATIC_METHOD",
	OP_FIELD:         "FIELD",
	OP_STATIC_FIELD:  "STATIC_FIELD",
	OP_NEW:           "NEW",
	OP_GET_SUPER:     "GET_SUPER",

	OP_TRY_BEGIN:     "TRY_BEGIN",
	OP_TRY_END:       "TRY_END",
	OP_THROW:         "THROW",
	OP_ENTER_FINALLY: "ENTER_FINALLY",
	OP_END_FINALLY:   "END_FINALLY",

	OP_GET_ITER: "GET_ITER",
	OP_FOR_ITER: "FOR_ITER",
	OP_POP_ITER: "POP_ITER",

	OP_MATCH_FAIL: "MATCH_FAIL",
	OP_IMPORT:     "IMPORT",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsJump reports whether op carries a patchable offset in A.
func (op Opcode) IsJump() bool {
	switch op {
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE_KEEP,
		OP_JUMP_IF_TRUE_KEEP, OP_JUMP_IF_NOT_NULL, OP_JUMP_IF_NULL,
		OP_LOOP, OP_FOR_ITER, OP_TRY_BEGIN:
		return true
	}
	return false
}
