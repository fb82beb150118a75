package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of proto and, after it, of
// every prototype nested in its constants.
func Disassemble(proto *FunctionProto) string {
	var sb strings.Builder
	disassembleProto(&sb, proto)
	return sb.String()
}

func disassembleProto(sb *strings.Builder, proto *FunctionProto) {
	chunk := proto.Chunk
	fmt.Fprintf(sb, "== %s ==\n", proto.Name)
	for offset := range chunk.Code {
		disassembleInstruction(sb, chunk, offset)
	}

	for _, c := range chunk.Constants {
		if nested, ok := c.Obj.(*FunctionProto); ok {
			sb.WriteByte('\n')
			disassembleProto(sb, nested)
		}
	}
	for _, def := range proto.Defaults {
		sb.WriteByte('\n')
		disassembleProto(sb, def)
	}
}

// disassembleInstruction writes one line: offset, line (| when unchanged),
// opcode and decoded operands.
func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) {
	fmt.Fprintf(sb, "%04d ", offset)

	// Print line number
	if offset > 0 && chunk.Line(offset) == chunk.Line(offset-1) {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", chunk.Line(offset))
	}

	ins := chunk.Code[offset]
	name := ins.Op.String()

	switch ins.Op {
	case OP_CONST, OP_CLOSURE:
		fmt.Fprintf(sb, "%-18s %4d %s\n", name, ins.A, constantText(chunk, ins.A))

	case OP_GET_GLOBAL, OP_SET_GLOBAL, OP_GET_PROPERTY, OP_SET_PROPERTY,
		OP_CLASS, OP_METHOD, OP_STATIC_METHOD, OP_GET_SUPER:
		fmt.Fprintf(sb, "%-18s %4d '%s'\n", name, ins.A, chunk.Constants[ins.A].Str)

	case OP_DEFINE_GLOBAL, OP_FIELD, OP_STATIC_FIELD:
		suffix := ""
		if ins.B == 1 {
			suffix = " const"
		}
		fmt.Fprintf(sb, "%-18s %4d '%s'%s\n", name, ins.A, chunk.Constants[ins.A].Str, suffix)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_ARRAY, OP_MAP, OP_INTERPOLATE, OP_CLOSE_SCOPE, OP_DUP, OP_RANGE, OP_END_FINALLY:
		fmt.Fprintf(sb, "%-18s %4d\n", name, ins.A)

	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE, OP_JUMP_IF_FALSE_KEEP,
		OP_JUMP_IF_TRUE_KEEP, OP_JUMP_IF_NOT_NULL, OP_JUMP_IF_NULL:
		fmt.Fprintf(sb, "%-18s %4d -> %04d\n", name, ins.A, offset+1+int(ins.A))

	case OP_LOOP:
		fmt.Fprintf(sb, "%-18s %4d -> %04d\n", name, ins.A, offset+1-int(ins.A))

	case OP_FOR_ITER:
		fmt.Fprintf(sb, "%-18s %4d -> %04d pair=%d\n", name, ins.A, offset+1+int(ins.A), ins.B)

	case OP_TRY_BEGIN:
		fmt.Fprintf(sb, "%-18s catch %s finally %s\n", name, tryTarget(offset, ins.A), tryTarget(offset, ins.B))

	case OP_CALL, OP_NEW:
		if ins.B >= 0 {
			fmt.Fprintf(sb, "%-18s %4d named %s\n", name, ins.A, chunk.Constants[ins.B].Inspect())
		} else {
			fmt.Fprintf(sb, "%-18s %4d\n", name, ins.A)
		}

	case OP_IMPORT:
		if ins.B >= 0 {
			fmt.Fprintf(sb, "%-18s %4d '%s' %s\n", name, ins.A, chunk.Constants[ins.A].Str, chunk.Constants[ins.B].Inspect())
		} else {
			fmt.Fprintf(sb, "%-18s %4d '%s'\n", name, ins.A, chunk.Constants[ins.A].Str)
		}

	default:
		sb.WriteString(name)
		sb.WriteByte('\n')
	}
}

func constantText(chunk *Chunk, idx int32) string {
	if int(idx) >= len(chunk.Constants) {
		return "<bad constant>"
	}
	return chunk.Constants[idx].Inspect()
}

func tryTarget(offset int, rel int32) string {
	if rel < 0 {
		return "-"
	}
	return fmt.Sprintf("%04d", offset+1+int(rel))
}
