package vm

import (
	"errors"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundleProgram = `
class Shape {
  sides = 0
  new(sides) { this.sides = sides }
  fn describe(prefix = "shape") { return "#{prefix} with #{this.sides} sides" }
}
fn total(xs) {
  let s = 0
  for x in xs { s += x }
  return s
}
let ratio = 2.5
print(new Shape(3).describe())
print(new Shape(4).describe(prefix: "square"))
print(total([1, 2, 3]) * ratio)
print(match 7 { 0..5 => "low", _ => "high" })
print(null ?? true)
`

func TestModuleRoundTrip(t *testing.T) {
	mod := compile(t, bundleProgram)
	mod.File = "shapes.sl"

	data, err := EncodeModule(mod)
	require.NoError(t, err)
	require.Equal(t, "SOLB", string(data[:4]))

	decoded, err := DecodeModule(data)
	require.NoError(t, err)
	assert.Equal(t, "shapes.sl", decoded.File)
	assert.Equal(t, Disassemble(mod.Main), Disassemble(decoded.Main))

	want := New(WithOutput(io.Discard))
	_, err = want.Run(mod)
	require.NoError(t, err)

	got := New(WithOutput(io.Discard))
	_, err = got.Run(decoded)
	require.NoError(t, err)

	assert.Equal(t, want.Output(), got.Output())
	assert.Equal(t, []string{"shape with 3 sides", "square with 4 sides", "15.0", "high", "true"}, got.Output())
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := EncodeModule(compile(t, bundleProgram))
	require.NoError(t, err)
	b, err := EncodeModule(compile(t, bundleProgram))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeModuleRejects(t *testing.T) {
	wrongVersion, err := cbor.Marshal(encodedModule{Version: "soli-bc-0", Main: &encodedProto{Name: "<script>"}})
	require.NoError(t, err)

	missingMain, err := cbor.Marshal(encodedModule{Version: BytecodeVersion})
	require.NoError(t, err)

	badCode, err := cbor.Marshal(encodedModule{Version: BytecodeVersion, Main: &encodedProto{
		Name: "<script>", Code: []int32{int32(OP_NULL), 0}, Lines: []int{1},
	}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		data    []byte
		version bool
	}{
		{"empty", nil, false},
		{"bad magic", []byte("JUNKJUNK"), false},
		{"truncated", append([]byte("SOLB"), 0xa3), false},
		{"wrong version", append([]byte("SOLB"), wrongVersion...), true},
		{"missing main", append([]byte("SOLB"), missingMain...), false},
		{"malformed code", append([]byte("SOLB"), badCode...), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeModule(tt.data)
			require.Error(t, err)
			assert.Equal(t, tt.version, errors.Is(err, ErrVersionMismatch))
		})
	}
}

func TestEncodeRejectsRuntimeConstants(t *testing.T) {
	proto := &FunctionProto{Name: "<script>", Chunk: NewChunk()}
	proto.Chunk.AddConstant(ObjVal(NewMap()))
	proto.Chunk.Emit(Instruction{Op: OP_NULL}, 1)

	_, err := EncodeModule(&CompiledModule{Main: proto})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported constant Map")
}
