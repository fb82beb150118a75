package vm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// moduleMagic prefixes every encoded module
var moduleMagic = []byte{'S', 'O', 'L', 'B'}

// ErrVersionMismatch is returned when an encoded module was produced for a
// different instruction set.
var ErrVersionMismatch = errors.New("bytecode version mismatch")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: canonical enc mode: %v", err))
	}
	cborEncMode = em
}

type encodedModule struct {
	Version string        `cbor:"1,keyasint"`
	File    string        `cbor:"2,keyasint,omitempty"`
	Main    *encodedProto `cbor:"3,keyasint"`
}

type encodedProto struct {
	Name          string          `cbor:"1,keyasint"`
	Arity         int             `cbor:"2,keyasint"`
	RequiredArity int             `cbor:"3,keyasint"`
	ParamNames    []string        `cbor:"4,keyasint,omitempty"`
	Defaults      []*encodedProto `cbor:"5,keyasint,omitempty"`
	Code          []int32         `cbor:"6,keyasint"` // op, a, b triples
	Lines         []int           `cbor:"7,keyasint"`
	Constants     []encodedConst  `cbor:"8,keyasint,omitempty"`
	Upvalues      []UpvalueDesc   `cbor:"9,keyasint,omitempty"`
	IsMethod      bool            `cbor:"10,keyasint,omitempty"`
	IsInitializer bool            `cbor:"11,keyasint,omitempty"`
}

type constKind uint8

const (
	constNull constKind = iota
	constInt
	constFloat
	constBool
	constString
	constProto
	constNames
)

type encodedConst struct {
	Kind  constKind     `cbor:"1,keyasint"`
	Bits  uint64        `cbor:"2,keyasint,omitempty"`
	Str   string        `cbor:"3,keyasint,omitempty"`
	Proto *encodedProto `cbor:"4,keyasint,omitempty"`
	Names []string      `cbor:"5,keyasint,omitempty"`
}

// EncodeModule serializes a compiled module.
// Format: magic "SOLB" followed by the CBOR-encoded module.
func EncodeModule(mod *CompiledModule) ([]byte, error) {
	main, err := encodeProto(mod.Main)
	if err != nil {
		return nil, err
	}
	data, err := cborEncMode.Marshal(encodedModule{Version: BytecodeVersion, File: mod.File, Main: main})
	if err != nil {
		return nil, fmt.Errorf("module cbor encoding failed: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(moduleMagic)+len(data)))
	buf.Write(moduleMagic)
	buf.Write(data)
	return buf.Bytes(), nil
}

// DecodeModule restores a module written by EncodeModule.
func DecodeModule(data []byte) (*CompiledModule, error) {
	if !bytes.HasPrefix(data, moduleMagic) {
		return nil, fmt.Errorf("decode module: bad magic")
	}
	var em encodedModule
	if err := cbor.Unmarshal(data[len(moduleMagic):], &em); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if em.Version != BytecodeVersion {
		return nil, fmt.Errorf("decode module: got %q, want %q: %w", em.Version, BytecodeVersion, ErrVersionMismatch)
	}
	if em.Main == nil {
		return nil, fmt.Errorf("decode module: missing main prototype")
	}
	main, err := decodeProto(em.Main)
	if err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	return &CompiledModule{Main: main, File: em.File}, nil
}

func encodeProto(p *FunctionProto) (*encodedProto, error) {
	ep := &encodedProto{
		Name:          p.Name,
		Arity:         p.Arity,
		RequiredArity: p.RequiredArity,
		ParamNames:    p.ParamNames,
		Lines:         p.Chunk.Lines,
		Upvalues:      p.Upvalues,
		IsMethod:      p.IsMethod,
		IsInitializer: p.IsInitializer,
		Code:          make([]int32, 0, 3*len(p.Chunk.Code)),
	}
	for _, ins := range p.Chunk.Code {
		ep.Code = append(ep.Code, int32(ins.Op), ins.A, ins.B)
	}
	for _, d := range p.Defaults {
		ed, err := encodeProto(d)
		if err != nil {
			return nil, err
		}
		ep.Defaults = append(ep.Defaults, ed)
	}
	for i, c := range p.Chunk.Constants {
		ec, err := encodeConst(c)
		if err != nil {
			return nil, fmt.Errorf("%s: constant %d: %w", p.Name, i, err)
		}
		ep.Constants = append(ep.Constants, ec)
	}
	return ep, nil
}

func encodeConst(v Value) (encodedConst, error) {
	switch v.Type {
	case ValNull:
		return encodedConst{Kind: constNull}, nil
	case ValInt:
		return encodedConst{Kind: constInt, Bits: v.Data}, nil
	case ValFloat:
		return encodedConst{Kind: constFloat, Bits: v.Data}, nil
	case ValBool:
		return encodedConst{Kind: constBool, Bits: v.Data}, nil
	case ValString:
		return encodedConst{Kind: constString, Str: v.Str}, nil
	}
	switch o := v.Obj.(type) {
	case *FunctionProto:
		ep, err := encodeProto(o)
		if err != nil {
			return encodedConst{}, err
		}
		return encodedConst{Kind: constProto, Proto: ep}, nil
	case *Array:
		names := make([]string, len(o.Elements))
		for i, e := range o.Elements {
			if !e.IsString() {
				return encodedConst{}, fmt.Errorf("unsupported array constant element %s", e.TypeName())
			}
			names[i] = e.Str
		}
		return encodedConst{Kind: constNames, Names: names}, nil
	}
	return encodedConst{}, fmt.Errorf("unsupported constant %s", v.TypeName())
}

func decodeProto(ep *encodedProto) (*FunctionProto, error) {
	if len(ep.Code)%3 != 0 || len(ep.Lines) != len(ep.Code)/3 {
		return nil, fmt.Errorf("%s: malformed code section", ep.Name)
	}
	chunk := NewChunk()
	for i := 0; i < len(ep.Code); i += 3 {
		chunk.Emit(Instruction{Op: Opcode(ep.Code[i]), A: ep.Code[i+1], B: ep.Code[i+2]}, ep.Lines[i/3])
	}
	for _, ec := range ep.Constants {
		v, err := decodeConst(ec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ep.Name, err)
		}
		// Bypass dedup so indices are preserved
		chunk.Constants = append(chunk.Constants, v)
	}
	p := &FunctionProto{
		Name:          ep.Name,
		Arity:         ep.Arity,
		RequiredArity: ep.RequiredArity,
		ParamNames:    ep.ParamNames,
		Chunk:         chunk,
		Upvalues:      ep.Upvalues,
		IsMethod:      ep.IsMethod,
		IsInitializer: ep.IsInitializer,
	}
	for _, ed := range ep.Defaults {
		if ed == nil {
			return nil, fmt.Errorf("%s: empty default prototype", ep.Name)
		}
		d, err := decodeProto(ed)
		if err != nil {
			return nil, err
		}
		p.Defaults = append(p.Defaults, d)
	}
	return p, nil
}

func decodeConst(ec encodedConst) (Value, error) {
	switch ec.Kind {
	case constNull:
		return NullVal(), nil
	case constInt:
		return Value{Type: ValInt, Data: ec.Bits}, nil
	case constFloat:
		return Value{Type: ValFloat, Data: ec.Bits}, nil
	case constBool:
		return Value{Type: ValBool, Data: ec.Bits}, nil
	case constString:
		return StringVal(ec.Str), nil
	case constProto:
		if ec.Proto == nil {
			return Value{}, fmt.Errorf("empty prototype constant")
		}
		p, err := decodeProto(ec.Proto)
		if err != nil {
			return Value{}, err
		}
		return ObjVal(p), nil
	case constNames:
		elems := make([]Value, len(ec.Names))
		for i, n := range ec.Names {
			elems[i] = StringVal(n)
		}
		return ObjVal(NewArray(elems)), nil
	}
	return Value{}, fmt.Errorf("unknown constant kind %d", ec.Kind)
}
