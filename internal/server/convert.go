package server

import (
	"errors"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/vm"
)

// toScalar builds a Scalar message for v. Values without a scalar
// encoding travel as their printed form in string_value.
func toScalar(md *desc.MessageDescriptor, v vm.Value) *dynamic.Message {
	msg := dynamic.NewMessage(md)
	switch v.Type {
	case vm.ValInt:
		msg.SetFieldByName("int_value", v.AsInt())
	case vm.ValFloat:
		msg.SetFieldByName("float_value", v.AsFloat())
	case vm.ValBool:
		msg.SetFieldByName("bool_value", v.AsBool())
	case vm.ValNull:
		msg.SetFieldByName("null_value", true)
	case vm.ValString:
		msg.SetFieldByName("string_value", v.AsString())
	default:
		msg.SetFieldByName("string_value", v.Inspect())
	}
	return msg
}

// fromScalar converts the set member of a Scalar back into a value. An
// empty Scalar is null.
func fromScalar(msg *dynamic.Message) (vm.Value, error) {
	for _, fd := range msg.GetMessageDescriptor().GetFields() {
		if !msg.HasField(fd) {
			continue
		}
		val := msg.GetField(fd)
		switch fd.GetType() {
		case descriptorpb.FieldDescriptorProto_TYPE_INT64:
			if i, ok := val.(int64); ok {
				return vm.IntVal(i), nil
			}
		case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
			if f, ok := val.(float64); ok {
				return vm.FloatVal(f), nil
			}
		case descriptorpb.FieldDescriptorProto_TYPE_STRING:
			if s, ok := val.(string); ok {
				return vm.StringVal(s), nil
			}
		case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
			b, ok := val.(bool)
			if !ok {
				break
			}
			if fd.GetName() == "null_value" {
				return vm.NullVal(), nil
			}
			return vm.BoolVal(b), nil
		}
		return vm.NullVal(), fmt.Errorf("unsupported conversion for %s (%v)", fd.GetName(), fd.GetType())
	}
	return vm.NullVal(), nil
}

// scalarList converts a repeated Scalar field.
func scalarList(msg *dynamic.Message, field string) ([]vm.Value, error) {
	raw, _ := msg.GetFieldByName(field).([]interface{})
	out := make([]vm.Value, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: unexpected message type %T", field, i, item)
		}
		v, err := fromScalar(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// errorKind names the failure class reported to clients: the runtime or
// compile kind when there is one, else the diagnostic code.
func errorKind(err error) string {
	var re *vm.RuntimeError
	if errors.As(err, &re) {
		return string(re.Kind)
	}
	var ce *vm.CompileError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	var diag *diagnostics.DiagnosticError
	if errors.As(err, &diag) {
		return string(diag.Code)
	}
	return "Error"
}
