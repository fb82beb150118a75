package server

import (
	_ "embed"
	"fmt"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "soli.v1.Executor"

const protoFile = "executor.proto"

//go:embed executor.proto
var executorProto string

// loadService parses the embedded service definition.
func loadService() (*desc.ServiceDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: executorProto}),
	}
	fds, err := parser.ParseFiles(protoFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	sd := fds[0].FindService(ServiceName)
	if sd == nil {
		return nil, fmt.Errorf("service %s not found in %s", ServiceName, protoFile)
	}
	return sd, nil
}

func findMethod(sd *desc.ServiceDescriptor, name string) (*desc.MethodDescriptor, error) {
	md := sd.FindMethodByName(name)
	if md == nil {
		return nil, fmt.Errorf("method %s/%s not found", ServiceName, name)
	}
	return md, nil
}
