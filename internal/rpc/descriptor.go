// Package rpc exposes the compiler as a gRPC service. Messages are dynamic,
// built from the embedded compiler.proto at start-up.
package rpc

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

//go:embed compiler.proto
var protoSource string

const (
	protoFile   = "watc/v1/compiler.proto"
	ServiceName = "watc.v1.Compiler"
)

// wantFields lists the fields the service code reads or writes, by message.
var wantFields = map[string]map[string]descriptorpb.FieldDescriptorProto_Type{
	"watc.v1.Diagnostic": {
		"code":    descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"phase":   descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"line":    descriptorpb.FieldDescriptorProto_TYPE_INT32,
		"message": descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"watc.v1.CompileRequest": {
		"request_id": descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"file":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"source":     descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"watc.v1.CompileResponse": {
		"request_id":  descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"wat":         descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"cached":      descriptorpb.FieldDescriptorProto_TYPE_BOOL,
		"diagnostics": descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
	},
	"watc.v1.RunRequest": {
		"request_id": descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"file":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"source":     descriptorpb.FieldDescriptorProto_TYPE_STRING,
	},
	"watc.v1.RunResponse": {
		"request_id":  descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"kind":        descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"value":       descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"trap":        descriptorpb.FieldDescriptorProto_TYPE_STRING,
		"diagnostics": descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
	},
}

var (
	loadOnce sync.Once
	service  *desc.ServiceDescriptor
	loadErr  error
)

// Service returns the parsed Compiler service descriptor.
func Service() (*desc.ServiceDescriptor, error) {
	loadOnce.Do(func() {
		service, loadErr = parseService(protoSource)
	})
	return service, loadErr
}

func parseService(source string) (*desc.ServiceDescriptor, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: source}),
	}
	fds, err := parser.ParseFiles(protoFile)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	fd := fds[0]

	sd := fd.FindService(ServiceName)
	if sd == nil {
		return nil, fmt.Errorf("service %s not found in %s", ServiceName, protoFile)
	}
	for name, fields := range wantFields {
		md := fd.FindMessage(name)
		if md == nil {
			return nil, fmt.Errorf("message %s not found in %s", name, protoFile)
		}
		for field, typ := range fields {
			f := md.FindFieldByName(field)
			if f == nil {
				return nil, fmt.Errorf("%s has no field %s", name, field)
			}
			if f.GetType() != typ {
				return nil, fmt.Errorf("%s.%s is %s, want %s", name, field, f.GetType(), typ)
			}
		}
	}
	for _, method := range sd.GetMethods() {
		if method.IsClientStreaming() || method.IsServerStreaming() {
			return nil, fmt.Errorf("streaming method %s is not supported", method.GetName())
		}
	}
	return sd, nil
}
