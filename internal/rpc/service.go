// Package rpc registers gRPC services whose messages are google.protobuf.Struct.
// Descriptors are built at runtime and added to the global registry so that
// server reflection (and grpcurl) can describe them.
package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structTypeName = ".google.protobuf.Struct"

// Handler serves one unary method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type Method struct {
	Name    string
	Handler Handler
}

// Service is a set of unary methods under a proto package.
type Service struct {
	Package string
	Name    string
	Methods []Method
}

func (s Service) FullName() string {
	return s.Package + "." + s.Name
}

// MethodPath returns the wire path of a method, e.g. /pkg.Service/Method.
func MethodPath(service, method string) string {
	return "/" + service + "/" + method
}

func (s Service) fileName() string {
	return strings.ReplaceAll(s.Package, ".", "/") + "/" + strings.ToLower(s.Name) + ".proto"
}

// Register adds svc to server and publishes its descriptor.
func Register(server *grpc.Server, svc Service) error {
	if svc.Package == "" || svc.Name == "" {
		return fmt.Errorf("service package and name are required")
	}
	if err := registerDescriptor(svc); err != nil {
		return err
	}

	desc := grpc.ServiceDesc{
		ServiceName: svc.FullName(),
		HandlerType: (*any)(nil),
		Metadata:    svc.fileName(),
	}
	for _, m := range svc.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler(MethodPath(svc.FullName(), m.Name), m.Handler),
		})
	}
	server.RegisterService(&desc, svc)
	return nil
}

func unaryHandler(fullMethod string, h Handler) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return h(ctx, req.(*structpb.Struct))
		})
	}
}

func registerDescriptor(svc Service) error {
	name := svc.fileName()
	if _, err := protoregistry.GlobalFiles.FindFileByPath(name); err == nil {
		return nil
	}

	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(svc.Methods))
	for _, m := range svc.Methods {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String(structTypeName),
			OutputType: proto.String(structTypeName),
		})
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(name),
		Package:    proto.String(svc.Package),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String(svc.Name),
			Method: methods,
		}},
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return fmt.Errorf("build descriptor for %s: %w", svc.FullName(), err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		return fmt.Errorf("register descriptor for %s: %w", svc.FullName(), err)
	}
	return nil
}
