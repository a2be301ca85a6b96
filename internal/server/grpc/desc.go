package grpcserver

import (
	"context"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "vidtags.v1.VideoTags"

// caller is the handler type checked by grpc.Server.RegisterService.
type caller interface {
	call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

// FullMethod returns "/vidtags.v1.VideoTags/<method>".
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// Methods lists the exposed method names in sorted order.
func Methods() []string {
	out := make([]string, 0, len(routes))
	for m := range routes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ServiceDesc describes the service for grpc.ServiceRegistrar.
func ServiceDesc() *grpc.ServiceDesc {
	names := Methods()
	methods := make([]grpc.MethodDesc, 0, len(names))
	for _, m := range names {
		methods = append(methods, grpc.MethodDesc{MethodName: m, Handler: unaryHandler(m)})
	}
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*caller)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    "vidtags/v1/vidtags.proto",
	}
}

// Register attaches s to a gRPC server.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(ServiceDesc(), s)
}

func unaryHandler(method string) grpc.MethodHandler {
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(method)}
	return func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := func(ctx context.Context, req any) (any, error) {
			return srv.(caller).call(ctx, method, req.(*structpb.Struct))
		}
		if ic == nil {
			return h(ctx, in)
		}
		i := *info
		i.Server = srv
		return ic(ctx, in, &i, h)
	}
}
