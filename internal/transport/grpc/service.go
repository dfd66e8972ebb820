package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName = "hivekeeper.transport.ReplicaService"

	methodStore  = "/" + serviceName + "/Store"
	methodLoad   = "/" + serviceName + "/Load"
	methodDelete = "/" + serviceName + "/Delete"
	methodPing   = "/" + serviceName + "/Ping"
)

// ReplicaServer is the server side of the replica service.
type ReplicaServer interface {
	Store(ctx context.Context, req *StoreRequest) (*StoreResponse, error)
	Load(ctx context.Context, req *KeyRequest) (*LoadResponse, error)
	Delete(ctx context.Context, req *KeyRequest) (*DeleteResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

func RegisterReplicaServer(s grpc.ServiceRegistrar, srv ReplicaServer) {
	s.RegisterService(&replicaServiceDesc, srv)
}

var replicaServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReplicaServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Store",
			Handler: unaryHandler(methodStore, func(srv ReplicaServer, ctx context.Context, req *StoreRequest) (any, error) {
				return srv.Store(ctx, req)
			}),
		},
		{
			MethodName: "Load",
			Handler: unaryHandler(methodLoad, func(srv ReplicaServer, ctx context.Context, req *KeyRequest) (any, error) {
				return srv.Load(ctx, req)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unaryHandler(methodDelete, func(srv ReplicaServer, ctx context.Context, req *KeyRequest) (any, error) {
				return srv.Delete(ctx, req)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(methodPing, func(srv ReplicaServer, ctx context.Context, req *PingRequest) (any, error) {
				return srv.Ping(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replica",
}

// unaryHandler adapts a typed method to grpc's method handler signature,
// running it through the server's interceptor chain.
func unaryHandler[Req any, PReq interface {
	*Req
	message
}](fullMethod string, call func(ReplicaServer, context.Context, PReq) (any, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReplicaServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReplicaServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
