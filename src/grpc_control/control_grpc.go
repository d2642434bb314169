package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Service ohlc.control.v1.Control, built on the well-known protobuf types so
// no generated code is needed.

const (
	ServiceName = "ohlc.control.v1.Control"

	methodGetStatus    = "/" + ServiceName + "/GetStatus"
	methodShutdown     = "/" + ServiceName + "/Shutdown"
	methodListSources  = "/" + ServiceName + "/ListSources"
	methodRemoveSource = "/" + ServiceName + "/RemoveSource"
)

// ControlServer is the server API for the control service.
type ControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSources(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RemoveSource(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------
// Server side
// -----------------------------------------------------------------------------

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
		{MethodName: "ListSources", Handler: listSourcesHandler},
		{MethodName: "RemoveSource", Handler: removeSourceHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ohlc/control/v1/control.proto",
}

// -----------------------------------------------------------------------------

func unaryEmpty(method string, call func(ControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	getStatusHandler   = unaryEmpty(methodGetStatus, ControlServer.GetStatus)
	shutdownHandler    = unaryEmpty(methodShutdown, ControlServer.Shutdown)
	listSourcesHandler = unaryEmpty(methodListSources, ControlServer.ListSources)
)

func removeSourceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).RemoveSource(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRemoveSource}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).RemoveSource(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// -----------------------------------------------------------------------------
// Client side
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodShutdown, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) ListSources(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListSources, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) RemoveSource(ctx context.Context, name string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodRemoveSource, wrapperspb.String(name), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
