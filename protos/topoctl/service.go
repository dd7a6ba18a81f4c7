package topoctl

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "topoctl.Controller"

// ControllerClient is the client API for the Controller service.
type ControllerClient interface {
	Publish(ctx context.Context, in *Event, opts ...grpc.CallOption) (*Empty, error)
	Communicate(ctx context.Context, in *CommunicationRequest, opts ...grpc.CallOption) (*CommunicationResponse, error)
	Snapshot(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Snapshot, error)
	Watch(ctx context.Context, in *Empty, opts ...grpc.CallOption) (Controller_WatchClient, error)
	Commands(ctx context.Context, in *CommandsRequest, opts ...grpc.CallOption) (Controller_CommandsClient, error)
	HostByMAC(ctx context.Context, in *HostRequest, opts ...grpc.CallOption) (*Host, error)
	HostByIP(ctx context.Context, in *HostRequest, opts ...grpc.CallOption) (*Host, error)
	Path(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*PathResponse, error)
	Flows(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*FlowsResponse, error)
}

type controllerClient struct {
	cc grpc.ClientConnInterface
}

func NewControllerClient(cc grpc.ClientConnInterface) ControllerClient {
	return &controllerClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(Codec)}, opts...)
}

func (c *controllerClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, withCodec(opts)...)
}

func (c *controllerClient) Publish(ctx context.Context, in *Event, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Publish", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) Communicate(ctx context.Context, in *CommunicationRequest, opts ...grpc.CallOption) (*CommunicationResponse, error) {
	out := new(CommunicationResponse)
	if err := c.invoke(ctx, "Communicate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) Snapshot(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Snapshot, error) {
	out := new(Snapshot)
	if err := c.invoke(ctx, "Snapshot", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) HostByMAC(ctx context.Context, in *HostRequest, opts ...grpc.CallOption) (*Host, error) {
	out := new(Host)
	if err := c.invoke(ctx, "HostByMAC", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) HostByIP(ctx context.Context, in *HostRequest, opts ...grpc.CallOption) (*Host, error) {
	out := new(Host)
	if err := c.invoke(ctx, "HostByIP", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) Path(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*PathResponse, error) {
	out := new(PathResponse)
	if err := c.invoke(ctx, "Path", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) Flows(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*FlowsResponse, error) {
	out := new(FlowsResponse)
	if err := c.invoke(ctx, "Flows", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerClient) stream(ctx context.Context, i int, in interface{}, opts []grpc.CallOption) (grpc.ClientStream, error) {
	desc := &Controller_ServiceDesc.Streams[i]
	stream, err := c.cc.NewStream(ctx, desc, "/"+serviceName+"/"+desc.StreamName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *controllerClient) Watch(ctx context.Context, in *Empty, opts ...grpc.CallOption) (Controller_WatchClient, error) {
	stream, err := c.stream(ctx, 0, in, opts)
	if err != nil {
		return nil, err
	}
	return &controllerWatchClient{stream}, nil
}

type Controller_WatchClient interface {
	Recv() (*Snapshot, error)
	grpc.ClientStream
}

type controllerWatchClient struct {
	grpc.ClientStream
}

func (x *controllerWatchClient) Recv() (*Snapshot, error) {
	m := new(Snapshot)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *controllerClient) Commands(ctx context.Context, in *CommandsRequest, opts ...grpc.CallOption) (Controller_CommandsClient, error) {
	stream, err := c.stream(ctx, 1, in, opts)
	if err != nil {
		return nil, err
	}
	return &controllerCommandsClient{stream}, nil
}

type Controller_CommandsClient interface {
	Recv() (*Command, error)
	grpc.ClientStream
}

type controllerCommandsClient struct {
	grpc.ClientStream
}

func (x *controllerCommandsClient) Recv() (*Command, error) {
	m := new(Command)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ControllerServer is the server API for the Controller service.
type ControllerServer interface {
	Publish(context.Context, *Event) (*Empty, error)
	Communicate(context.Context, *CommunicationRequest) (*CommunicationResponse, error)
	Snapshot(context.Context, *Empty) (*Snapshot, error)
	Watch(*Empty, Controller_WatchServer) error
	Commands(*CommandsRequest, Controller_CommandsServer) error
	HostByMAC(context.Context, *HostRequest) (*Host, error)
	HostByIP(context.Context, *HostRequest) (*Host, error)
	Path(context.Context, *PathRequest) (*PathResponse, error)
	Flows(context.Context, *Empty) (*FlowsResponse, error)
}

func RegisterControllerServer(s grpc.ServiceRegistrar, srv ControllerServer) {
	s.RegisterService(&Controller_ServiceDesc, srv)
}

// unary adapts a typed ControllerServer method into a grpc.MethodDesc handler.
func unary[In any](method string, call func(ControllerServer, context.Context, *In) (interface{}, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(In)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControllerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + serviceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ControllerServer), ctx, req.(*In))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type Controller_WatchServer interface {
	Send(*Snapshot) error
	grpc.ServerStream
}

type controllerWatchServer struct {
	grpc.ServerStream
}

func (x *controllerWatchServer) Send(m *Snapshot) error {
	return x.ServerStream.SendMsg(m)
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ControllerServer).Watch(m, &controllerWatchServer{stream})
}

type Controller_CommandsServer interface {
	Send(*Command) error
	grpc.ServerStream
}

type controllerCommandsServer struct {
	grpc.ServerStream
}

func (x *controllerCommandsServer) Send(m *Command) error {
	return x.ServerStream.SendMsg(m)
}

func commandsHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(CommandsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ControllerServer).Commands(m, &controllerCommandsServer{stream})
}

// Controller_ServiceDesc is the grpc.ServiceDesc for the Controller service.
var Controller_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControllerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Publish", func(s ControllerServer, ctx context.Context, in *Event) (interface{}, error) {
			return s.Publish(ctx, in)
		}),
		unary("Communicate", func(s ControllerServer, ctx context.Context, in *CommunicationRequest) (interface{}, error) {
			return s.Communicate(ctx, in)
		}),
		unary("Snapshot", func(s ControllerServer, ctx context.Context, in *Empty) (interface{}, error) {
			return s.Snapshot(ctx, in)
		}),
		unary("HostByMAC", func(s ControllerServer, ctx context.Context, in *HostRequest) (interface{}, error) {
			return s.HostByMAC(ctx, in)
		}),
		unary("HostByIP", func(s ControllerServer, ctx context.Context, in *HostRequest) (interface{}, error) {
			return s.HostByIP(ctx, in)
		}),
		unary("Path", func(s ControllerServer, ctx context.Context, in *PathRequest) (interface{}, error) {
			return s.Path(ctx, in)
		}),
		unary("Flows", func(s ControllerServer, ctx context.Context, in *Empty) (interface{}, error) {
			return s.Flows(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "Commands",
			Handler:       commandsHandler,
			ServerStreams: true,
		},
	},
}
