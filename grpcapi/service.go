package grpcapi

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "eqservice.ZkStackService"
const methodGetZkStack = "/" + serviceName + "/GetZkStack"

// ZkStackServer is the server-side interface the generated handler below
// dispatches to, the same role a protoc-gen-go-grpc *ServiceServer
// interface plays for a real .proto file.
type ZkStackServer interface {
	GetZkStack(ctx context.Context, req *GetZkStackRequest) (*GetZkStackResponse, error)
}

func getZkStackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(GetZkStackRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ZkStackServer).GetZkStack(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetZkStack}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ZkStackServer).GetZkStack(ctx, req.(*GetZkStackRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is registered against a *grpc.Server via RegisterZkStackServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ZkStackServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetZkStack", Handler: getZkStackHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eqservice.proto",
}

// RegisterZkStackServer registers impl against s.
func RegisterZkStackServer(s grpc.ServiceRegistrar, impl ZkStackServer) {
	s.RegisterService(&ServiceDesc, impl)
}

// ZkStackClient is the client-side interface a generated stub would expose.
type ZkStackClient interface {
	GetZkStack(ctx context.Context, req *GetZkStackRequest, opts ...grpc.CallOption) (*GetZkStackResponse, error)
}

type zkStackClient struct {
	cc grpc.ClientConnInterface
}

// NewZkStackClient wraps a dialed connection.
func NewZkStackClient(cc grpc.ClientConnInterface) ZkStackClient {
	return &zkStackClient{cc: cc}
}

func (c *zkStackClient) GetZkStack(ctx context.Context, req *GetZkStackRequest, opts ...grpc.CallOption) (*GetZkStackResponse, error) {
	resp := new(GetZkStackResponse)
	if err := c.cc.Invoke(ctx, methodGetZkStack, req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
