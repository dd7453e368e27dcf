package oracleserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tonatiuh.oracle.v1.OracleService"

// OracleServer is the server API for the oracle service. Requests and responses are
// google.protobuf.Struct messages; the field names are documented on each method of
// Server.
type OracleServer interface {
	ChooseMove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LegalMoves(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GameStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayMove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(OracleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OracleServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OracleServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes OracleService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OracleServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("ChooseMove", OracleServer.ChooseMove),
		unaryHandler("LegalMoves", OracleServer.LegalMoves),
		unaryHandler("GameStatus", OracleServer.GameStatus),
		unaryHandler("CreateGame", OracleServer.CreateGame),
		unaryHandler("PlayMove", OracleServer.PlayMove),
		unaryHandler("GetGame", OracleServer.GetGame),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tonatiuh/oracle/v1/oracle.proto",
}

// RegisterOracleServer registers srv with s.
func RegisterOracleServer(s grpc.ServiceRegistrar, srv OracleServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls OracleService over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChooseMove(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ChooseMove", req, opts...)
}

func (c *Client) LegalMoves(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "LegalMoves", req, opts...)
}

func (c *Client) GameStatus(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GameStatus", req, opts...)
}

func (c *Client) CreateGame(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateGame", req, opts...)
}

func (c *Client) PlayMove(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlayMove", req, opts...)
}

func (c *Client) GetGame(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetGame", req, opts...)
}
