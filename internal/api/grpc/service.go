package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "eeg.calibration.v1.CalibrationService"

// CalibrationServer is the server API for the calibration control service.
// Messages are protobuf well-known types so the service needs no generated
// code.
type CalibrationServer interface {
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Cancel(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Authenticate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes CalibrationService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalibrationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler: unaryHandler("Start", newEmpty, func(s CalibrationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
				return s.Start(ctx, in)
			}),
		},
		{
			MethodName: "Cancel",
			Handler: unaryHandler("Cancel", newEmpty, func(s CalibrationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
				return s.Cancel(ctx, in)
			}),
		},
		{
			MethodName: "Status",
			Handler: unaryHandler("Status", newEmpty, func(s CalibrationServer, ctx context.Context, in *emptypb.Empty) (proto.Message, error) {
				return s.Status(ctx, in)
			}),
		},
		{
			MethodName: "Register",
			Handler: unaryHandler("Register", newStruct, func(s CalibrationServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
				return s.Register(ctx, in)
			}),
		},
		{
			MethodName: "Authenticate",
			Handler: unaryHandler("Authenticate", newStruct, func(s CalibrationServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
				return s.Authenticate(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eeg/calibration/v1/calibration.proto",
}

func newEmpty() *emptypb.Empty   { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

// unaryHandler adapts a typed method to grpc.MethodDesc, running the server
// interceptor chain when one is installed.
func unaryHandler[Req proto.Message](
	method string,
	newReq func() Req,
	call func(CalibrationServer, context.Context, Req) (proto.Message, error),
) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalibrationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CalibrationServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is a CalibrationService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}

// Start begins a calibration session and returns its id.
func (c *Client) Start(ctx context.Context) (string, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Start", &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetFields()["sessionId"].GetStringValue(), nil
}

// Cancel cancels the active session.
func (c *Client) Cancel(ctx context.Context) error {
	return c.invoke(ctx, "Cancel", &emptypb.Empty{}, new(emptypb.Empty))
}

// Status returns the orchestrator status as a struct.
func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Status", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register creates an operator account. fields use the JSON names of
// store.Registration.
func (c *Client) Register(ctx context.Context, fields map[string]interface{}) (bool, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return false, err
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Register", in, out); err != nil {
		return false, err
	}
	return out.GetFields()["registered"].GetBoolValue(), nil
}

// Authenticate verifies operator credentials and returns the account.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Authenticate", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
