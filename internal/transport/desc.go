// Package transport carries inference calls between the gateway and the
// runtime over gRPC. The service is described by hand on top of protobuf
// well-known types, so no generated code is involved:
//
//	service modelgate.v1.Inference {
//	  rpc ModelInfer(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc ModelStreamInfer(google.protobuf.Struct) returns (stream google.protobuf.StringValue);
//	}
//
// Requests are {model, input}; input is the raw request payload (plain text or
// the JSON envelope the runtime decodes). Unary replies are {model, output}.
// End of stream is the gRPC end-of-stream, never a token.
package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "modelgate.v1.Inference"

	methodInfer  = "/" + ServiceName + "/ModelInfer"
	methodStream = "/" + ServiceName + "/ModelStreamInfer"
)

// InferenceServer is the server side of the service.
type InferenceServer interface {
	ModelInfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ModelStreamInfer(req *structpb.Struct, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ModelInfer", Handler: modelInferHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ModelStreamInfer", Handler: modelStreamInferHandler, ServerStreams: true},
	},
	Metadata: "modelgate/v1/inference.proto",
}

// RegisterInferenceServer attaches srv to s.
func RegisterInferenceServer(s grpc.ServiceRegistrar, srv InferenceServer) {
	s.RegisterService(&serviceDesc, srv)
}

func modelInferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServer).ModelInfer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodInfer}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InferenceServer).ModelInfer(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func modelStreamInferHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(InferenceServer).ModelStreamInfer(in, stream)
}

// request builds the wire form of a call.
func request(model string, payload []byte) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"model": structpb.NewStringValue(model),
		"input": structpb.NewStringValue(string(payload)),
	}}
}

func token(s string) *wrapperspb.StringValue { return wrapperspb.String(s) }
