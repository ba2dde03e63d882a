package transport

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Backend is what the server exposes: a set of runtimes addressed by model
// name. *manager.Group satisfies it.
type Backend interface {
	Predict(ctx context.Context, model string, payload []byte) (string, error)
	PredictStream(ctx context.Context, model string, payload []byte, emit func(string) error) error
}

// Server implements InferenceServer on top of a Backend.
type Server struct {
	backend Backend
	log     zerolog.Logger
}

func NewServer(b Backend, log zerolog.Logger) *Server {
	return &Server{backend: b, log: log}
}

func parseRequest(req *structpb.Struct) (model string, payload []byte, err error) {
	f := req.GetFields()
	model = f["model"].GetStringValue()
	if model == "" {
		return "", nil, status.Error(codes.InvalidArgument, "model is required")
	}
	return model, []byte(f["input"].GetStringValue()), nil
}

func (s *Server) ModelInfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	model, payload, err := parseRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := s.backend.Predict(ctx, model, payload)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"model":  structpb.NewStringValue(model),
		"output": structpb.NewStringValue(out),
	}}, nil
}

func (s *Server) ModelStreamInfer(req *structpb.Struct, stream grpc.ServerStream) error {
	model, payload, err := parseRequest(req)
	if err != nil {
		return err
	}
	err = s.backend.PredictStream(stream.Context(), model, payload, func(tok string) error {
		return stream.SendMsg(token(tok))
	})
	if err != nil && stream.Context().Err() != nil {
		// client went away; nobody is left to read the status
		s.log.Debug().Str("model", model).Msg("stream client gone")
		return status.FromContextError(stream.Context().Err()).Err()
	}
	return toStatus(err)
}

// NewGRPCServer returns a grpc.Server with keepalive settings and request
// logging, with srv registered.
func NewGRPCServer(srv InferenceServer, log zerolog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(unaryLogger(log)),
		grpc.ChainStreamInterceptor(streamLogger(log)),
	}
	gs := grpc.NewServer(append(base, opts...)...)
	RegisterInferenceServer(gs, srv)
	return gs
}

func unaryLogger(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(log, info.FullMethod, start, err)
		return resp, err
	}
}

func streamLogger(log zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(log, info.FullMethod, start, err)
		return err
	}
}

func logCall(log zerolog.Logger, method string, start time.Time, err error) {
	code := status.Code(err)
	ev := log.Debug()
	if code != codes.OK && code != codes.Canceled && code != codes.NotFound && code != codes.InvalidArgument {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", method).Str("code", code.String()).Dur("dur", time.Since(start)).Msg("grpc call")
}
