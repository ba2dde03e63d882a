package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"modelgate/internal/engine"
)

// Client calls a runtime over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target without transport security. Extra options are
// applied after the defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

// Infer runs a single-shot call.
func (c *Client) Infer(ctx context.Context, model string, payload []byte) (string, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodInfer, request(model, payload), out); err != nil {
		return "", fromStatus(model, err)
	}
	return out.GetFields()["output"].GetStringValue(), nil
}

// Stream opens a streaming call. Errors the runtime reports before the first
// token surface from the first Recv. Closing the stream cancels the call.
func (c *Client) Stream(ctx context.Context, model string, payload []byte) (engine.Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cs, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], methodStream)
	if err != nil {
		cancel()
		return nil, fromStatus(model, err)
	}
	if err := cs.SendMsg(request(model, payload)); err != nil {
		cancel()
		return nil, fromStatus(model, err)
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, fromStatus(model, err)
	}
	return &clientStream{model: model, cs: cs, cancel: cancel}, nil
}

type clientStream struct {
	model  string
	cs     grpc.ClientStream
	cancel context.CancelFunc
	once   sync.Once
}

func (s *clientStream) Recv() (string, error) {
	v := new(wrapperspb.StringValue)
	if err := s.cs.RecvMsg(v); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", fromStatus(s.model, err)
	}
	return v.GetValue(), nil
}

func (s *clientStream) Close() error {
	s.once.Do(s.cancel)
	return nil
}
