package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client invokes VideoTags methods on a connection.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient builds a client that sends token as a bearer credential.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

// Call sends in to method and returns the decoded reply.
func (c *Client) Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(plain(in))
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// plain widens []string values, which structpb does not accept, to []any.
func plain(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if ss, ok := v.([]string); ok {
			xs := make([]any, len(ss))
			for i, s := range ss {
				xs[i] = s
			}
			v = xs
		}
		out[k] = v
	}
	return out
}
