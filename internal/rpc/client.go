package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls AssistantService with the wire codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out WireMessage, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) Chat(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (*ChatResponse, error) {
	out := new(ChatResponse)
	if err := c.invoke(ctx, ChatMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateTitle(ctx context.Context, in *TitleRequest, opts ...grpc.CallOption) (*TitleResponse, error) {
	out := new(TitleResponse)
	if err := c.invoke(ctx, GenerateTitleMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, HealthMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
