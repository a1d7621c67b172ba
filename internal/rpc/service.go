// Package rpc exposes the assistant over gRPC as nganiriza.assistant.v1.AssistantService.
package rpc

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/ollama"
)

const (
	ServiceName         = "nganiriza.assistant.v1.AssistantService"
	ChatMethod          = "/" + ServiceName + "/Chat"
	GenerateTitleMethod = "/" + ServiceName + "/GenerateTitle"
	HealthMethod        = "/" + ServiceName + "/Health"

	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

type AssistantServer interface {
	Chat(context.Context, *ChatRequest) (*ChatResponse, error)
	GenerateTitle(context.Context, *TitleRequest) (*TitleResponse, error)
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
}

func Register(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: chatHandler},
		{MethodName: "GenerateTitle", Handler: generateTitleHandler},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nganiriza/assistant/v1/assistant.proto",
}

func chatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ChatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChatMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Chat(ctx, req.(*ChatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func generateTitleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TitleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).GenerateTitle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GenerateTitleMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).GenerateTitle(ctx, req.(*TitleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HealthMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Prober reports on the chat backend.
type Prober interface {
	Health(ctx context.Context) ollama.Health
}

type Server struct {
	chat         *chatctx.Manager
	probe        Prober
	systemPrompt string
	log          *zap.Logger
}

// NewServer serves chat through m. probe may be nil; systemPrompt is used when
// a request does not carry its own.
func NewServer(m *chatctx.Manager, probe Prober, systemPrompt string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{chat: m, probe: probe, systemPrompt: systemPrompt, log: log}
}

func (s *Server) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, status.Error(codes.InvalidArgument, "query required")
	}
	if req.MaxTokens < 0 || req.Temperature < 0 || req.Temperature > 2 {
		return nil, status.Error(codes.InvalidArgument, "max_tokens or temperature out of range")
	}

	opts := chatctx.Options{MaxTokens: defaultMaxTokens, Temperature: defaultTemperature}
	if req.MaxTokens > 0 {
		opts.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature > 0 {
		opts.Temperature = req.Temperature
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = s.systemPrompt
	}

	reply, err := s.chat.Respond(ctx, ToChat(req.History), req.Query, prompt, opts)
	if err != nil {
		s.log.Error("chat", zap.String("user_id", middleware.UserIDFrom(ctx)), zap.Error(err))
		return nil, status.Error(codes.Unavailable, "assistant unavailable")
	}
	return &ChatResponse{
		Response:        reply.Content,
		Summarized:      reply.Summarized,
		Summary:         reply.Summary,
		EstimatedTokens: int32(reply.EstimatedTokens),
	}, nil
}

func (s *Server) GenerateTitle(ctx context.Context, req *TitleRequest) (*TitleResponse, error) {
	if len(req.Messages) == 0 {
		return nil, status.Error(codes.InvalidArgument, "messages required")
	}
	title := s.chat.GenerateTitle(ctx, ToChat(req.Messages), int(req.MaxLength))
	return &TitleResponse{Title: title}, nil
}

func (s *Server) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	if s.probe == nil {
		return &HealthResponse{Status: "disabled"}, nil
	}
	h := s.probe.Health(ctx)
	return &HealthResponse{Status: h.Status, Model: h.Model, Models: h.Models, Error: h.Error}, nil
}
