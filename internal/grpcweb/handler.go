// Package grpcweb lets browsers reach the gRPC server by translating grpc-web
// (HTTP/1.1, optionally base64 "text" mode) into native gRPC calls.
package grpcweb

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	maxFrameBytes = 4 << 20

	contentProto = "application/grpc-web+proto"
	contentText  = "application/grpc-web-text"
)

// Bridge forwards grpc-web requests to a gRPC server.
type Bridge struct {
	conn    grpc.ClientConnInterface
	closer  io.Closer
	origins map[string]bool
	log     *zap.Logger
}

// New dials the gRPC server at addr (e.g. "localhost:50051"). An empty origins
// list allows any origin.
func New(addr string, origins []string, log *zap.Logger) (*Bridge, error) {
	conn, err := grpc.NewClient(
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcweb dial: %w", err)
	}
	b := NewWithConn(conn, origins, log)
	b.closer = conn
	return b, nil
}

// NewWithConn forwards over an existing connection, which the caller keeps owning.
func NewWithConn(conn grpc.ClientConnInterface, origins []string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{conn: conn, log: log, origins: map[string]bool{}}
	for _, o := range origins {
		if o != "*" {
			b.origins[o] = true
		}
	}
	return b
}

func (b *Bridge) Close() {
	if b.closer != nil {
		b.closer.Close()
	}
}

func (b *Bridge) allowOrigin(origin string) string {
	if len(b.origins) == 0 {
		if origin == "" {
			return "*"
		}
		return origin
	}
	if b.origins[origin] {
		return origin
	}
	return ""
}

// Handler returns an http.Handler that translates gRPC-Web → gRPC.
func (b *Bridge) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := b.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, X-Grpc-Web, X-User-Agent, Authorization, x-grpc-web")
		w.Header().Set("Access-Control-Expose-Headers",
			"Grpc-Status, Grpc-Message, Grpc-Status-Details-Bin, grpc-status, grpc-message")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/grpc-web") {
			http.Error(w, "not grpc-web", http.StatusUnsupportedMediaType)
			return
		}

		b.log.Debug("grpc-web", zap.String("method", r.URL.Path))
		b.forward(w, r, strings.HasPrefix(ct, contentText))
	})
}

func (b *Bridge) forward(w http.ResponseWriter, r *http.Request, text bool) {
	out := &frameWriter{w: w, text: text}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+5))
	if err != nil {
		out.error(codes.Internal, "read body failed")
		return
	}
	if text {
		if body, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(body))); err != nil {
			out.error(codes.InvalidArgument, "bad base64 body")
			return
		}
	}
	if len(body) < 5 {
		out.error(codes.InvalidArgument, "body too short")
		return
	}

	// grpc-web frame: 1-byte flag + 4-byte big-endian length + protobuf
	msgLen := binary.BigEndian.Uint32(body[1:5])
	if msgLen > maxFrameBytes || int(msgLen)+5 > len(body) {
		out.error(codes.InvalidArgument, "incomplete frame")
		return
	}
	payload := body[5 : 5+msgLen]

	// forward metadata
	md := metadata.MD{}
	if vals := r.Header.Values("Authorization"); len(vals) > 0 {
		md.Set("authorization", vals...)
	}
	ctx := metadata.NewOutgoingContext(r.Context(), md)

	// invoke gRPC method using raw codec (pass-through bytes)
	resp := &rawMsg{}
	err = b.conn.Invoke(ctx, r.URL.Path, &rawMsg{data: payload}, resp, grpc.ForceCodec(rawCodec{}))
	if err != nil {
		st, _ := status.FromError(err)
		b.log.Info("grpc-web call failed",
			zap.String("method", r.URL.Path),
			zap.String("code", st.Code().String()),
			zap.String("message", st.Message()),
		)
		out.error(st.Code(), st.Message())
		return
	}
	out.success(resp.data)
}

// rawMsg wraps raw protobuf bytes.
type rawMsg struct{ data []byte }

// rawCodec passes bytes through without marshal/unmarshal.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	return v.(*rawMsg).data, nil
}
func (rawCodec) Unmarshal(data []byte, v any) error {
	m := v.(*rawMsg)
	m.data = append([]byte(nil), data...)
	return nil
}
func (rawCodec) Name() string { return "proto" }

type frameWriter struct {
	w    http.ResponseWriter
	text bool
}

func frame(flag byte, data []byte) []byte {
	f := make([]byte, 5+len(data))
	f[0] = flag
	binary.BigEndian.PutUint32(f[1:5], uint32(len(data)))
	copy(f[5:], data)
	return f
}

func (f *frameWriter) write(frames ...[]byte) {
	ct := contentProto
	if f.text {
		ct = contentText + "+proto"
	}
	f.w.Header().Set("Content-Type", ct)
	f.w.WriteHeader(http.StatusOK)
	for _, fr := range frames {
		if f.text {
			// each frame is encoded separately; clients decode chunk by chunk
			f.w.Write([]byte(base64.StdEncoding.EncodeToString(fr)))
		} else {
			f.w.Write(fr)
		}
	}
}

func (f *frameWriter) error(code codes.Code, msg string) {
	trailer := fmt.Sprintf("grpc-status:%d\r\ngrpc-message:%s\r\n", code, msg)
	f.write(frame(0x80, []byte(trailer)))
}

func (f *frameWriter) success(data []byte) {
	f.write(frame(0x00, data), frame(0x80, []byte("grpc-status:0\r\n")))
}
