package grpcweb

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"nganiriza-api/internal/auth"
	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/ollama"
	"nganiriza-api/internal/rpc"
)

const secret = "bridge-secret"

type echo struct{}

func (echo) Complete(_ context.Context, msgs []chatctx.Message, _ chatctx.Options) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

type probe struct{}

func (probe) Health(context.Context) ollama.Health {
	return ollama.Health{Status: "healthy", Model: "llama3"}
}

func newBridge(t *testing.T, origins ...string) http.Handler {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.ChainUnaryInterceptor(middleware.Auth(secret, rpc.HealthMethod)),
	)
	rpc.Register(srv, rpc.NewServer(chatctx.New(echo{}, nil), probe{}, "", nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewWithConn(conn, origins, nil).Handler()
}

func post(h http.Handler, method, contentType, tok string, msg []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, method, bytes.NewReader(frame(0, msg)))
	req.Header.Set("Content-Type", contentType)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// split returns the data payload (if any) and the trailer text.
func split(t *testing.T, body []byte) (data []byte, trailer string) {
	t.Helper()
	for len(body) >= 5 {
		n := binary.BigEndian.Uint32(body[1:5])
		payload := body[5 : 5+n]
		if body[0]&0x80 != 0 {
			trailer = string(payload)
		} else {
			data = payload
		}
		body = body[5+n:]
	}
	return data, trailer
}

func TestHealthThroughBridge(t *testing.T) {
	h := newBridge(t)
	w := post(h, rpc.HealthMethod, "application/grpc-web+proto", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("http %d", w.Code)
	}
	data, trailer := split(t, w.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer: %q", trailer)
	}
	var resp rpc.HealthResponse
	if err := resp.UnmarshalWire(data); err != nil || resp.Status != "healthy" {
		t.Errorf("resp %+v err %v", resp, err)
	}
}

func TestChatThroughBridge(t *testing.T) {
	h := newBridge(t)
	req := (&rpc.ChatRequest{Query: "hello"}).MarshalWire()

	w := post(h, rpc.ChatMethod, "application/grpc-web+proto", "", req)
	if _, trailer := split(t, w.Body.Bytes()); !strings.Contains(trailer, "grpc-status:16") {
		t.Errorf("unauthenticated trailer: %q", trailer)
	}

	tok, _ := auth.MakeToken("u-1", "user", secret)
	w = post(h, rpc.ChatMethod, "application/grpc-web+proto", tok, req)
	data, trailer := split(t, w.Body.Bytes())
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer: %q", trailer)
	}
	var resp rpc.ChatResponse
	if err := resp.UnmarshalWire(data); err != nil || resp.Response != "echo: hello" {
		t.Errorf("resp %+v err %v", resp, err)
	}
}

func TestTextMode(t *testing.T) {
	h := newBridge(t)
	body := base64.StdEncoding.EncodeToString(frame(0, nil))
	req := httptest.NewRequest(http.MethodPost, rpc.HealthMethod, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/grpc-web-text")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/grpc-web-text") {
		t.Errorf("content-type %q", ct)
	}
	// two separately encoded frames
	out := w.Body.String()
	var raw []byte
	for len(out) > 0 {
		i := strings.Index(out, "=")
		chunk := out
		if i >= 0 {
			for i < len(out) && out[i] == '=' {
				i++
			}
			chunk = out[:i]
		}
		dec, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			t.Fatalf("decode %q: %v", chunk, err)
		}
		raw = append(raw, dec...)
		out = out[len(chunk):]
	}
	if _, trailer := split(t, raw); !strings.Contains(trailer, "grpc-status:0") {
		t.Errorf("trailer: %q", trailer)
	}
}

func TestRejectsBadRequests(t *testing.T) {
	h := newBridge(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, rpc.HealthMethod, nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, rpc.HealthMethod, nil)
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("json: %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, rpc.HealthMethod, bytes.NewReader([]byte{0, 0, 0, 0, 9, 1}))
	req.Header.Set("Content-Type", "application/grpc-web+proto")
	h.ServeHTTP(w, req)
	if _, trailer := split(t, w.Body.Bytes()); !strings.Contains(trailer, "grpc-status:3") {
		t.Errorf("short frame trailer: %q", trailer)
	}
}

func TestCORS(t *testing.T) {
	h := newBridge(t, "https://app.nganiriza.rw")

	for origin, want := range map[string]string{
		"https://app.nganiriza.rw": "https://app.nganiriza.rw",
		"https://evil.example":     "",
	} {
		req := httptest.NewRequest(http.MethodOptions, rpc.ChatMethod, nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s preflight: %d", origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("%s: allow-origin %q", origin, got)
		}
	}
}
