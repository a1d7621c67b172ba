package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"nganiriza-api/internal/auth"
	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/llm"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/ollama"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "test-secret"

// fakeBackend answers title prompts with a quoted title and everything else with "answer".
type fakeBackend struct {
	mu    sync.Mutex
	calls [][]chatctx.Message
	opts  []chatctx.Options
	err   error
}

func (f *fakeBackend) Complete(_ context.Context, msgs []chatctx.Message, opts chatctx.Options) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msgs)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(msgs) > 0 && strings.Contains(msgs[0].Content, "titles") {
		return `"Contraception Basics"`, nil
	}
	return "answer", nil
}

type fakeProbe struct{ status string }

func (p fakeProbe) Health(context.Context) ollama.Health {
	return ollama.Health{Status: p.status, Model: "llama3"}
}

type fakeGenerator struct {
	calls int
	opts  []chatctx.Options
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, _ []chatctx.Message, opts chatctx.Options) (llm.Completion, error) {
	g.calls++
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return llm.Completion{}, g.err
	}
	return llm.Completion{Text: "cached answer", TokensUsed: 7}, nil
}

func (g *fakeGenerator) Ping(context.Context) error { return g.err }

type memStore struct{ m map[string]string }

func (s *memStore) LookupQueryCache(_ context.Context, hash string) (string, bool, error) {
	v, ok := s.m[hash]
	return v, ok, nil
}

func (s *memStore) SaveQueryCache(_ context.Context, e *model.QueryCache) error {
	s.m[e.QueryHash] = e.Response
	return nil
}

func newTestRouter(d Deps) *gin.Engine {
	d.Secret = testSecret
	return New(d).Router(RouterConfig{})
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.MakeToken("3f1c2a7e-5b6d-4e8f-9a0b-1c2d3e4f5a6b", role, testSecret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func do(r http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(Deps{})
	w := do(r, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	w = do(r, http.MethodGet, "/readyz", "", nil)
	if got := decode(t, w)["db"]; got != "disabled" {
		t.Errorf("readyz db: %v", got)
	}
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyzDegraded(t *testing.T) {
	r := New(Deps{Secret: testSecret}).Router(RouterConfig{DB: downDB{}})
	w := do(r, http.MethodGet, "/readyz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("got %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(Deps{})
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/dashboard/"},
		{http.MethodGet, "/api/dashboard/profile/"},
		{http.MethodPost, "/api/dashboard/conversations/"},
		{http.MethodGet, "/api/specialists/appointments/my/"},
		{http.MethodGet, "/api/admin/users/"},
		{http.MethodPost, "/api/ai/chat/"},
		{http.MethodGet, "/api/auth/me/"},
	}
	for _, p := range paths {
		t.Run(p.path, func(t *testing.T) {
			if w := do(r, p.method, p.path, "", nil); w.Code != http.StatusUnauthorized {
				t.Errorf("got %d", w.Code)
			}
		})
	}
}

func TestRoleChecks(t *testing.T) {
	r := newTestRouter(Deps{})
	user := token(t, model.RoleUser)

	for _, p := range []struct{ method, path string }{
		{http.MethodGet, "/api/admin/users/"},
		{http.MethodPost, "/api/dashboard/articles/create/"},
		{http.MethodGet, "/api/specialists/messages/inbox/"},
		{http.MethodGet, "/api/specialists/dashboard/stats/"},
	} {
		if w := do(r, p.method, p.path, user, nil); w.Code != http.StatusForbidden {
			t.Errorf("%s %s: got %d", p.method, p.path, w.Code)
		}
	}
}

func TestValidationDetails(t *testing.T) {
	r := newTestRouter(Deps{})
	w := do(r, http.MethodPost, "/api/auth/signup/", "", map[string]any{"email": "not-an-email", "password": "short"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d", w.Code)
	}
	details, ok := decode(t, w)["details"].(map[string]any)
	if !ok {
		t.Fatalf("no details: %s", w.Body.String())
	}
	for _, f := range []string{"email", "password", "full_name"} {
		if _, ok := details[f]; !ok {
			t.Errorf("missing %s in %v", f, details)
		}
	}
}

func TestMalformedBody(t *testing.T) {
	r := newTestRouter(Deps{})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login/", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	r := newTestRouter(Deps{})
	big := strings.Repeat("a", maxBodyBytes+10)
	w := do(r, http.MethodPost, "/api/auth/login/", "", map[string]string{"email": big, "password": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d", w.Code)
	}
}

func TestAIChat(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(Deps{Chat: chatctx.New(fb, nil)})

	w := do(r, http.MethodPost, "/api/ai/chat/", token(t, model.RoleUser), map[string]any{
		"query": "What is ovulation?",
		"history": []chatctx.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["response"] != "answer" || out["summarized"] != false {
		t.Errorf("body: %v", out)
	}

	sent := fb.calls[0]
	if sent[0].Role != chatctx.RoleSystem || !strings.Contains(sent[0].Content, "Nganiriza") {
		t.Errorf("default system prompt missing: %+v", sent[0])
	}
	if last := sent[len(sent)-1]; last.Content != "What is ovulation?" {
		t.Errorf("query not last: %+v", last)
	}
}

func TestAIChatBackendDown(t *testing.T) {
	r := newTestRouter(Deps{Chat: chatctx.New(&fakeBackend{err: errors.New("refused")}, nil)})
	w := do(r, http.MethodPost, "/api/ai/chat/", token(t, model.RoleUser), map[string]any{"query": "hi"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("got %d", w.Code)
	}
}

func TestAIGenerateTitle(t *testing.T) {
	r := newTestRouter(Deps{Chat: chatctx.New(&fakeBackend{}, nil)})
	w := do(r, http.MethodPost, "/api/ai/generate-title/", token(t, model.RoleUser), map[string]any{
		"messages": []chatctx.Message{{Role: "user", Content: "How do pills work?"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["title"]; got != "Contraception Basics" {
		t.Errorf("title: %v", got)
	}

	w = do(r, http.MethodPost, "/api/ai/generate-title/", token(t, model.RoleUser), map[string]any{"messages": []any{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty messages: %d", w.Code)
	}
}

func TestAIQueryCaches(t *testing.T) {
	gen := &fakeGenerator{}
	svc := llm.NewService(gen, nil, &memStore{m: map[string]string{}}, 0, nil)
	r := newTestRouter(Deps{Cached: svc})
	tok := token(t, model.RoleUser)

	body := map[string]any{"query": "What is HIV?", "context": map[string]any{"lang": "en"}}
	first := decode(t, do(r, http.MethodPost, "/api/ai/query/", tok, body))
	second := decode(t, do(r, http.MethodPost, "/api/ai/query/", tok, body))

	if first["cached"] != false || second["cached"] != true {
		t.Errorf("cached flags: %v / %v", first["cached"], second["cached"])
	}
	if second["response"] != "cached answer" || gen.calls != 1 {
		t.Errorf("response %v after %d calls", second["response"], gen.calls)
	}

	body["use_cache"] = false
	do(r, http.MethodPost, "/api/ai/query/", tok, body)
	if gen.calls != 2 {
		t.Errorf("use_cache=false should bypass cache, calls=%d", gen.calls)
	}
}

func TestAIQueryFailure(t *testing.T) {
	svc := llm.NewService(&fakeGenerator{err: errors.New("boom")}, nil, nil, 0, nil)
	r := newTestRouter(Deps{Cached: svc})
	w := do(r, http.MethodPost, "/api/ai/query/", token(t, model.RoleUser), map[string]any{"query": "x"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d", w.Code)
	}
	out := decode(t, w)
	if out["success"] != false || out["error"] != "internal error" {
		t.Errorf("body: %v", out)
	}
	if strings.Contains(w.Body.String(), "boom") {
		t.Errorf("upstream error leaked: %s", w.Body.String())
	}
}

func TestAIQueryZeroTemperature(t *testing.T) {
	gen := &fakeGenerator{}
	svc := llm.NewService(gen, nil, &memStore{m: map[string]string{}}, 0, nil)
	r := newTestRouter(Deps{Cached: svc})
	w := do(r, http.MethodPost, "/api/ai/query/", token(t, model.RoleUser), map[string]any{
		"query": "x", "temperature": 0, "use_cache": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	if len(gen.opts) != 1 || gen.opts[0].Temperature != 0 {
		t.Errorf("temperature: %+v", gen.opts)
	}
}

func TestAIChatZeroTemperature(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(Deps{Chat: chatctx.New(fb, nil)})
	w := do(r, http.MethodPost, "/api/ai/chat/", token(t, model.RoleUser), map[string]any{"query": "hi", "temperature": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	if len(fb.opts) != 1 || fb.opts[0].Temperature != 0 {
		t.Errorf("temperature: %+v", fb.opts)
	}
}

func TestAIHealth(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"healthy", http.StatusOK},
		{"unhealthy", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			r := newTestRouter(Deps{ChatProbe: fakeProbe{status: tt.status}})
			w := do(r, http.MethodGet, "/api/ai/health/", "", nil)
			if w.Code != tt.want {
				t.Errorf("got %d", w.Code)
			}
			if llmStatus := decode(t, w)["llm"].(map[string]any)["status"]; llmStatus != "disabled" {
				t.Errorf("llm: %v", llmStatus)
			}
		})
	}
}
