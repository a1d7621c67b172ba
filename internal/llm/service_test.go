package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/model"
)

type fakeGen struct {
	text  string
	err   error
	calls [][]chatctx.Message
	opts  []chatctx.Options
}

func (f *fakeGen) Generate(_ context.Context, msgs []chatctx.Message, opts chatctx.Options) (Completion, error) {
	f.calls = append(f.calls, msgs)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return Completion{}, f.err
	}
	return Completion{Text: f.text, TokensUsed: 12}, nil
}

func (f *fakeGen) Ping(context.Context) error { return f.err }

type memCache struct{ m map[string]string }

func (c *memCache) Get(_ context.Context, k string) (string, bool, error) {
	v, ok := c.m[k]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, k, v string, _ time.Duration) error {
	c.m[k] = v
	return nil
}

type memStore struct {
	rows map[string]*model.QueryCache
}

func (s *memStore) LookupQueryCache(_ context.Context, hash string) (string, bool, error) {
	e, ok := s.rows[hash]
	if !ok {
		return "", false, nil
	}
	e.AccessedCount++
	return e.Response, true, nil
}

func (s *memStore) SaveQueryCache(_ context.Context, e *model.QueryCache) error {
	s.rows[e.QueryHash] = e
	return nil
}

func newTestService(gen *fakeGen) (*Service, *memCache, *memStore) {
	c := &memCache{m: map[string]string{}}
	st := &memStore{rows: map[string]*model.QueryCache{}}
	return NewService(gen, c, st, time.Minute, nil), c, st
}

func TestCacheKeyStable(t *testing.T) {
	a := CacheKey("q", map[string]any{"b": 2, "a": 1})
	b := CacheKey("q", map[string]any{"a": 1, "b": 2})
	if a != b {
		t.Error("key depends on map order")
	}
	if CacheKey("q", nil) == a {
		t.Error("context ignored in key")
	}
	if len(a) != 64 {
		t.Errorf("expected sha256 hex, got %d chars", len(a))
	}
}

func TestGenerateCaches(t *testing.T) {
	gen := &fakeGen{text: "Muraho"}
	svc, cache, st := newTestService(gen)

	r, err := svc.Generate(context.Background(), Request{Query: "hello", UseCache: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if r.Cached || !r.Success || r.Response != "Muraho" || r.TokensUsed != 12 {
		t.Errorf("first result: %+v", r)
	}
	if len(cache.m) != 1 || len(st.rows) != 1 {
		t.Fatalf("not cached: cache=%d store=%d", len(cache.m), len(st.rows))
	}

	r, err = svc.Generate(context.Background(), Request{Query: "hello", UseCache: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !r.Cached || r.Response != "Muraho" {
		t.Errorf("second result: %+v", r)
	}
	if len(gen.calls) != 1 {
		t.Errorf("backend called %d times", len(gen.calls))
	}
}

func TestGenerateFallsBackToStore(t *testing.T) {
	gen := &fakeGen{text: "fresh"}
	svc, cache, st := newTestService(gen)

	key := CacheKey("hi", nil)
	st.rows[key] = &model.QueryCache{QueryHash: key, Response: "from db"}

	r, err := svc.Generate(context.Background(), Request{Query: "hi", UseCache: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !r.Cached || r.Response != "from db" {
		t.Errorf("result: %+v", r)
	}
	if st.rows[key].AccessedCount != 1 {
		t.Errorf("accessed count: %d", st.rows[key].AccessedCount)
	}
	if cache.m[key] != "from db" {
		t.Error("memory cache not refilled")
	}
	if len(gen.calls) != 0 {
		t.Error("backend should not be called on a hit")
	}
}

func TestGenerateNoCache(t *testing.T) {
	gen := &fakeGen{text: "x"}
	svc, cache, _ := newTestService(gen)

	svc.Generate(context.Background(), Request{Query: "q"})
	svc.Generate(context.Background(), Request{Query: "q"})
	if len(gen.calls) != 2 {
		t.Errorf("expected 2 backend calls, got %d", len(gen.calls))
	}
	if len(cache.m) != 0 {
		t.Error("cache written with UseCache=false")
	}
}

func TestGenerateContextMessage(t *testing.T) {
	gen := &fakeGen{text: "x"}
	svc, _, _ := newTestService(gen)

	_, err := svc.Generate(context.Background(), Request{
		Query:        "q",
		SystemPrompt: "sys",
		Context:      map[string]any{"language": "rw", "age": 16},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msgs := gen.calls[0]
	if len(msgs) != 3 {
		t.Fatalf("messages: %+v", msgs)
	}
	if msgs[1].Content != "Context information:\nage: 16\nlanguage: rw" {
		t.Errorf("context block: %q", msgs[1].Content)
	}
}

func TestGenerateErrors(t *testing.T) {
	svc, _, _ := newTestService(&fakeGen{err: errors.New("down")})
	if _, err := svc.Generate(context.Background(), Request{Query: "q"}); err == nil {
		t.Error("expected backend error")
	}
	if _, err := svc.Generate(context.Background(), Request{Query: "  "}); err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestWarmup(t *testing.T) {
	gen := &fakeGen{text: "ok"}
	svc, _, st := newTestService(gen)

	if n := svc.Warmup(context.Background(), CommonQueries); n != len(CommonQueries) {
		t.Errorf("warmed %d", n)
	}
	if len(st.rows) != len(CommonQueries) {
		t.Errorf("stored %d", len(st.rows))
	}
	// second pass is all hits
	svc.Warmup(context.Background(), CommonQueries)
	if len(gen.calls) != len(CommonQueries) {
		t.Errorf("backend calls: %d", len(gen.calls))
	}
}

func TestGenerateTemperature(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name string
		in   *float64
		want float64
	}{
		{"default", nil, DefaultTemperature},
		{"explicit zero", &zero, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGen{text: "ok"}
			svc, _, _ := newTestService(gen)
			if _, err := svc.Generate(context.Background(), Request{Query: "q", Temperature: tt.in}); err != nil {
				t.Fatal(err)
			}
			if len(gen.opts) != 1 || gen.opts[0].Temperature != tt.want {
				t.Errorf("temperature: got %+v, want %v", gen.opts, tt.want)
			}
		})
	}
}

func TestCacheKeyWithoutContext(t *testing.T) {
	sum := sha256.Sum256([]byte("what is hiv?"))
	if got, want := CacheKey("what is hiv?", nil), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if CacheKey("q", nil) != CacheKey("q", map[string]any{}) {
		t.Error("empty context should hash like no context")
	}
}
