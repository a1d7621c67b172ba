// Package llm serves one-shot completions through a two-level response cache:
// a fast cache (redis) in front of the query_cache table.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/model"
)

var ErrEmptyCompletion = errors.New("llm: empty completion")

type Completion struct {
	Text       string
	TokensUsed int
}

// Generator produces completions.
type Generator interface {
	Generate(ctx context.Context, messages []chatctx.Message, opts chatctx.Options) (Completion, error)
	Ping(ctx context.Context) error
}

// ResponseStore is the durable second-level cache.
type ResponseStore interface {
	LookupQueryCache(ctx context.Context, hash string) (string, bool, error)
	SaveQueryCache(ctx context.Context, e *model.QueryCache) error
}

const (
	DefaultMaxTokens   = 512
	DefaultTemperature = 0.7
)

type Request struct {
	Query        string
	Context      map[string]any
	MaxTokens    int
	Temperature  *float64 // nil selects DefaultTemperature; 0 is honored
	SystemPrompt string
	UseCache     bool
}

type Result struct {
	Response   string `json:"response"`
	Cached     bool   `json:"cached"`
	Success    bool   `json:"success"`
	TokensUsed int    `json:"tokens_used"`
}

type Service struct {
	gen   Generator
	cache Cache // may be nil
	store ResponseStore
	ttl   time.Duration
	log   *zap.Logger
}

func NewService(gen Generator, cache Cache, st ResponseStore, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{gen: gen, cache: cache, store: st, ttl: ttl, log: log}
}

// CacheKey hashes the query together with its context (keys sorted).
// Keys omit the "{}" suffix the legacy Python key format appended for an
// empty context, so rows migrated from that query_cache table never match.
func CacheKey(query string, ctxData map[string]any) string {
	payload := ""
	if len(ctxData) > 0 {
		// encoding/json writes map keys in sorted order
		b, _ := json.Marshal(ctxData)
		payload = string(b)
	}
	sum := sha256.Sum256([]byte(query + payload))
	return hex.EncodeToString(sum[:])
}

func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Result{}, errors.New("query is required")
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	key := CacheKey(req.Query, req.Context)

	if req.UseCache {
		if resp, ok := s.lookup(ctx, key); ok {
			return Result{Response: resp, Cached: true, Success: true}, nil
		}
	}

	var messages []chatctx.Message
	if req.SystemPrompt != "" {
		messages = append(messages, chatctx.Message{Role: chatctx.RoleSystem, Content: req.SystemPrompt})
	}
	if len(req.Context) > 0 {
		messages = append(messages, chatctx.Message{Role: chatctx.RoleSystem, Content: contextBlock(req.Context)})
	}
	messages = append(messages, chatctx.Message{Role: chatctx.RoleUser, Content: req.Query})

	out, err := s.gen.Generate(ctx, messages, chatctx.Options{MaxTokens: req.MaxTokens, Temperature: temperature})
	if err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	if req.UseCache {
		s.remember(ctx, key, req, out.Text)
	}
	return Result{Response: out.Text, Success: true, TokensUsed: out.TokensUsed}, nil
}

func (s *Service) lookup(ctx context.Context, key string) (string, bool) {
	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("cache get failed", zap.Error(err))
		} else if ok {
			return v, true
		}
	}
	if s.store == nil {
		return "", false
	}

	v, ok, err := s.store.LookupQueryCache(ctx, key)
	if err != nil {
		s.log.Warn("query cache lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.log.Warn("cache refill failed", zap.Error(err))
		}
	}
	return v, true
}

func (s *Service) remember(ctx context.Context, key string, req Request, response string) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, response, s.ttl); err != nil {
			s.log.Warn("cache set failed", zap.Error(err))
		}
	}
	if s.store == nil {
		return
	}
	err := s.store.SaveQueryCache(ctx, &model.QueryCache{
		QueryHash: key,
		QueryText: req.Query,
		Response:  response,
		Context:   req.Context,
	})
	if err != nil {
		s.log.Warn("query cache save failed", zap.Error(err))
	}
}

// Ping reports whether the generator backend is reachable.
func (s *Service) Ping(ctx context.Context) error { return s.gen.Ping(ctx) }

// Warmup runs each query through the cache so later identical requests are hits.
func (s *Service) Warmup(ctx context.Context, queries []string) (warmed int) {
	for _, q := range queries {
		if ctx.Err() != nil {
			return warmed
		}
		if _, err := s.Generate(ctx, Request{Query: q, UseCache: true}); err != nil {
			s.log.Warn("warmup query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		warmed++
	}
	return warmed
}

// CommonQueries are pre-populated by the warmup job.
var CommonQueries = []string{
	"Hello, how are you?",
	"What can you help me with?",
	"Tell me about this service",
}

func contextBlock(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Context information:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, m[k])
	}
	return b.String()
}
