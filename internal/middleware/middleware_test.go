package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"nganiriza-api/internal/auth"
)

func init() { gin.SetMode(gin.TestMode) }

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst not honoured")
	}
	if rl.Allow("a") {
		t.Error("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Error("limits leak across clients")
	}
}

func TestGinLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()

	r := gin.New()
	r.POST("/login", Limit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	var got []int
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		got = append(got, w.Code)
	}
	if got[0] != http.StatusOK || got[1] != http.StatusTooManyRequests {
		t.Errorf("codes: %v", got)
	}
}

func TestAuthenticate(t *testing.T) {
	r := gin.New()
	r.GET("/me", Authenticate("secret"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c), "role": Role(c)})
	})
	r.GET("/admin", Authenticate("secret"), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	userTok, _ := auth.MakeToken("u-1", "user", "secret")
	adminTok, _ := auth.MakeToken("u-2", "admin", "secret")

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"garbage", "/me", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Token " + userTok, http.StatusUnauthorized},
		{"ok", "/me", "Bearer " + userTok, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + userTok, http.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminTok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d (%s)", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestGRPCAuth(t *testing.T) {
	interceptor := Auth("secret", "/svc/Open")
	next := func(ctx context.Context, req any) (any, error) { return UserIDFrom(ctx), nil }

	out, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Open"}, next)
	if err != nil || out != "" {
		t.Errorf("open method: %v %v", out, err)
	}

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Closed"}, next)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	tok, _ := auth.MakeToken("u-9", "user", "secret")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
	out, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Closed"}, next)
	if err != nil || out != "u-9" {
		t.Errorf("authed call: %v %v", out, err)
	}
}
