package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"nganiriza-api/internal/auth"
	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/config"
	gweb "nganiriza-api/internal/grpcweb"
	"nganiriza-api/internal/handler"
	"nganiriza-api/internal/jobs"
	"nganiriza-api/internal/llm"
	"nganiriza-api/internal/logging"
	"nganiriza-api/internal/mail"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/ollama"
	"nganiriza-api/internal/rpc"
	"nganiriza-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger not built yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("db ping", zap.Error(err))
	}
	log.Info("connected to postgres")

	// run migrations
	if migration, err := os.ReadFile("db/migrations/001_init.sql"); err != nil {
		log.Warn("migration file not found, skipping", zap.Error(err))
	} else if _, err := pool.Exec(ctx, string(migration)); err != nil {
		log.Warn("migration", zap.Error(err))
	} else {
		log.Info("migration applied")
	}

	st := store.New(pool)
	bootstrapAdmin(ctx, st, cfg, log)

	// chat backend + context manager
	oc := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
	manager := chatctx.New(oc, log.Named("chatctx"),
		chatctx.WithMaxContext(cfg.MaxContextTokens),
		chatctx.WithThreshold(cfg.ContextThreshold),
	)

	// cached generator: redis first, then the query_cache table
	var cache llm.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis url", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, continuing without it", zap.Error(err))
		} else {
			cache = llm.NewRedisCache(rdb)
			log.Info("connected to redis")
		}
	}
	gen := llm.NewOpenAIClient(cfg.LLMURL, cfg.LLMModel, cfg.LLMAPIKey, 120*time.Second)
	svc := llm.NewService(gen, cache, st, cfg.CacheTTL, log.Named("llm"))

	notifier := mail.NewNotifier(mailer(cfg, log))

	// background jobs
	sched := jobs.New(svc, st, llm.CommonQueries, log.Named("jobs"))
	if err := sched.Start(); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
	if cfg.WarmupOnBoot {
		go sched.WarmCache(ctx)
	}

	h := handler.New(handler.Deps{
		Store:     st,
		Chat:      manager,
		ChatProbe: oc,
		Cached:    svc,
		Notifier:  notifier,
		Log:       log,
		Secret:    cfg.JWTSecret,
	})

	// REST
	restRL := middleware.NewRateLimiter(5, 10)
	defer restRL.Stop()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	restSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.Router(handler.RouterConfig{Origins: cfg.CORSOrigins, Limiter: restRL, DB: st}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// assistant replies can take up to the backend timeout
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("rest listening", zap.String("port", cfg.HTTPPort))
		if err := restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rest", zap.Error(err))
		}
	}()

	// grpc server
	rpcRL := middleware.NewRateLimiter(5, 10)
	defer rpcRL.Stop()
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.ChainUnaryInterceptor(
			middleware.RateLimit(rpcRL, rpc.ChatMethod, rpc.GenerateTitleMethod),
			middleware.Auth(cfg.JWTSecret, rpc.HealthMethod),
		),
	)
	rpc.Register(srv, rpc.NewServer(manager, oc, handler.SystemPrompt("eng"), log.Named("rpc")))

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	go func() {
		log.Info("grpc listening", zap.String("port", cfg.GRPCPort))
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc", zap.Error(err))
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.GRPCPort, cfg.CORSOrigins, log.Named("grpcweb"))
	if err != nil {
		log.Fatal("bridge", zap.Error(err))
	}
	defer bridge.Close()

	webSrv := &http.Server{
		Addr:              ":" + cfg.GRPCWebPort,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("grpc-web listening", zap.String("port", cfg.GRPCWebPort))
		if err := webSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("grpc-web", zap.Error(err))
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := restSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("rest shutdown", zap.Error(err))
	}
	webSrv.Shutdown(shutdownCtx)
	srv.GracefulStop()
}

func mailer(cfg *config.Config, log *zap.Logger) mail.Mailer {
	switch {
	case cfg.SendGridAPIKey != "":
		log.Info("mail via sendgrid")
		return mail.NewSendGrid(cfg.SendGridAPIKey, cfg.MailFrom)
	case cfg.SMTPHost != "":
		log.Info("mail via smtp", zap.String("host", cfg.SMTPHost))
		return mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	default:
		log.Warn("no mail transport configured, logging outgoing mail")
		return mail.NewLog(log.Named("mail"))
	}
}

func bootstrapAdmin(ctx context.Context, st *store.Store, cfg *config.Config, log *zap.Logger) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Error("admin password", zap.Error(err))
		return
	}
	created, err := st.EnsureAdmin(ctx, &model.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(cfg.AdminEmail),
		PasswordHash: hash,
		FirstName:    "Admin",
	})
	if err != nil {
		log.Error("bootstrap admin", zap.Error(err))
		return
	}
	if created {
		log.Info("admin account created", zap.String("email", cfg.AdminEmail))
	}
}
