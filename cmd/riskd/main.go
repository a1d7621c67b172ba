package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nganiriza-api/internal/config"
	"nganiriza-api/internal/logging"
	"nganiriza-api/internal/risk"
	"nganiriza-api/internal/risk/mongostore"
	"nganiriza-api/internal/riskapi"
)

func main() {
	cfg := config.LoadRisk()
	log, err := logging.New(cfg.Env)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	client, err := mongostore.Connect(ctx, cfg.MongoURI)
	cancel()
	if err != nil {
		log.Fatal("mongo", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	log.Info("connected to mongo", zap.String("db", cfg.MongoDB))

	st := mongostore.New(client.Database(cfg.MongoDB))
	plots, err := risk.NewPlotter(cfg.StaticDir, cfg.MaxPlots)
	if err != nil {
		log.Fatal("static dir", zap.Error(err))
	}
	svc := risk.NewService(st, st, plots, log.Named("risk"))
	if err := svc.Restore(context.Background()); err != nil {
		log.Warn("restore model", zap.Error(err))
	}

	app := riskapi.New(svc, cfg.BackendURL, log.Named("http")).App(cfg.StaticDir, cfg.CORSOrigins)
	go func() {
		log.Info("risk service listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("listen", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
