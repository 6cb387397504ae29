package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/api"
	"github.com/yourorg/vision-showcase/internal/config"
	"github.com/yourorg/vision-showcase/internal/gallery"
	"github.com/yourorg/vision-showcase/internal/logger"
	"github.com/yourorg/vision-showcase/internal/metrics"
)

const (
	bootTimeout     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger level comes from config; fall back to defaults to report this
		logger.Must("info").Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Init()

	bootCtx, cancel := context.WithTimeout(context.Background(), bootTimeout)
	svc, cleanup := gallery.Bootstrap(bootCtx, cfg, log)
	cancel()

	router := api.NewRouter(api.NewHandler(svc, log), log, api.RouterOptions{
		StaticDir:    cfg.Server.StaticDir,
		ServeMetrics: cfg.Server.MetricsAddr == "",
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	drained := make(chan struct{})
	ops := map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			defer close(drained)
			return srv.Shutdown(ctx)
		},
		// stores close once in-flight requests are done with them
		"backend": func(ctx context.Context) error {
			select {
			case <-drained:
			case <-ctx.Done():
			}
			cleanup()
			return nil
		},
	}
	go listen(log, "server starting", srv, zap.Int("gallery_limit", svc.Limit()))

	if cfg.Server.MetricsAddr != "" {
		msrv := metrics.NewServer(cfg.Server.MetricsAddr)
		ops["metrics"] = msrv.Shutdown
		go listen(log, "metrics listening", msrv)
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)
	code := <-wait
	log.Info("server exited", zap.Int("code", code))
	_ = log.Sync()
	os.Exit(code)
}

// listen serves srv until shutdown. A listener that fails outright raises
// SIGTERM so the remaining servers and stores go down through the same path.
func listen(log *zap.Logger, msg string, srv *http.Server, fields ...zap.Field) {
	log.Info(msg, append(fields, zap.String("addr", srv.Addr))...)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("listener failed", zap.String("addr", srv.Addr), zap.Error(err))
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}
}
