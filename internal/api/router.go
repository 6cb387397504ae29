package api

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/metrics"
)

type RouterOptions struct {
	// StaticDir, when set, is served at / (index.html) and /static.
	StaticDir string
	// ServeMetrics mounts /metrics on this router. Off when a dedicated
	// metrics listener is configured.
	ServeMetrics bool
}

func NewRouter(h *Handler, log *zap.Logger, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log), observe())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/images", h.ListImages)
		apiGroup.GET("/status", h.GetStatus)
		apiGroup.POST("/upload", h.CreateUploadURL)
	}
	r.GET("/health", h.Health)

	if opts.ServeMetrics {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
		r.StaticFile("/", filepath.Join(opts.StaticDir, "index.html"))
		r.StaticFile("/index.html", filepath.Join(opts.StaticDir, "index.html"))
	}
	return r
}

func requestLog(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			log.Warn("request failed", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
