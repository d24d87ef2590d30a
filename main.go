package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/publishflow/publishflow/handlers"
	"github.com/publishflow/publishflow/internal/app"
	"github.com/publishflow/publishflow/internal/config"
	"github.com/publishflow/publishflow/internal/document/handler"
	"github.com/publishflow/publishflow/internal/oidc"
	"github.com/publishflow/publishflow/internal/tokens"
	"github.com/publishflow/publishflow/pkg/logger"
	"github.com/publishflow/publishflow/pkg/metrics"
	"github.com/publishflow/publishflow/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)
	logger.Infof("config loaded: keycloak=%v redis=%v minio=%v nats=%v live_site=%v",
		cfg.Keycloak.URL != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.NATS.URL != "", cfg.IsLiveDatabase())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to start publish workflow: %v", err)
	}
	defer a.Close(context.Background())

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(cors(), gin.Logger(), gin.Recovery())

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	verifier := buildVerifier(ctx, cfg)

	r.GET("/ready", func(c *gin.Context) {
		deps := a.Ready(c.Request.Context())
		deps["auth"] = verifier != nil
		ready := true
		for _, ok := range deps {
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if verifier != nil {
		handler.RegisterDocumentRoutes(r.Group("/", middleware.AuthMiddleware(verifier)), a.Service)
	} else {
		logger.Warnf("no token verifier configured: document API not registered")
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting publishflow on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildVerifier accepts Keycloak tokens and publishctl API tokens. The
// insecure verifier is only used when nothing else is configured.
func buildVerifier(ctx context.Context, cfg *config.Config) middleware.Verifier {
	var chain middleware.AnyVerifier
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, oidc.IssuerURL(cfg.Keycloak.URL, cfg.Keycloak.Realm), cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if cfg.JWT.Secret != "" {
		ver, err := tokens.NewHMACVerifier(cfg.JWT.Secret)
		if err != nil {
			logger.Warnf("failed to initialize API token verifier: %v", err)
		} else {
			chain = append(chain, ver)
		}
	}
	if len(chain) == 0 && cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		chain = append(chain, oidc.NewInsecureVerifier())
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// cors answers preflight requests and sets permissive headers for the admin UI.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
