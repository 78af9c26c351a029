package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"car-showroom/internal/bitable"
	"car-showroom/internal/config"
	"car-showroom/internal/logger"
	custommiddleware "car-showroom/internal/middleware"
	"car-showroom/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	redis  *redis.Client
	feishu *bitable.Client
}

// NewServer wires the proxy routes. rdb may be nil, in which case the tenant
// token is cached in memory and request rate limiting is off.
func NewServer(cfg *config.Config, log *zap.Logger, rdb *redis.Client, opts ...bitable.Option) *Server {
	if rdb != nil {
		opts = append([]bitable.Option{
			bitable.WithTokenStore(bitable.NewRedisTokenStore(rdb, bitable.DefaultTokenKey)),
		}, opts...)
	}

	feishu := bitable.NewClient(bitable.Config{
		BaseURL:       cfg.Feishu.BaseURL,
		AppID:         cfg.Feishu.AppID,
		AppSecret:     cfg.Feishu.AppSecret,
		AppToken:      cfg.Feishu.AppToken,
		TableID:       cfg.Feishu.TableID,
		PageSize:      cfg.Feishu.PageSize,
		RateLimit:     cfg.Feishu.RateLimit,
		Timeout:       cfg.Feishu.Timeout,
		RefreshMargin: cfg.Feishu.TokenRefreshMargin,
	}, log, opts...)

	if !feishu.Configured() {
		log.Warn("Feishu credentials incomplete, /api/cars will report missing environment variables")
	}

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger.Component(log, "http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(log))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.CORSAllowedOrigins, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"configured": feishu.Configured(),
		})
	})

	carsHandler := transport.NewCarsHandler(feishu, logger.Component(log, "cars_handler"))
	imageHandler := transport.NewImageHandler(feishu, transport.ImageConfig{
		AllowedHosts: cfg.Image.AllowedHosts,
		CacheMaxAge:  cfg.Image.CacheMaxAge,
	}, logger.Component(log, "image_proxy"))

	router.Group(func(r chi.Router) {
		if rdb != nil {
			r.Use(custommiddleware.RateLimitMiddleware(rdb, custommiddleware.RateLimitConfig{
				RequestsPerWindow: cfg.RateLimit.Requests,
				Window:            cfg.RateLimit.Window,
				KeyPrefix:         custommiddleware.DefaultRateLimitPrefix,
			}, log))
		}
		carsHandler.RegisterRoutes(r)
		imageHandler.RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		config: cfg,
		logger: log,
		redis:  rdb,
		feishu: feishu,
	}
}

// ConnectRedis opens the shared Redis client when enabled. A nil client
// with nil error means Redis is disabled.
func ConnectRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr(), err)
	}

	log.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr()))
	return rdb, nil
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
