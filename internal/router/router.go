package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	accountHandler "github.com/jwalitptl/dentallab-api/internal/handler/account"
	"github.com/jwalitptl/dentallab-api/internal/handler/health"
	"github.com/jwalitptl/dentallab-api/internal/handler/prometheus"
	"github.com/jwalitptl/dentallab-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups the domain handlers mounted under /api/v1.
type Handlers struct {
	Account      *accountHandler.Handler
	Partnership  Handler
	Catalog      Handler
	Job          Handler
	Notification Handler
	Health       *health.Handler
	Metrics      *prometheus.Handler
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	Security       middleware.SecurityConfig
	RequestTimeout time.Duration
	SizeLimit      middleware.SizeLimitConfig
	ReleaseMode    bool
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

const wsPath = "/api/v1/ws"

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{
			Duration:  config.RequestTimeout,
			SkipPaths: []string{wsPath},
		}),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)

	// Verified token only: registration and admin actions.
	authenticated := api.Group("")
	authenticated.Use(r.auth.Authenticate())

	// Verified token resolved to an active lab or a clinic.
	resolved := authenticated.Group("")
	resolved.Use(r.auth.RequireAccount())

	r.handlers.Account.RegisterRoutes(authenticated, resolved)
	r.handlers.Partnership.RegisterRoutes(resolved)
	r.handlers.Catalog.RegisterRoutes(resolved)
	r.handlers.Job.RegisterRoutes(resolved)
	r.handlers.Notification.RegisterRoutes(resolved)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(rg)
	}
	if r.handlers.Metrics != nil {
		rg.GET("/health/metrics", r.handlers.Metrics.Handler())
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
