package handler

import (
	"coin-ledger/config"
	"coin-ledger/internal/adapter/http/middleware"
	redisStore "coin-ledger/internal/adapter/storage/redis"
	"coin-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	Jobs           ports.JobService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	Internal       config.InternalConfig
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", MetricsHandler())

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- App users (JWT) ---
	coins := NewCoinsHandler(deps.Ledger)
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	user := r.Group("/api/v1/coins", jwtAuth)
	{
		user.GET("/balance", rl("read"), coins.GetBalance)
		user.GET("/transactions", rl("read"), coins.ListTransactions)
		user.POST("/spend", rl("spend"), coins.Spend)
		user.POST("/rewards/claim", rl("rewards"), coins.ClaimReward)
	}

	// --- Internal services (HMAC) ---
	internal := NewInternalHandler(deps.Ledger, deps.Jobs)
	hmacAuth := middleware.HMACAuth(deps.Internal, deps.SigSvc, deps.NonceStore, deps.Logger)
	svc := r.Group("/internal/v1", hmacAuth, rl("internal"))
	{
		svc.POST("/purchases", internal.CreditPurchase)
		svc.POST("/credits", internal.Credit)
		svc.POST("/jobs/:job", internal.RunJob)
	}

	return r
}
