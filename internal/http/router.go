package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-service/internal/metrics"
	"user-service/internal/trace"
)

const requestIDHeader = "X-Request-Id"

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	tracer *trace.Tracer,
	m *metrics.Metrics,
	userH *UserHandler,
	healthH *HealthHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(), traceScopeMiddleware())

	users := r.Group("/api/users")
	users.POST("/register", tracedOperation(tracer, m, "register_user"), userH.Register)
	users.POST("/login", tracedOperation(tracer, m, "login_user"), userH.Login)
	users.GET("/me", tracedOperation(tracer, m, "get_current_user"), JWTAuthMiddleware(userH.tokens), userH.Me)
	users.GET("/:id", tracedOperation(tracer, m, "get_user"), userH.GetUser)
	users.GET("", tracedOperation(tracer, m, "get_all_users"), userH.ListUsers)
	users.PUT("/:id", tracedOperation(tracer, m, "update_user"), userH.UpdateUser)
	users.GET("/validate/:token", tracedOperation(tracer, m, "validate_token"), userH.ValidateToken)

	r.GET("/health", tracedOperation(tracer, m, "health_check"), healthH.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

// zapLoggerMiddleware registra cada request con su request id y trace id.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", requestID),
			zap.String("trace_id", c.GetString(traceIDKey)),
		)
	}
}

// corsMiddleware permite cualquier origen.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Trace-Id, X-Span-Id, X-Request-Id, traceparent")
		h.Set("Access-Control-Expose-Headers", "X-Trace-Id, X-Request-Id")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
