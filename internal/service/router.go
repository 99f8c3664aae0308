package service

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/dirk.krummacker/identity-service/internal/store"
	api "gitlab.com/dirk.krummacker/identity-service/pkg/model"
	"go.uber.org/zap"
)

// requestIdHeader carries the id that correlates a request with its log lines.
const requestIdHeader = "X-Request-ID"

// RouterConfig holds the dependencies of the HTTP router.
type RouterConfig struct {
	Identifier *Identifier
	Store      store.Store
	Logger     *zap.Logger
	// RequestLogging turns the access log on or off. Errors are logged in any case.
	RequestLogging bool
}

// handler serves the REST API.
type handler struct {
	identifier *Identifier
	store      store.Store
	logger     *zap.Logger
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(cfg RouterConfig) *gin.Engine {
	h := &handler{identifier: cfg.Identifier, store: cfg.Store, logger: cfg.Logger}
	router := gin.New()
	router.Use(requestId())
	if cfg.RequestLogging {
		router.Use(requestLogger(cfg.Logger))
	} else {
		cfg.Logger.Info("turning off HTTP request logging")
	}
	router.Use(cors.Default())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		cfg.Logger.Error("panic while serving request",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(requestIdHeader)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}))

	router.GET("/", banner)
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/identify", h.identify)
	router.GET("/contacts/:id", h.findContactByID)
	return router
}

// requestId makes sure that every request has an id, taking the one supplied by the client if
// present, and echoes it in the response.
func requestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIdHeader, id)
		c.Header(requestIdHeader, id)
		c.Next()
	}
}

// requestLogger writes one log line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIdHeader)))
	}
}
