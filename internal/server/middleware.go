package server

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/metrics"
)

// requestID tags every request with an ID for log correlation. An
// incoming X-Request-ID header is kept so IDs survive proxies.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// authenticate attaches a per-request identity cache backed by the
// bearer token. Token validation is lazy: it runs the first time any
// handler or service asks who the caller is, and every later ask on
// the same request shares that one answer.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		provider := identity.ProviderFunc(func(ctx context.Context) (*identity.Identity, error) {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return nil, identity.ErrNotAuthenticated
			}
			claims, err := s.jwt.Validate(token)
			if err != nil {
				slog.Debug("token rejected", "error", err)
				return nil, identity.ErrNotAuthenticated
			}
			return &identity.Identity{
				UserID: claims.UserID,
				Handle: claims.Handle,
				Email:  claims.Email,
			}, nil
		})

		rc := identity.NewRequestCache(provider)
		c.Request = c.Request.WithContext(identity.WithRequestCache(c.Request.Context(), rc))
		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// requestMetrics observes latency per route and status.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
