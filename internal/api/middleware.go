package api

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("took", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("request failed", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

// adminGuard rejects admin requests when admin is disabled, when the client
// is not on loopback (unless remote access is allowed), or when the rate
// limit is exhausted.
func (s *Server) adminGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.AdminEnabled {
			writeError(c, http.StatusForbidden, "admin operations are disabled")
			c.Abort()
			return
		}
		if !s.cfg.AdminAllowRemote && !isLoopback(c.ClientIP()) {
			s.log.Warn("rejected remote admin request",
				zap.String("client", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			writeError(c, http.StatusForbidden, "admin operations are only available from localhost")
			c.Abort()
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(c, http.StatusTooManyRequests, "too many admin requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
