package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mpoirier/auth-core/internal/dto"
	"github.com/mpoirier/auth-core/internal/service"
)

// RequestLimitMiddleware applies the coarse per-IP throttle to an
// unauthenticated endpoint. The fine-grained per-(email, ip) login limiter
// lives in the service layer; this only sheds bulk traffic.
func RequestLimitMiddleware(limiter *service.RequestLimiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + ClientIP(c)

		allowed, remaining := limiter.Allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ClientIP resolves the originating client address, preferring the proxy
// headers over the socket address.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		// X-Forwarded-For can contain multiple hops, the first is the client
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}

	return c.ClientIP()
}
