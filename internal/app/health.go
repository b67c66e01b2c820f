package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker probes the two stores the auth flows depend on. Either one
// failing makes the service unable to authenticate, so both gate readiness.
type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{
		infra: infra,
	}
}

func (h *HealthChecker) Handler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"postgres": "pass",
		"redis":    "pass",
	}
	status := http.StatusOK

	if err := h.infra.Postgres().Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if err := h.infra.Redis().Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	overall := "pass"
	if status != http.StatusOK {
		overall = "fail"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}
