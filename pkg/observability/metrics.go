package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts authentication flow outcomes. A nil receiver is a
// no-op so components under test need no metrics wiring.
type AuthMetrics struct {
	logins       metric.Int64Counter
	tokensIssued metric.Int64Counter
}

// NewAuthMetrics registers the auth flow counters on the global meter
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("auth-core")

	logins, err := meter.Int64Counter("auth_login_attempts_total",
		metric.WithDescription("Login attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login counter: %w", err)
	}

	tokensIssued, err := meter.Int64Counter("auth_tokens_issued_total",
		metric.WithDescription("Verification and reset tokens issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}

	return &AuthMetrics{
		logins:       logins,
		tokensIssued: tokensIssued,
	}, nil
}

// Login records a login attempt outcome: success, failure, or blocked
func (m *AuthMetrics) Login(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// TokenIssued records an issued token by type
func (m *AuthMetrics) TokenIssued(ctx context.Context, tokenType string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("type", tokenType)))
}

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}
