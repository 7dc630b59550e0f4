package middleware

import (
	"slices"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

// CORSMiddleware builds the CORS policy from config. Unset lists fall back to
// development defaults, and Idempotency-Key is always allowed so retry-safe
// POS clients work regardless of deployment config.
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	headers := orDefault(cfg.AllowedHeaders, []string{
		"Accept", "Authorization", "Content-Type", "Origin", "X-Request-ID",
	})
	if !slices.Contains(headers, IdempotencyKeyHeader) {
		headers = append(headers, IdempotencyKeyHeader)
	}

	return cors.New(cors.Config{
		AllowOrigins: orDefault(cfg.AllowedOrigins, []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		AllowMethods: orDefault(cfg.AllowedMethods, []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		}),
		AllowHeaders:     headers,
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID", "X-Idempotency-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
