package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader names the header clients send to make a mutating
// request safely retryable.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyConfig configures the idempotency middleware.
type IdempotencyConfig struct {
	Repo repository.IdempotencyRepository
	// TTL bounds how long a recorded response can be replayed.
	// Zero means 24 hours.
	TTL time.Duration
}

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the recorded response when a request repeats an
// (operator, key) pair, so POS clients can blindly retry over flaky links
// without double-charging. Requests without a key pass through untouched.
//
// 5xx responses are never recorded: a retry after a transient failure should
// run the handler again, not replay the failure.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		operator := CurrentPrincipal(c)
		if key == "" || operator == nil {
			c.Next()
			return
		}

		prior, err := cfg.Repo.GetByKey(c.Request.Context(), key, operator.UserID)
		if err == nil && prior != nil && !prior.IsExpired() {
			c.Header("X-Idempotency-Replayed", "true")
			c.Data(prior.ResponseCode, "application/json", []byte(prior.ResponseBody))
			c.Abort()
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture

		c.Next()

		status := capture.Status()
		if status >= http.StatusInternalServerError {
			return
		}

		record := &entity.IdempotencyKey{
			Key:          key,
			UserID:       operator.UserID,
			Endpoint:     c.Request.Method + " " + c.FullPath(),
			ResponseCode: status,
			ResponseBody: capture.buf.String(),
			ExpiresAt:    time.Now().Add(ttl),
		}
		_ = cfg.Repo.Create(c.Request.Context(), record)
	}
}
