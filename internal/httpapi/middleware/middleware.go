package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/suPer8Hu/providentia/internal/auth"
	"github.com/suPer8Hu/providentia/internal/common"
)

const (
	UserIDKey    = "user_id"
	RequestIDKey = "request_id"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered request_id=%s err=%v", c.GetString(RequestIDKey), r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AuthRequired protects endpoints outside the chat pipeline (history,
// stats). The pipeline itself verifies credentials as its first stage.
func AuthRequired(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := verifier.Verify(c.Request.Context(), BearerToken(c))
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		c.Set(UserIDKey, principal.UserID)
		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// BearerToken pulls the raw credential out of the Authorization header.
// Returns "" when the header is absent or not a bearer scheme.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// ConcurrencyLimit caps requests in flight so downstream services are
// never hit by more than max pipelines at once.
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	if max <= 0 {
		max = 64
	}
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			common.Fail(c, http.StatusServiceUnavailable, 50302, "server busy, try again shortly")
			c.Abort()
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
