package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/response"
)

// RateLimit allows maxRequests per window for each (client IP, route) pair, refilling
// continuously. A non-positive maxRequests or window disables limiting.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limit := rate.Limit(float64(maxRequests) / window.Seconds())
	store := newLimiterStore(limit, maxRequests, 2*window)

	return rateLimitWith(store, maxRequests)
}

func rateLimitWith(store *limiterStore, maxRequests int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + "|" + c.FullPath()
		ok, wait := store.reserve(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			response.Error(c, apperrors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
