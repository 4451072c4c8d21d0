package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	apierrors "codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/logger"
)

const keyPrefix = "storefront:ratelimit"

// per-client request throttle for credential endpoints
type Limiter struct {
	limiter *limiter.Limiter
}

// builds a limiter from a formatted rate ("20-M"); uses redis when client is non-nil
func New(formatted string, client *redis.Client) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}

	var store limiter.Store

	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   keyPrefix,
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          keyPrefix,
			CleanUpInterval: time.Minute,
		})
	}

	return &Limiter{limiter: limiter.New(store, rate)}, nil
}

// returns a gin middleware keyed by client IP and route; store errors fail open
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := ip + ":" + c.FullPath()

		result, err := l.limiter.Get(c.Request.Context(), key)
		if err != nil {
			logger.ErrorErr(err, "failed to check rate limit", "ip", ip)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			logger.Warn("rate limit reached",
				"ip", ip,
				"path", c.Request.URL.Path,
			)

			apierrors.TooManyRequests(c, "too many requests, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
