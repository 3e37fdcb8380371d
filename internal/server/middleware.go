package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vladimiradmaev/food-diary/internal/logger"
)

const (
	rateLimitWindow = time.Minute
	rateLimitMax    = 60
)

// RequestID tags every request with a correlation id for log grepping.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		logger.WithFields(
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		).Info("Request handled")
	}
}

// RateLimiter enforces a fixed per-IP request window backed by redis.
// Redis failures degrade open: a broken limiter must not take the API down.
func RateLimiter(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:api:" + c.ClientIP()

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warnf("Rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, rateLimitWindow)
		}
		if count > rateLimitMax {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"detail": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// authRequired validates the bearer token, ties it back to the user row via
// the session hash and stores the resolved user id on the context.
func (s *Server) authRequired() gin.HandlerFunc {
	abort := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"status": "error",
			"detail": "not authorized",
		})
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || header == "null" {
			abort(c)
			return
		}
		parts := strings.Fields(header)
		tokenString := parts[len(parts)-1]

		claims, err := s.deps.Tokens.Decode(tokenString)
		if err != nil {
			abort(c)
			return
		}

		tgUserID := claimString(claims["id"])
		sessionID := claimString(claims["session_id"])
		authDate, err := strconv.ParseInt(claimString(claims["auth_date"]), 10, 64)
		if tgUserID == "" || sessionID == "" || err != nil {
			abort(c)
			return
		}

		user, err := s.deps.Users.GetByTgUserID(c.Request.Context(), tgUserID)
		if err != nil {
			abort(c)
			return
		}
		if s.deps.Tokens.SessionHash(user.TgUserID, user.ID, authDate) != sessionID {
			abort(c)
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}

// claimString renders a JWT claim value as a string; numeric telegram ids
// arrive as float64 after JSON decoding.
func claimString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case nil:
		return ""
	default:
		return ""
	}
}
