package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"herald/pkg/logging"
)

// ServiceAuthMiddleware accepts a bearer token matching any of tokens, so a
// previous token keeps working while callers rotate. Empty tokens are ignored.
func ServiceAuthMiddleware(tokens ...string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization header"})
			return
		}

		scheme, token, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		match := 0
		for _, want := range accepted {
			match |= subtle.ConstantTimeCompare([]byte(token), want)
		}
		if match != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid service token"})
			return
		}

		c.Next()
	}
}

// GetRequestID returns the id set by RequestIDMiddleware, or "".
func GetRequestID(c *gin.Context) string {
	id, _ := c.Get(requestIDKey)
	s, _ := id.(string)
	return s
}

// GetContextLogger scopes logger to the request: its id, the matched route
// and the content item when the route carries one.
func GetContextLogger(c *gin.Context, logger logging.Logger) *logrus.Entry {
	fields := logging.Fields{
		"request_id": GetRequestID(c),
		"method":     c.Request.Method,
		"route":      c.FullPath(),
	}
	if id := c.Param("content_item_id"); id != "" {
		fields["content_item_id"] = id
	}
	return logger.WithFields(fields)
}
