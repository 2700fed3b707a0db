package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl marks catalog responses as publicly cacheable.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAgeSeconds))
		c.Header("Vary", "Accept-Language, Accept-Encoding")
		c.Next()
	}
}

// NoStore keeps per-user responses out of shared caches.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "private, no-store")
		c.Next()
	}
}
