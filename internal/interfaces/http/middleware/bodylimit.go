package middleware

import (
	"net/http"

	"github.com/CortekUK/drive-247-sub002/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimitConfig caps request bodies. Routes are matched on their gin
// route pattern, e.g. "/api/v1/charges/import".
type BodyLimitConfig struct {
	MaxBytes int64
	PerRoute map[string]int64
}

// BodyLimit caps every request body at maxBytes
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return BodyLimitWithConfig(BodyLimitConfig{MaxBytes: maxBytes})
}

// BodyLimitWithConfig caps request bodies, letting listed routes such as
// the CSV import accept larger uploads. A limit of zero disables the cap.
func BodyLimitWithConfig(cfg BodyLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := cfg.MaxBytes
		if n, ok := cfg.PerRoute[c.FullPath()]; ok {
			limit = n
		}
		if limit <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			abortWithError(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		// Chunked bodies carry no length up front
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
