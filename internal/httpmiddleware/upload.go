package httpmiddleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TooLargeMessage is returned with 413 responses.
const TooLargeMessage = "Upload too large. Use camera snapshot (auto-compress) or upload smaller image."

// MaxBodySize caps request bodies at limit bytes. Requests that declare a
// larger Content-Length are rejected before the handler runs; others fail
// while the handler reads the body, which IsTooLarge detects.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": TooLargeMessage})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// IsTooLarge reports whether err came from reading past the body limit.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
