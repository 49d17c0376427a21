package cache

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware caches the response of a route with a :slug parameter. Requests
// for which bypass returns true (e.g. a logged-in owner who also sees drafts)
// are neither served from nor written to the cache.
func (c *Cache) Middleware(bypass func(*gin.Context) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		slug := ctx.Param("slug")
		if ctx.Request.Method != http.MethodGet || slug == "" || (bypass != nil && bypass(ctx)) {
			ctx.Next()
			return
		}

		if cached, found := c.Read(slug); found {
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			ctx.Abort()
			return
		}

		ctx.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: ctx.Writer,
			body:           bytes.NewBuffer(nil),
		}
		ctx.Writer = writer

		ctx.Next()

		// Only cache successful JSON responses
		if ctx.Writer.Status() == http.StatusOK &&
			strings.HasPrefix(ctx.Writer.Header().Get("Content-Type"), "application/json") {
			c.Write(slug, writer.body.Bytes())
		}
	}
}
