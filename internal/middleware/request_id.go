package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/snnyvrz/book-catalog/internal/logging"
)

const RequestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// RequestID propagates an incoming request id or generates one. The id is
// echoed in the response header and a logger carrying it is put into the
// request context.
func RequestID(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), requestIDContextKey{}, id)
		ctx = logging.ContextWithLogger(ctx, logging.FromContext(ctx, base).With(slog.String("request_id", id)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
