package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/book-catalog/internal/catalog"
	"github.com/snnyvrz/book-catalog/internal/validation"
)

const internalErrorMessage = "Internal server error"

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, validation.ErrorResponse{
		Code:    code,
		Message: message,
		Errors:  nil,
	})
}

func writeNotFound(c *gin.Context) {
	writeError(c, http.StatusNotFound,
		"BOOK_NOT_FOUND",
		"Book not found",
	)
}

// writeServiceError maps the catalog error taxonomy onto HTTP. Storage
// details stay in the log; the client only sees failCode.
func writeServiceError(c *gin.Context, err error, failCode string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]validation.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, validation.FieldError{
				Field:   f.Field,
				Rule:    f.Rule,
				Message: f.Message,
			})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, validation.Failed(fields...))
	case errors.Is(err, catalog.ErrNotFound):
		writeNotFound(c)
	default:
		writeError(c, http.StatusInternalServerError, failCode, internalErrorMessage)
	}
}
