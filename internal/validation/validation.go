package validation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidRequest   = "INVALID_REQUEST"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// BindAndValidate binds the request body according to its content type
// (JSON, urlencoded or multipart form) and aborts with 400 on failure.
func BindAndValidate(c *gin.Context, dst any) bool {
	resp, ok := Bind(c, dst)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
	}
	return ok
}

// Bind is BindAndValidate without writing the response, for handlers that
// have another check to make before reporting the failure.
func Bind(c *gin.Context, dst any) (ErrorResponse, bool) {
	err := c.ShouldBind(dst)
	if err == nil {
		return ErrorResponse{}, true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return formatValidationErrors(verrs), false
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return Failed(FieldError{
			Field:   "image",
			Rule:    "max",
			Message: "image is too large",
		}), false
	}

	return ErrorResponse{
		Code:    CodeInvalidRequest,
		Message: "invalid request body",
		Errors: []FieldError{
			{
				Field:   "",
				Rule:    "syntax",
				Message: err.Error(),
			},
		},
	}, false
}

// Failed builds the response used for every field level validation failure.
func Failed(fields ...FieldError) ErrorResponse {
	return ErrorResponse{
		Code:    CodeValidationFailed,
		Message: "validation failed",
		Errors:  fields,
	}
}

func formatValidationErrors(verrs validator.ValidationErrors) ErrorResponse {
	fields := make([]FieldError, 0, len(verrs))

	for _, fe := range verrs {
		jsonField := toJSONFieldName(fe.Field())
		fields = append(fields, FieldError{
			Field:   jsonField,
			Rule:    fe.Tag(),
			Message: buildMessage(jsonField, fe),
		})
	}

	return Failed(fields...)
}

func toJSONFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func buildMessage(field string, fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return field + " is required"
	}

	return field + " is invalid (" + fe.Tag() + ")"
}
