package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
)

type APIError struct {
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// StatusForCode is the HTTP status each aggregate error code maps to.
func StatusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusUnprocessableEntity
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeForbidden:
		return http.StatusForbidden
	case domainagg.CodeConflict, domainagg.CodeInvariantViolation:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondAggregateError renders an aggregate error. Internal failures keep
// their cause out of the body.
func RespondAggregateError(c *gin.Context, err error) {
	aggErr, ok := domainagg.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{Message: "internal error", Code: string(domainagg.CodeInternal)}})
		return
	}
	status := StatusForCode(aggErr.Code)
	msg := aggErr.Message
	if status == http.StatusInternalServerError || msg == "" {
		msg = http.StatusText(status)
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(aggErr.Code),
			Reason:  aggErr.Reason,
			Fields:  aggErr.Fields,
		},
	})
}
