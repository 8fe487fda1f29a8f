package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/platform/apierr"
	"github.com/yungbote/mockly-backend/internal/services"
)

type APIError struct {
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Expected *int64 `json:"expected,omitempty"`
	Actual   *int64 `json:"actual,omitempty"`
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

// RespondAPIError maps typed service errors to their status and code. Anything
// untyped is a 500 under fallbackCode.
func RespondAPIError(c *gin.Context, err error, fallbackCode string) {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		_ = c.Error(err)
		RespondError(c, http.StatusInternalServerError, fallbackCode, errors.New("internal server error"))
		return
	}
	body := APIError{Message: ae.Error(), Code: ae.Code}
	var uve *services.UploadVerificationError
	if errors.As(err, &uve) {
		expected, actual := uve.Expected, uve.Actual
		body.Expected, body.Actual = &expected, &actual
	}
	c.JSON(apierr.StatusOf(err), ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
