package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/thales"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"` // HSM error code, when the HSM refused the command.
	Details   any    `json:"details,omitempty"`
}

type Handler struct {
	client *thales.Client
	log    logrus.FieldLogger
}

func NewHandler(client *thales.Client, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{client: client, log: log}
}

// statusOf maps a gateway error to an HTTP status.
func statusOf(err error) int {
	var connErr *hsm.ConnectionError
	switch {
	case errors.Is(err, thales.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, hsm.ErrHsm):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hsm.ErrHsmTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &connErr), errors.Is(err, hsm.ErrSessionClosed), errors.Is(err, hsm.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusOf(err)
	body := ErrorResponse{Status: status, Error: err.Error()}

	var hsmErr *hsm.HsmError
	if errors.As(err, &hsmErr) {
		body.ErrorCode = string(hsmErr.Code)
		body.Details = hsmErr.Code.Verbose()
	}

	entry := h.log.WithField("op", op).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	c.JSON(status, body)
}

// badRequest reports a body that could not be bound. Validation failures are
// listed per field.
func badRequest(c *gin.Context, err error) {
	body := ErrorResponse{Status: http.StatusBadRequest, Error: "invalid request", Details: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = "must satisfy " + fe.Tag()
		}
		body.Details = fields
	}
	c.JSON(http.StatusBadRequest, body)
}
