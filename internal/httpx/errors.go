package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/storefront/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
// swagger:model ErrorBody
type ErrorBody struct {
	Error   string `json:"error" example:"insufficient_stock"`
	Message string `json:"message" example:"insufficient stock for Mouse: 1 available, 2 requested"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindPaymentNotConfirmed:
		return http.StatusPaymentRequired
	case apperr.KindNotFound, apperr.KindProductNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail aborts the request with the JSON body for err. Internal failures keep
// their detail in the access log only.
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindPersistence || kind == apperr.KindGatewayUnavailable {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(StatusOf(kind), ErrorBody{Error: string(kind), Message: apperr.Message(err)})
}

// BadRequest is shorthand for a validation failure on request decoding.
func BadRequest(c *gin.Context, msg string) {
	Fail(c, apperr.Validation("%s", msg))
}
