package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	cedomain "github.com/summitmech/invoicepay/internal/computerease/domain"
	invoicedomain "github.com/summitmech/invoicepay/internal/invoice/domain"
	paymentdomain "github.com/summitmech/invoicepay/internal/payment/domain"
	"github.com/summitmech/invoicepay/internal/payment/stripe"
)

var ErrUnauthorized = errors.New("unauthorized")

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts deferred handler errors into the
// response taxonomy. Upstream failure detail leaks only in debug mode.
func ErrorHandlingMiddleware(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err, debug)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error, debug bool) (int, errorPayload) {
	errType, code := classifyError(err)

	switch errType {
	case "validation_error":
		return http.StatusBadRequest, errorPayload{
			Type: errType, Code: code, Message: validationMessage(code),
		}
	case "not_found":
		return http.StatusNotFound, errorPayload{
			Type: errType, Code: code, Message: "invoice not found",
		}
	case "unauthorized":
		return http.StatusUnauthorized, errorPayload{
			Type: errType, Code: code, Message: "unauthorized",
		}
	case "already_paid":
		return http.StatusBadRequest, errorPayload{
			Type: errType, Code: code, Message: "invoice is already paid",
		}
	case "conflict":
		return http.StatusConflict, errorPayload{
			Type: errType, Code: code, Message: "conflict",
		}
	case "service_unavailable":
		return http.StatusServiceUnavailable, errorPayload{
			Type: errType, Code: code, Message: "service temporarily unavailable",
		}
	default:
		message := "internal server error"
		if debug {
			message = err.Error()
		}
		return http.StatusInternalServerError, errorPayload{
			Type: "upstream_error", Code: code, Message: message,
		}
	}
}

// classifyError is shared by the response mapper and the request logger.
func classifyError(err error) (errType, code string) {
	switch {
	case errors.Is(err, invoicedomain.ErrMissingFields),
		errors.Is(err, invoicedomain.ErrInvalidNumber),
		errors.Is(err, invoicedomain.ErrInvalidEmail),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrInvalidBankDetails),
		errors.Is(err, paymentdomain.ErrMissingIntent),
		errors.Is(err, paymentdomain.ErrPaymentNotCompleted),
		errors.Is(err, cedomain.ErrEmptyCSV):
		return "validation_error", err.Error()

	case errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found", invoicedomain.ErrNotFound.Error()

	case errors.Is(err, ErrUnauthorized):
		return "unauthorized", "unauthorized"

	case errors.Is(err, invoicedomain.ErrAlreadyPaid):
		return "already_paid", invoicedomain.ErrAlreadyPaid.Error()

	case errors.Is(err, invoicedomain.ErrDuplicateEntry):
		return "conflict", invoicedomain.ErrDuplicateEntry.Error()

	case errors.Is(err, paymentdomain.ErrServiceUnavailable),
		errors.Is(err, cedomain.ErrNotConfigured):
		return "service_unavailable", err.Error()

	default:
		var apiErr *stripe.APIError
		if errors.As(err, &apiErr) {
			return "upstream_error", "stripe_error"
		}
		return "upstream_error", "internal_error"
	}
}

func classifyErrorForLog(err error) (string, string) {
	return classifyError(err)
}

func validationMessage(code string) string {
	switch code {
	case invoicedomain.ErrMissingFields.Error():
		return "invoice number and email are required"
	case invoicedomain.ErrInvalidNumber.Error():
		return "invoice number format is invalid"
	case invoicedomain.ErrInvalidEmail.Error():
		return "email address is invalid"
	case paymentdomain.ErrInvalidBankDetails.Error():
		return "routing number must be 9 digits and account number 4-17 digits"
	case paymentdomain.ErrMissingIntent.Error():
		return "payment_intent_id is required"
	case paymentdomain.ErrPaymentNotCompleted.Error():
		return "payment has not completed"
	case cedomain.ErrEmptyCSV.Error():
		return "csv body is empty or has no recognized columns"
	default:
		return "invalid request"
	}
}
