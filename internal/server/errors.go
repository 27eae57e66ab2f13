package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	documentdomain "github.com/smallbiznis/translog/internal/document/domain"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	referencedomain "github.com/smallbiznis/translog/internal/reference/domain"
	"github.com/smallbiznis/translog/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// mapError turns a domain error into a status and a client-safe payload.
// Storage and persistence error text never reaches the payload.
func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalErrorPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var uploadErr *documentdomain.UploadError
	if errors.As(err, &uploadErr) {
		return mapUploadError(uploadErr)
	}

	var assemblyErr *applicationdomain.AssemblyError
	if errors.As(err, &assemblyErr) {
		if !assemblyErr.InputError() {
			return http.StatusInternalServerError, errorPayload{
				Type:    "assembly_failed",
				Message: "application could not be saved",
			}
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   assemblyErr.Field,
				Code:    assemblyErr.Reason,
				Message: validationErrorMessage(assemblyErr.Reason),
			}},
		}
	}

	if errors.Is(err, paymentdomain.ErrSignatureVerificationFailed) {
		return http.StatusBadRequest, errorPayload{
			Type:    "signature_verification_failed",
			Message: signatureErrorMessage(err),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr), errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "request body too large",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrConflict), errors.Is(err, applicationdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrHandlerFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "handler_failed",
			Message: "event could not be processed",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, internalErrorPayload()
	}
}

func mapUploadError(err *documentdomain.UploadError) (int, errorPayload) {
	field := fmt.Sprintf("documents[%d]", err.Index)
	if err.Kind == documentdomain.KindStorageUnavailable {
		return http.StatusBadGateway, errorPayload{
			Type:    "storage_unavailable",
			Message: fmt.Sprintf("document %q could not be stored", err.Document),
		}
	}
	return http.StatusBadRequest, errorPayload{
		Type:    "validation_error",
		Message: "validation error",
		Errors: []ValidationError{{
			Field:   field,
			Code:    err.Reason,
			Message: fmt.Sprintf("document %q rejected: %s", err.Document, strings.ReplaceAll(err.Reason, "_", " ")),
		}},
	}
}

func internalErrorPayload() errorPayload {
	return errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, applicationdomain.ErrInvalidID),
		errors.Is(err, applicationdomain.ErrInvalidStatus),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, applicationdomain.ErrNotFound),
		errors.Is(err, referencedomain.ErrCountryNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, applicationdomain.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, applicationdomain.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, pagination.ErrInvalidPageToken):
		return "invalid_page_token"
	case errors.Is(err, paymentdomain.ErrInvalidProvider):
		return "invalid_provider"
	case errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidEvent):
		return "invalid_payload"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case applicationdomain.ReasonDepartureNotBeforeArrival:
		return "exit date must be after entry date"
	case applicationdomain.ReasonInvalidEntryDate, applicationdomain.ReasonInvalidExitDate,
		applicationdomain.ReasonInvalidPassengerDate:
		return "date must be formatted as YYYY-MM-DD"
	case applicationdomain.ReasonInvalidVessel:
		return "vessel name and a known vessel type are required"
	default:
		return "invalid value"
	}
}

func signatureErrorMessage(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrMissingSignature):
		return "missing signature"
	case errors.Is(err, paymentdomain.ErrMalformedSignature):
		return "malformed signature"
	case errors.Is(err, paymentdomain.ErrStaleEvent):
		return "event timestamp outside tolerance"
	default:
		return "signature mismatch"
	}
}

// classifyErrorForLog returns the error type and code recorded on the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
