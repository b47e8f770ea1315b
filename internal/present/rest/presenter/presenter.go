package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fronsciers/doci-gateway/internal/domain"
)

const (
	KindNotFound      = "not_found"
	KindValidation    = "validation_error"
	KindDuplicateCode = "duplicate_code"
	KindUnauthorized  = "unauthorized"
	KindInternal      = "internal_error"
)

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error ErrorDetail `json:"error"`
}

func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func Created(c echo.Context, payload any) error {
	return c.JSON(http.StatusCreated, payload)
}

func BadRequestMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: ErrorDetail{Kind: KindValidation, Message: msg}})
}

func Unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: ErrorDetail{Kind: KindUnauthorized, Message: msg}})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: ErrorDetail{Kind: KindNotFound, Message: msg}})
}

// FromError maps a domain error onto the envelope. Unrecognized errors are
// logged and rendered as an opaque 500 so internals never leak to callers.
func FromError(c echo.Context, err error) error {
	status, detail := classify(c, err)
	return c.JSON(status, errorResponse{Error: detail})
}

// resolveErrorResponse is the resolver's error shape; the exists flag lets
// thin clients skip parsing the envelope.
type resolveErrorResponse struct {
	Exists bool        `json:"exists"`
	Error  ErrorDetail `json:"error"`
}

func ResolveError(c echo.Context, err error) error {
	status, detail := classify(c, err)
	return c.JSON(status, resolveErrorResponse{Exists: false, Error: detail})
}

// escrow transition failures are caller mistakes against the current state,
// not internal faults
var escrowStateErrors = []error{
	domain.ErrAlreadyFunded,
	domain.ErrAmountMismatch,
	domain.ErrNotFunded,
	domain.ErrAlreadyApproved,
	domain.ErrInsufficientApprovals,
	domain.ErrAlreadyReleased,
	domain.ErrAlreadyRefunded,
}

func classify(c echo.Context, err error) (int, ErrorDetail) {
	for _, stateErr := range escrowStateErrors {
		if errors.Is(err, stateErr) {
			return http.StatusConflict, ErrorDetail{Kind: KindValidation, Message: err.Error()}
		}
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorDetail{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorDetail{Kind: KindValidation, Message: err.Error()}
	case errors.Is(err, domain.ErrDuplicateCode):
		return http.StatusConflict, ErrorDetail{Kind: KindDuplicateCode, Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorDetail{Kind: KindUnauthorized, Message: err.Error()}
	default:
		slog.ErrorContext(c.Request().Context(), "internal error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		return http.StatusInternalServerError, ErrorDetail{Kind: KindInternal, Message: "internal server error"}
	}
}
