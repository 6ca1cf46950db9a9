package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrPortalNotFound    = errors.New("portal not found")
	ErrInvalidNonce      = errors.New("invalid nonce")
	ErrAlreadyBound      = errors.New("portal already bound")
	ErrAssetInvalid      = errors.New("asset identifier does not resolve to a token")
	ErrConfiguration     = errors.New("portal configuration error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNetwork           = errors.New("network error")
	ErrPlatform          = errors.New("chat platform error")
	ErrInvitationExists  = errors.New("invitation token already pending")
)

// Error codes returned to API callers
const (
	CodeBadRequest         = "bad_request"
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeInvalidPortal      = "invalid_portal"
	CodeAlreadyBound       = "already_bound"
	CodeConfiguration      = "configuration_error"
	CodeInsufficientFunds  = "insufficient_funds"
	CodeNetwork            = "network_error"
	CodePlatform           = "platform_error"
	CodeWalletAuthRequired = "wallet_auth_required"
	CodeInternalError      = "internal_error"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// InsufficientFunds is user-facing and retryable once the wallet holds enough of the asset.
func InsufficientFunds(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeInsufficientFunds, message, ErrInsufficientFunds)
}

// Configuration is admin-facing; the portal must be reconfigured before a retry can succeed.
func Configuration(message string, err error) *AppError {
	if err == nil {
		err = ErrConfiguration
	}
	return NewAppError(http.StatusInternalServerError, CodeConfiguration, message, err)
}

// Network marks a transient upstream failure that is safe to retry.
func Network(message string, err error) *AppError {
	if err == nil {
		err = ErrNetwork
	}
	return NewAppError(http.StatusBadGateway, CodeNetwork, message, err)
}

// Platform marks a chat platform rejection, usually missing bot permissions.
func Platform(message string, err error) *AppError {
	if err == nil {
		err = ErrPlatform
	}
	return NewAppError(http.StatusBadGateway, CodePlatform, message, err)
}


// FromDomain maps a sentinel from the gating core onto the structured API error.
func FromDomain(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrPortalNotFound), errors.Is(err, ErrInvalidNonce):
		return NewAppError(http.StatusNotFound, CodeInvalidPortal, "portal not found", err)
	case errors.Is(err, ErrAlreadyBound):
		return NewAppError(http.StatusConflict, CodeAlreadyBound, "portal is already linked", err)
	case errors.Is(err, ErrInsufficientFunds):
		return InsufficientFunds("wallet does not hold the required tokens")
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrAssetInvalid):
		return Configuration("Configuration error: the token address is invalid.", err)
	case errors.Is(err, ErrNetwork):
		return Network("upstream service unavailable, please retry", err)
	case errors.Is(err, ErrPlatform):
		return Platform("chat platform rejected the request", err)
	case errors.Is(err, ErrForbidden):
		return NewAppError(http.StatusForbidden, CodeForbidden, "forbidden", err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized", err)
	case errors.Is(err, ErrInvalidInput):
		return NewAppError(http.StatusBadRequest, CodeInvalidInput, err.Error(), err)
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, "resource not found", err)
	}
	return InternalError(err)
}
