package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindRateLimited      Kind = "rate_limited"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// Error codes exposed in the response envelope.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeAuthRequired         = "AUTHENTICATION_REQUIRED"
	CodeForbidden            = "FORBIDDEN"
	CodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeToolNotFound         = "TOOL_NOT_FOUND"
	CodeCategoryNotFound     = "CATEGORY_NOT_FOUND"
	CodeIndustryNotFound     = "INDUSTRY_NOT_FOUND"
	CodeReviewNotFound       = "REVIEW_NOT_FOUND"
	CodeGuideNotFound        = "GUIDE_NOT_FOUND"
	CodeFavoriteNotFound     = "FAVORITE_NOT_FOUND"
	CodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	CodePlanNotFound         = "PLAN_NOT_FOUND"
	CodeUserExists           = "USER_EXISTS"
	CodeReviewExists         = "REVIEW_EXISTS"
	CodeFavoriteExists       = "FAVORITE_EXISTS"
	CodeCategoryExists       = "CATEGORY_EXISTS"
	CodeIndustryExists       = "INDUSTRY_EXISTS"
	CodeCategoryHasTools     = "CATEGORY_HAS_TOOLS"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeBillingDisabled      = "BILLING_DISABLED"
	CodeExportDisabled       = "EXPORT_DISABLED"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// Error is an application error carrying everything the envelope needs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of e with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func Validation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message, Details: details}
}

// Field is a shortcut for a validation error about a single field.
func Field(field, message string) *Error {
	return Validation("Invalid request", map[string]any{field: message})
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

func AuthenticationRequired() *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeAuthRequired, Message: "Authentication required"}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// SubscriptionRequired reports that the caller's tier is below required.
func SubscriptionRequired(required string) *Error {
	return &Error{
		Kind:    KindForbidden,
		Code:    CodeSubscriptionRequired,
		Message: fmt.Sprintf("This feature requires a %s subscription", required),
		Details: map[string]any{"required_tier": required},
	}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: "Too many requests"}
}

// Unavailable reports a dependency the service cannot work without.
func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: CodeServiceUnavailable, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Internal server error", Err: err}
}

// From coerces any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// New builds an error with an explicit kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}
