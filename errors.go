package goIdentity

import (
	"errors"
	"net/http"
)

// Code is the stable machine-readable identifier carried by a [ClientError].
// Codes never change once published; callers key their error mapping on them.
type Code string

const (
	CodeSignupDisabled           Code = "SIGNUP_DISABLED"
	CodeEmailExists              Code = "EMAIL_EXISTS"
	CodeUsernameExists           Code = "USERNAME_EXISTS"
	CodeUsernameEmpty            Code = "USERNAME_EMPTY"
	CodeEmailInvalid             Code = "EMAIL_INVALID"
	CodePasswordEmpty            Code = "PASSWORD_EMPTY"
	CodeUserNotFound             Code = "USER_NOT_FOUND"
	CodeInvalidToken             Code = "INVALID_TOKEN"
	CodeTokenExpired             Code = "TOKEN_EXPIRED"
	CodeAccountNotVerified       Code = "ACCOUNT_NOT_VERIFIED"
	CodeAccountDisabled          Code = "ACCOUNT_DISABLED"
	CodeWrongPassword            Code = "WRONG_PASSWORD"
	CodePasswordlessWithPassword Code = "PASSWORDLESS_WITH_PASSWORD"
	CodePasswordlessDisabled     Code = "PASSWORDLESS_DISABLED"
	CodeMissingTwoFactorCode     Code = "MISSING_2FA_CODE"
	CodeInvalidTwoFactorToken    Code = "TWOFACTOR_INVALID_TOKEN"
	CodeTwoFactorNotEnabled      Code = "TWOFACTOR_NOT_ENABLED"
	CodeSocialAccountMismatch    Code = "SOCIAL_ACCOUNT_MISMATCH"
	CodeNoSocialEmail            Code = "NO_SOCIAL_EMAIL"
	CodeAlreadyDisabled          Code = "USER_ALREADY_DISABLED"
	CodeAlreadyEnabled           Code = "USER_ALREADY_ENABLED"
)

// ClientError is a caller-caused, non-retryable rejection. It propagates
// unchanged to the caller as the final outcome of an operation. Status is the
// HTTP status class the transport layer should map it to.
type ClientError struct {
	Code    Code
	Status  int
	Message string
}

func (e *ClientError) Error() string { return e.Message }

// Sentinel client errors. Engine operations return these exact values, so
// errors.Is comparisons against them are stable.
var (
	ErrSignupDisabled           = &ClientError{Code: CodeSignupDisabled, Status: http.StatusForbidden, Message: "signup is disabled"}
	ErrEmailExists              = &ClientError{Code: CodeEmailExists, Status: http.StatusConflict, Message: "email already registered"}
	ErrUsernameExists           = &ClientError{Code: CodeUsernameExists, Status: http.StatusConflict, Message: "username already registered"}
	ErrUsernameEmpty            = &ClientError{Code: CodeUsernameEmpty, Status: http.StatusBadRequest, Message: "username required"}
	ErrEmailInvalid             = &ClientError{Code: CodeEmailInvalid, Status: http.StatusBadRequest, Message: "valid email required"}
	ErrPasswordEmpty            = &ClientError{Code: CodePasswordEmpty, Status: http.StatusBadRequest, Message: "password required"}
	ErrUserNotFound             = &ClientError{Code: CodeUserNotFound, Status: http.StatusNotFound, Message: "user not found"}
	ErrInvalidToken             = &ClientError{Code: CodeInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"}
	ErrTokenExpired             = &ClientError{Code: CodeTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"}
	ErrAccountNotVerified       = &ClientError{Code: CodeAccountNotVerified, Status: http.StatusUnauthorized, Message: "account not verified"}
	ErrAccountDisabled          = &ClientError{Code: CodeAccountDisabled, Status: http.StatusUnauthorized, Message: "account disabled"}
	ErrWrongPassword            = &ClientError{Code: CodeWrongPassword, Status: http.StatusUnauthorized, Message: "wrong password"}
	ErrPasswordlessWithPassword = &ClientError{Code: CodePasswordlessWithPassword, Status: http.StatusBadRequest, Message: "passwordless account cannot log in with a password"}
	ErrPasswordlessDisabled     = &ClientError{Code: CodePasswordlessDisabled, Status: http.StatusBadRequest, Message: "passwordless login is disabled"}
	ErrMissingTwoFactorCode     = &ClientError{Code: CodeMissingTwoFactorCode, Status: http.StatusBadRequest, Message: "two-factor code required"}
	ErrInvalidTwoFactorToken    = &ClientError{Code: CodeInvalidTwoFactorToken, Status: http.StatusUnauthorized, Message: "invalid two-factor code"}
	ErrTwoFactorNotEnabled      = &ClientError{Code: CodeTwoFactorNotEnabled, Status: http.StatusBadRequest, Message: "two-factor not enabled"}
	ErrSocialAccountMismatch    = &ClientError{Code: CodeSocialAccountMismatch, Status: http.StatusBadRequest, Message: "social account already linked to another user"}
	ErrNoSocialEmail            = &ClientError{Code: CodeNoSocialEmail, Status: http.StatusBadRequest, Message: "social profile has no email"}
	ErrAlreadyDisabled          = &ClientError{Code: CodeAlreadyDisabled, Status: http.StatusBadRequest, Message: "account already disabled"}
	ErrAlreadyEnabled           = &ClientError{Code: CodeAlreadyEnabled, Status: http.StatusBadRequest, Message: "account already enabled"}
)

// ErrEngineNotReady is returned when an Engine method is called before Build
// wired its dependencies.
var ErrEngineNotReady = errors.New("engine not initialized")

// RetryableError wraps an infrastructure fault (store unreachable, signing
// key unavailable, notification gateway down). Callers should retry a bounded
// number of times with backoff before surfacing a service-unavailable
// outcome.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string { return "identity: " + e.Op + ": " + e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is (or wraps) an infrastructure fault that
// is safe to retry.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsClientError reports whether err is a business-rule rejection and, when it
// is, returns it.
func IsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Op: op, Err: err}
}

// mapStoreErr passes client errors through untouched and wraps everything
// else as retryable.
func mapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := IsClientError(err); ok {
		return err
	}
	return retryable(op, err)
}
