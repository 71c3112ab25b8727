package auth

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateEmail   = "duplicate_email"
	TextCodeUnauthorized     = "unauthorized"
	TextCodeForbidden        = "forbidden"
	TextCodeAccountNotFound  = "account_not_found"
	TextCodePasswordMismatch = "password_mismatch"
	TextCodeSamePassword     = "same_password"
	TextCodeResetNotFound    = "reset_token_not_found"
	TextCodeResetAlreadyUsed = "reset_token_already_used"
	TextCodeResetExpired     = "reset_token_expired"
	TextCodeDeliveryFailed   = "delivery_failed"
	TextCodeTokenExpired     = "token_expired"
	TextCodeTokenMalformed   = "token_malformed"
)

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrUnauthorized covers bad credentials and missing or invalid session tokens.
var ErrUnauthorized = errors.New("incorrect email or password", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned for authenticated callers without the required role.
var ErrForbidden = errors.New("reserved for administrators", errors.CategoryAuth).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned when an account lookup misses.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrPasswordMismatch is returned when the password confirmation differs.
var ErrPasswordMismatch = errors.New("password confirmation does not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrSamePassword is returned when the new password equals the current one.
var ErrSamePassword = errors.New("new password must differ from the current password", errors.CategoryValidation).
	WithTextCode(TextCodeSamePassword).
	WithCode(errors.CodeBadRequest)

// ErrResetTokenNotFound is returned for unknown reset token strings.
var ErrResetTokenNotFound = errors.New("invalid reset token", errors.CategoryNotFound).
	WithTextCode(TextCodeResetNotFound).
	WithCode(errors.CodeNotFound)

// ErrResetTokenUsed is returned when a reset token has already been consumed.
// The used check precedes the expiry check; callers rely on that precedence.
var ErrResetTokenUsed = errors.New("reset token has already been used", errors.CategoryConflict).
	WithTextCode(TextCodeResetAlreadyUsed).
	WithCode(errors.CodeConflict)

// ErrResetTokenExpired is returned when a reset token is past its expiry.
var ErrResetTokenExpired = errors.New("reset token has expired", errors.CategoryValidation).
	WithTextCode(TextCodeResetExpired).
	WithCode(errors.CodeBadRequest)

// ErrDeliveryFailed is returned when the reset email could not be dispatched
// and the provisioning transaction was rolled back.
var ErrDeliveryFailed = errors.New("unable to deliver reset email", errors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(errors.CodeInternal)

// ErrTokenExpired is returned for session tokens past their validity window.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers signature mismatches, structural corruption, and
// missing subject claims.
var ErrTokenMalformed = errors.New("invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is kept close to bcrypt's sentinel so verification
// failures and malformed stored hashes surface the same way.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest)
