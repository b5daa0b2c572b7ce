package credentials

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed          = "TOKEN_MALFORMED"
	TextCodeTokenExpired            = "TOKEN_EXPIRED"
	TextCodeTokenRevoked            = "TOKEN_REVOKED"
	TextCodeTokenPurposeMismatch    = "TOKEN_PURPOSE_MISMATCH"
	TextCodeDuplicatePending        = "DUPLICATE_PENDING_REGISTRATION"
	TextCodeIdentityTaken           = "IDENTITY_TAKEN"
	TextCodePendingNotFound         = "PENDING_REGISTRATION_NOT_FOUND"
	TextCodeRegistrationUnverified  = "REGISTRATION_NOT_VERIFIABLE"
	TextCodePasswordUnchanged       = "PASSWORD_UNCHANGED"
	TextCodeCodeNotFound            = "VERIFICATION_CODE_NOT_FOUND"
	TextCodeCodeExpired             = "VERIFICATION_CODE_EXPIRED"
	TextCodeCodeAlreadyUsed         = "VERIFICATION_CODE_ALREADY_USED"
	TextCodeCodeAttemptsExceeded    = "VERIFICATION_CODE_ATTEMPTS_EXCEEDED"
	TextCodeCodeMismatch            = "VERIFICATION_CODE_MISMATCH"
	TextCodeUserNotFound            = "USER_NOT_FOUND"
	TextCodeMismatchedHashAndPasswd = "MISMATCHED_HASH_AND_PASSWORD"
	TextCodeUnknownPurpose          = "UNKNOWN_PURPOSE"
)

// ErrTokenMalformed is returned for credentials that fail to parse, carry a
// bad signature or an unknown purpose.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenExpired is returned for well formed credentials past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenRevoked is returned for credentials present in the revocation registry.
var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenRevoked)

// ErrTokenPurposeMismatch is returned when a valid credential is presented to
// a flow that expects a different purpose.
var ErrTokenPurposeMismatch = goerrors.New("token purpose does not match operation", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeTokenPurposeMismatch)

var ErrDuplicatePending = goerrors.New("a pending registration already exists for this identity", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeDuplicatePending)

var ErrIdentityTaken = goerrors.New("email or username is already registered", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeIdentityTaken)

var ErrPendingRegistrationNotFound = goerrors.New("pending registration not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodePendingNotFound)

var ErrRegistrationNotVerifiable = goerrors.New("pending registration can no longer be verified", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeRegistrationUnverified)

var ErrPasswordUnchanged = goerrors.New("new password must differ from the current one", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodePasswordUnchanged)

var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeUserNotFound)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeMismatchedHashAndPasswd)

// TextCodeOf returns the text code carried by err, or an empty string.
func TextCodeOf(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsTokenExpiredError reports whether err signals an expired credential.
func IsTokenExpiredError(err error) bool {
	return TextCodeOf(err) == TextCodeTokenExpired
}

// IsMalformedError reports whether err signals a malformed credential.
func IsMalformedError(err error) bool {
	return TextCodeOf(err) == TextCodeTokenMalformed
}

// IsRevokedError reports whether err signals a revoked credential.
func IsRevokedError(err error) bool {
	return TextCodeOf(err) == TextCodeTokenRevoked
}
