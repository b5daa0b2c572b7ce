package credentials

import (
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// VerificationCode is a six digit, single use, attempt limited secret
// correlated to an opaque token.
type VerificationCode struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	Attempts  int       `json:"attempts"`
}

// IsExpired reports whether the code is past its expiry at now.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsActive reports whether the code is unused and unexpired at now.
func (c *VerificationCode) IsActive(now time.Time) bool {
	return !c.Used && !c.IsExpired(now)
}

// IssuedCode is what Issue hands back to the caller.
type IssuedCode struct {
	Token     string
	Code      string
	Email     string
	ExpiresAt time.Time
}

// VerifyStatus is the closed set of verification results.
type VerifyStatus int

const (
	VerifyNotFound VerifyStatus = iota
	VerifyExpired
	VerifyAlreadyUsed
	VerifyAttemptsExceeded
	VerifyMismatch
	VerifySuccess
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyNotFound:
		return "not_found"
	case VerifyExpired:
		return "expired"
	case VerifyAlreadyUsed:
		return "already_used"
	case VerifyAttemptsExceeded:
		return "attempts_exceeded"
	case VerifyMismatch:
		return "mismatch"
	case VerifySuccess:
		return "success"
	default:
		return fmt.Sprintf("verify_status(%d)", int(s))
	}
}

// VerifyOutcome is the result of a code verification. RemainingAttempts is
// set for VerifyMismatch, Email and Token for VerifySuccess.
type VerifyOutcome struct {
	Status            VerifyStatus
	RemainingAttempts int
	Email             string
	Token             string
}

// OK reports whether the verification succeeded.
func (o VerifyOutcome) OK() bool {
	return o.Status == VerifySuccess
}

// Err converts a failed outcome into a categorized error so transports can
// render it without inspecting the status. It returns nil on success.
func (o VerifyOutcome) Err() error {
	switch o.Status {
	case VerifySuccess:
		return nil
	case VerifyNotFound:
		return goerrors.New("invalid verification code", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithTextCode(TextCodeCodeNotFound)
	case VerifyExpired:
		return goerrors.New("verification code has expired", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeCodeExpired)
	case VerifyAlreadyUsed:
		return goerrors.New("verification code has already been used", goerrors.CategoryConflict).
			WithCode(goerrors.CodeConflict).
			WithTextCode(TextCodeCodeAlreadyUsed)
	case VerifyAttemptsExceeded:
		return goerrors.New("too many verification attempts", goerrors.CategoryRateLimit).
			WithTextCode(TextCodeCodeAttemptsExceeded)
	default:
		return goerrors.New("verification code does not match", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeCodeMismatch).
			WithMetadata(map[string]any{"remaining_attempts": o.RemainingAttempts})
	}
}
