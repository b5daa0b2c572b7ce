package credentials

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Config exposes the settings the credential components read at
// construction time.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetRecoveryTokenTTL() time.Duration
	GetCodeExpiration() time.Duration
	GetCodeMaxAttempts() int
	GetPendingRegistrationTTL() time.Duration
	GetRevocationBackend() string
}

// Logger is the logging contract used across the package.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Notifier delivers the outbound messages of the recovery and signup flows.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordRecoveryCodeEmail(ctx context.Context, email string, msg RecoveryCodeEmail) error
	SendWelcomeEmail(ctx context.Context, email, username string) error
	SendUsernameReminderEmail(ctx context.Context, email, username string) error
}

// RecoveryCodeEmail is the payload of a password recovery code message.
type RecoveryCodeEmail struct {
	Username          string
	Token             string
	Code              string
	ExpirationMinutes int
}

// DirectoryUser is the durable user record as seen by the flows.
type DirectoryUser struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
}

// Directory is the durable user store. Lookups return ErrUserNotFound when
// no record matches.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*DirectoryUser, error)
	FindByUsername(ctx context.Context, username string) (*DirectoryUser, error)
	CreateUser(ctx context.Context, user DirectoryUser) (*DirectoryUser, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CREDENTIALS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CREDENTIALS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func isUserNotFound(err error) bool {
	return goerrors.Is(err, ErrUserNotFound) || goerrors.IsNotFound(err)
}
