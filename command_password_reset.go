package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type ResetPasswordMessage struct {
	Token       string `json:"token" example:"eyJhbGciOiJIUzI1NiJ9..." doc:"Password recovery credential"`
	NewPassword string `json:"new_password" example:"NewPassword123!" doc:"New password"`
}

func (m ResetPasswordMessage) Type() string { return "credentials.password.reset" }

// Validate checks the message payload.
func (m ResetPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.NewPassword, passwordRules()...),
	)
}

// ResetPasswordHandler sets a new password for the account named by a
// password recovery credential and then revokes the credential.
type ResetPasswordHandler struct {
	directory Directory
	tokens    *TokenAuthority
	activity  ActivitySink
	logger    Logger
}

// NewResetPasswordHandler creates a handler with sane defaults.
func NewResetPasswordHandler(directory Directory, tokens *TokenAuthority) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		directory: directory,
		tokens:    tokens,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *ResetPasswordHandler) WithActivitySink(sink ActivitySink) *ResetPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResetPasswordHandler) WithLogger(logger Logger) *ResetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, msg ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, msg ResetPasswordMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid password reset request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := requirePurpose(ctx, h.tokens, msg.Token, PurposePasswordRecovery)
	if err != nil {
		return err
	}

	if claims.Email == "" {
		return ErrTokenMalformed
	}

	user, err := h.directory.FindByEmail(ctx, claims.Email)
	if err != nil {
		if isUserNotFound(err) {
			return ErrUserNotFound
		}
		return rewrap(err, "failed to look up account for password reset")
	}

	if err := ComparePasswordAndHash(msg.NewPassword, user.PasswordHash); err == nil {
		return ErrPasswordUnchanged
	}

	hash, err := HashPassword(msg.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.directory.UpdatePassword(ctx, user.Email, hash); err != nil {
		return rewrap(err, "failed to update password")
	}

	if _, err := h.tokens.Revoke(ctx, msg.Token); err != nil {
		h.logger.Warn("failed to revoke recovery credential after reset: %v", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Subject:   user.Email,
		Outcome:   ActivityOutcomeSuccess,
		Metadata: map[string]any{
			"user_id": user.ID,
		},
	})

	return nil
}

// requirePurpose checks credential with Inspect and returns its claims when
// it carries the expected purpose.
func requirePurpose(ctx context.Context, tokens *TokenAuthority, credential string, purpose Purpose) (*Claims, error) {
	if err := tokens.Inspect(ctx, credential); err != nil {
		return nil, err
	}

	claims, err := tokens.Claims(credential)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != purpose {
		return nil, ErrTokenPurposeMismatch
	}
	return claims, nil
}
