package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type ConfirmRegistrationMessage struct {
	Token      string `json:"token" example:"eyJhbGciOiJIUzI1NiJ9..." doc:"Email verification credential"`
	OnResponse func(resp *ConfirmRegistrationResponse)
}

func (m ConfirmRegistrationMessage) Type() string { return "credentials.registration.confirm" }

// Validate checks the message payload.
func (m ConfirmRegistrationMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
	)
}

type ConfirmRegistrationResponse struct {
	User        *DirectoryUser
	AccessToken string
}

// ConfirmRegistrationHandler turns a verified pending registration into a
// directory user and signs them in.
type ConfirmRegistrationHandler struct {
	directory Directory
	pending   *PendingStore
	tokens    *TokenAuthority
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewConfirmRegistrationHandler creates a handler with sane defaults.
func NewConfirmRegistrationHandler(directory Directory, pending *PendingStore, tokens *TokenAuthority, notifier Notifier) *ConfirmRegistrationHandler {
	return &ConfirmRegistrationHandler{
		directory: directory,
		pending:   pending,
		tokens:    tokens,
		notifier:  notifier,
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *ConfirmRegistrationHandler) WithActivitySink(sink ActivitySink) *ConfirmRegistrationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ConfirmRegistrationHandler) WithLogger(logger Logger) *ConfirmRegistrationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used for the expiration check.
func (h *ConfirmRegistrationHandler) WithClock(now func() time.Time) *ConfirmRegistrationHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *ConfirmRegistrationHandler) Execute(ctx context.Context, msg ConfirmRegistrationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration confirmation",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *ConfirmRegistrationHandler) execute(ctx context.Context, msg ConfirmRegistrationMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid registration confirmation request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if _, err := requirePurpose(ctx, h.tokens, msg.Token, PurposeEmailVerification); err != nil {
		return err
	}

	record, err := h.pending.FindByToken(ctx, msg.Token)
	if err != nil {
		return rewrap(err, "failed to load pending registration")
	}
	if record == nil {
		return ErrPendingRegistrationNotFound
	}

	if !record.CanBeVerified(h.now()) {
		return ErrRegistrationNotVerifiable
	}

	user, err := h.directory.CreateUser(ctx, DirectoryUser{
		Username:     record.Username,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
	})
	if err != nil {
		h.record(ctx, record, ActivityOutcomeFailure)
		return rewrap(err, "failed to create user from pending registration")
	}

	if err := h.pending.DeleteByToken(ctx, record.VerificationToken); err != nil {
		h.logger.Error("failed to delete confirmed pending registration: %v", err)
		// a record left behind must not be confirmable again
		record.Verified = true
		if err := h.pending.Save(ctx, record); err != nil {
			h.logger.Error("failed to mark pending registration verified: %v", err)
		}
	}

	if _, err := h.tokens.Revoke(ctx, msg.Token); err != nil {
		h.logger.Warn("failed to revoke verification credential: %v", err)
	}

	access, err := h.tokens.IssueAccessToken(user.Username, user.ID)
	if err != nil {
		return rewrap(err, "failed to issue access credential")
	}

	if err := h.notifier.SendWelcomeEmail(ctx, user.Email, user.Username); err != nil {
		h.logger.Warn("failed to send welcome email: %v", err)
	}

	h.record(ctx, record, ActivityOutcomeSuccess)

	if msg.OnResponse != nil {
		msg.OnResponse(&ConfirmRegistrationResponse{
			User:        user,
			AccessToken: access,
		})
	}
	return nil
}

func (h *ConfirmRegistrationHandler) record(ctx context.Context, record *PendingRegistration, outcome string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegistrationConfirmed,
		Subject:   record.Email,
		Outcome:   outcome,
		Metadata: map[string]any{
			"username": record.Username,
		},
	})
}
