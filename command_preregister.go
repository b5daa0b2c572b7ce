package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type PreregisterMessage struct {
	Username   string `json:"username" example:"pepe_rone" doc:"Requested username"`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	Password   string `json:"password" example:"Secret123!" doc:"Password"`
	OnResponse func(resp *PreregisterResponse)
}

func (m PreregisterMessage) Type() string { return "credentials.registration.preregister" }

// Validate checks the message payload.
func (m PreregisterMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username, usernameRules()...),
		validation.Field(&m.Email, emailRules()...),
		validation.Field(&m.Password, passwordRules()...),
	)
}

type PreregisterResponse struct {
	Username          string
	Email             string
	VerificationToken string
	ExpiresAt         time.Time
}

// PreregisterHandler stages a signup and mails the verification credential.
type PreregisterHandler struct {
	directory Directory
	pending   *PendingStore
	tokens    *TokenAuthority
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// NewPreregisterHandler creates a handler with sane defaults.
func NewPreregisterHandler(directory Directory, pending *PendingStore, tokens *TokenAuthority, notifier Notifier) *PreregisterHandler {
	return &PreregisterHandler{
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
func (h *PreregisterHandler) WithActivitySink(sink ActivitySink) *PreregisterHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *PreregisterHandler) WithLogger(logger Logger) *PreregisterHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the clock used to stamp staged records.
func (h *PreregisterHandler) WithClock(now func() time.Time) *PreregisterHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *PreregisterHandler) Execute(ctx context.Context, msg PreregisterMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during preregistration",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *PreregisterHandler) execute(ctx context.Context, msg PreregisterMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid preregistration request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.ensureAvailable(ctx, msg); err != nil {
		return err
	}

	token, err := h.tokens.IssueEmailVerificationToken(msg.Username, msg.Email)
	if err != nil {
		return rewrap(err, "failed to issue verification credential")
	}

	hash, err := HashPassword(msg.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	now := h.now()
	record := &PendingRegistration{
		Username:          msg.Username,
		Email:             msg.Email,
		PasswordHash:      hash,
		VerificationToken: token,
		CreatedAt:         now,
		TokenExpiration:   now.Add(h.pending.TTL()),
	}

	if err := h.pending.Save(ctx, record); err != nil {
		return rewrap(err, "failed to stage registration")
	}

	if err := h.notifier.SendVerificationEmail(ctx, msg.Email, token); err != nil {
		if derr := h.pending.DeleteByToken(ctx, token); derr != nil {
			h.logger.Error("failed to remove staged registration after email failure: %v", derr)
		}
		h.record(ctx, msg, ActivityOutcomeFailure)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send verification email")
	}

	h.record(ctx, msg, ActivityOutcomeSuccess)

	if msg.OnResponse != nil {
		msg.OnResponse(&PreregisterResponse{
			Username:          record.Username,
			Email:             record.Email,
			VerificationToken: token,
			ExpiresAt:         record.TokenExpiration,
		})
	}
	return nil
}

func (h *PreregisterHandler) ensureAvailable(ctx context.Context, msg PreregisterMessage) error {
	if _, err := h.directory.FindByEmail(ctx, msg.Email); err == nil {
		return ErrIdentityTaken
	} else if !isUserNotFound(err) {
		return rewrap(err, "failed to check email availability")
	}

	if _, err := h.directory.FindByUsername(ctx, msg.Username); err == nil {
		return ErrIdentityTaken
	} else if !isUserNotFound(err) {
		return rewrap(err, "failed to check username availability")
	}

	exists, err := h.pending.ExistsByEmail(ctx, msg.Email)
	if err != nil {
		return rewrap(err, "failed to check pending registrations")
	}
	if exists {
		return ErrDuplicatePending
	}

	exists, err = h.pending.ExistsByUsername(ctx, msg.Username)
	if err != nil {
		return rewrap(err, "failed to check pending registrations")
	}
	if exists {
		return ErrDuplicatePending
	}
	return nil
}

func (h *PreregisterHandler) record(ctx context.Context, msg PreregisterMessage, outcome string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegistrationStaged,
		Subject:   msg.Email,
		Outcome:   outcome,
		Metadata: map[string]any{
			"username": msg.Username,
		},
	})
}
