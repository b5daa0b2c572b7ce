package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type RemindUsernameMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	OnResponse func(resp *RemindUsernameResponse)
}

func (m RemindUsernameMessage) Type() string { return "credentials.username.remind" }

// Validate checks the message payload.
func (m RemindUsernameMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, emailRules()...),
	)
}

// RemindUsernameResponse reports whether a reminder went out. Callers must
// answer the same way whether Sent is set or not.
type RemindUsernameResponse struct {
	Email string
	Sent  bool
}

// RemindUsernameHandler mails the username registered under an email.
type RemindUsernameHandler struct {
	directory Directory
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
}

// NewRemindUsernameHandler creates a handler with sane defaults.
func NewRemindUsernameHandler(directory Directory, notifier Notifier) *RemindUsernameHandler {
	return &RemindUsernameHandler{
		directory: directory,
		notifier:  notifier,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit reminder events.
func (h *RemindUsernameHandler) WithActivitySink(sink ActivitySink) *RemindUsernameHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RemindUsernameHandler) WithLogger(logger Logger) *RemindUsernameHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RemindUsernameHandler) Execute(ctx context.Context, msg RemindUsernameMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during username reminder",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *RemindUsernameHandler) execute(ctx context.Context, msg RemindUsernameMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid username reminder request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RemindUsernameResponse{Email: msg.Email}

	user, err := h.directory.FindByEmail(ctx, msg.Email)
	if err != nil {
		if isUserNotFound(err) {
			h.logger.Debug("username reminder requested for unknown account")
			h.respond(msg, resp)
			return nil
		}
		return rewrap(err, "failed to look up account for username reminder")
	}

	if err := h.notifier.SendUsernameReminderEmail(ctx, user.Email, user.Username); err != nil {
		h.record(ctx, user.Email, ActivityOutcomeFailure)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send username reminder email")
	}

	resp.Sent = true
	h.record(ctx, user.Email, ActivityOutcomeSuccess)
	h.respond(msg, resp)
	return nil
}

func (h *RemindUsernameHandler) respond(msg RemindUsernameMessage, resp *RemindUsernameResponse) {
	if msg.OnResponse != nil {
		msg.OnResponse(resp)
	}
}

func (h *RemindUsernameHandler) record(ctx context.Context, email, outcome string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUsernameReminded,
		Subject:   email,
		Outcome:   outcome,
	})
}
