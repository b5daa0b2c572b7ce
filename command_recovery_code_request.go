package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type RequestRecoveryCodeMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	OnResponse func(resp *RequestRecoveryCodeResponse)
}

func (m RequestRecoveryCodeMessage) Type() string { return "credentials.recovery.request_code" }

// Validate checks the message payload.
func (m RequestRecoveryCodeMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, emailRules()...),
	)
}

// RequestRecoveryCodeResponse reports the outcome. Issued is false when the
// email is unknown; callers must answer the same way in both cases.
type RequestRecoveryCodeResponse struct {
	Email             string
	Token             string
	ExpirationMinutes int
	Issued            bool
}

// RequestRecoveryCodeHandler issues a recovery code for a known account and
// mails it.
type RequestRecoveryCodeHandler struct {
	directory Directory
	ledger    *CodeLedger
	notifier  Notifier
	activity  ActivitySink
	logger    Logger
}

// NewRequestRecoveryCodeHandler creates a handler with sane defaults.
func NewRequestRecoveryCodeHandler(directory Directory, ledger *CodeLedger, notifier Notifier) *RequestRecoveryCodeHandler {
	return &RequestRecoveryCodeHandler{
		directory: directory,
		ledger:    ledger,
		notifier:  notifier,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit recovery events.
func (h *RequestRecoveryCodeHandler) WithActivitySink(sink ActivitySink) *RequestRecoveryCodeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestRecoveryCodeHandler) WithLogger(logger Logger) *RequestRecoveryCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RequestRecoveryCodeHandler) Execute(ctx context.Context, msg RequestRecoveryCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recovery code request",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *RequestRecoveryCodeHandler) execute(ctx context.Context, msg RequestRecoveryCodeMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid recovery code request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &RequestRecoveryCodeResponse{
		Email:             msg.Email,
		ExpirationMinutes: h.ledger.ExpirationMinutes(),
	}

	user, err := h.directory.FindByEmail(ctx, msg.Email)
	if err != nil {
		if isUserNotFound(err) {
			h.logger.Debug("recovery code requested for unknown account")
			h.respond(msg, resp)
			return nil
		}
		return rewrap(err, "failed to look up account for recovery")
	}

	issued, err := h.ledger.Issue(ctx, user.Email)
	if err != nil {
		return rewrap(err, "failed to issue recovery code")
	}

	err = h.notifier.SendPasswordRecoveryCodeEmail(ctx, user.Email, RecoveryCodeEmail{
		Username:          user.Username,
		Token:             issued.Token,
		Code:              issued.Code,
		ExpirationMinutes: h.ledger.ExpirationMinutes(),
	})
	if err != nil {
		h.record(ctx, user.Email, ActivityOutcomeFailure)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send recovery code email")
	}

	resp.Token = issued.Token
	resp.Issued = true
	h.record(ctx, user.Email, ActivityOutcomeSuccess)
	h.respond(msg, resp)
	return nil
}

func (h *RequestRecoveryCodeHandler) respond(msg RequestRecoveryCodeMessage, resp *RequestRecoveryCodeResponse) {
	if msg.OnResponse != nil {
		msg.OnResponse(resp)
	}
}

func (h *RequestRecoveryCodeHandler) record(ctx context.Context, email, outcome string) {
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRecoveryCodeRequested,
		Subject:   email,
		Outcome:   outcome,
	})
}
