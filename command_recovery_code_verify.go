package credentials

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type VerifyRecoveryCodeMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	Code       string `json:"code" example:"482193" doc:"Six digit recovery code"`
	OnResponse func(resp *VerifyRecoveryCodeResponse)
}

func (m VerifyRecoveryCodeMessage) Type() string { return "credentials.recovery.verify_code" }

// Validate checks the message payload.
func (m VerifyRecoveryCodeMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, emailRules()...),
		validation.Field(&m.Code, codeRules()...),
	)
}

// VerifyRecoveryCodeResponse carries the recovery credential that
// authorizes the password reset.
type VerifyRecoveryCodeResponse struct {
	Outcome       VerifyOutcome
	RecoveryToken string
}

// VerifyRecoveryCodeHandler checks a recovery code and, on success, mints a
// password recovery credential.
type VerifyRecoveryCodeHandler struct {
	ledger     *CodeLedger
	tokens     *TokenAuthority
	tokenHours int
	activity   ActivitySink
	logger     Logger
}

// NewVerifyRecoveryCodeHandler creates a handler with sane defaults.
func NewVerifyRecoveryCodeHandler(ledger *CodeLedger, tokens *TokenAuthority) *VerifyRecoveryCodeHandler {
	return &VerifyRecoveryCodeHandler{
		ledger:   ledger,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithRecoveryTokenHours sets the lifetime of minted recovery credentials.
// Zero keeps the authority default.
func (h *VerifyRecoveryCodeHandler) WithRecoveryTokenHours(hours int) *VerifyRecoveryCodeHandler {
	h.tokenHours = hours
	return h
}

// WithActivitySink sets the sink used to emit verification events.
func (h *VerifyRecoveryCodeHandler) WithActivitySink(sink ActivitySink) *VerifyRecoveryCodeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyRecoveryCodeHandler) WithLogger(logger Logger) *VerifyRecoveryCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyRecoveryCodeHandler) Execute(ctx context.Context, msg VerifyRecoveryCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recovery code verification",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *VerifyRecoveryCodeHandler) execute(ctx context.Context, msg VerifyRecoveryCodeMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid recovery code verification request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	outcome, err := h.ledger.VerifyByEmail(ctx, msg.Code, msg.Email)
	if err != nil {
		return rewrap(err, "failed to verify recovery code")
	}

	if !outcome.OK() {
		h.record(ctx, msg.Email, outcome)
		return outcome.Err()
	}

	token, err := h.tokens.IssuePasswordRecoveryToken(outcome.Email, h.tokenHours)
	if err != nil {
		return rewrap(err, "failed to issue recovery credential")
	}

	h.record(ctx, msg.Email, outcome)

	if msg.OnResponse != nil {
		msg.OnResponse(&VerifyRecoveryCodeResponse{
			Outcome:       outcome,
			RecoveryToken: token,
		})
	}
	return nil
}

func (h *VerifyRecoveryCodeHandler) record(ctx context.Context, email string, outcome VerifyOutcome) {
	result := ActivityOutcomeSuccess
	if !outcome.OK() {
		result = ActivityOutcomeFailure
	}
	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRecoveryCodeVerified,
		Subject:   email,
		Outcome:   result,
		Metadata: map[string]any{
			"status": outcome.Status.String(),
		},
	})
}
