package credentials

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type LogoutMessage struct {
	Token string `json:"token" doc:"Credential to revoke"`
}

func (m LogoutMessage) Type() string { return "credentials.logout" }

// Validate checks the message payload.
func (m LogoutMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
	)
}

// LogoutHandler revokes the presented credential.
type LogoutHandler struct {
	tokens   *TokenAuthority
	activity ActivitySink
	logger   Logger
}

// NewLogoutHandler creates a handler with sane defaults.
func NewLogoutHandler(tokens *TokenAuthority) *LogoutHandler {
	return &LogoutHandler{
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit revocation events.
func (h *LogoutHandler) WithActivitySink(sink ActivitySink) *LogoutHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *LogoutHandler) WithLogger(logger Logger) *LogoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LogoutHandler) Execute(ctx context.Context, msg LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *LogoutHandler) execute(ctx context.Context, msg LogoutMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid logout request")
	}

	claims, err := h.tokens.Revoke(ctx, msg.Token)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventCredentialRevoked,
		Subject:   claims.Subject(),
		Outcome:   ActivityOutcomeSuccess,
		Metadata: map[string]any{
			"purpose": claims.Purpose.String(),
		},
	})
	return nil
}
