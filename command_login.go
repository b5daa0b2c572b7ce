package credentials

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type LoginMessage struct {
	Identifier string `json:"identifier" example:"pepe.rone@example.com" doc:"Account email or username"`
	Password   string `json:"password" example:"Password123!" doc:"Account password"`
	OnResponse func(resp *LoginResponse)
}

func (m LoginMessage) Type() string { return "credentials.login" }

// Validate checks the message payload. Password complexity is not enforced
// on sign in.
func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Identifier, validation.Required, validation.Length(3, 100)),
		validation.Field(&m.Password, validation.Required, validation.Length(1, 128)),
	)
}

type LoginResponse struct {
	User        *DirectoryUser
	AccessToken string
}

// LoginHandler authenticates a directory user by email or username and
// issues an access credential.
type LoginHandler struct {
	directory Directory
	tokens    *TokenAuthority
	activity  ActivitySink
	logger    Logger
}

// NewLoginHandler creates a handler with sane defaults.
func NewLoginHandler(directory Directory, tokens *TokenAuthority) *LoginHandler {
	return &LoginHandler{
		directory: directory,
		tokens:    tokens,
		activity:  noopActivitySink{},
		logger:    defLogger{},
	}
}

// WithActivitySink sets the sink used to emit login events.
func (h *LoginHandler) WithActivitySink(sink ActivitySink) *LoginHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *LoginHandler) WithLogger(logger Logger) *LoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LoginHandler) Execute(ctx context.Context, msg LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *LoginHandler) execute(ctx context.Context, msg LoginMessage) error {
	if err := msg.Validate(); err != nil {
		return invalidMessage(err, "invalid login request")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	identifier := strings.TrimSpace(msg.Identifier)
	user, err := h.lookup(ctx, identifier)
	if err != nil {
		if isUserNotFound(err) {
			h.logger.Debug("login attempted for unknown account")
			h.record(ctx, identifier, ActivityOutcomeFailure, "unknown_account")
			return ErrMismatchedHashAndPassword
		}
		return rewrap(err, "failed to look up account for login")
	}

	if err := ComparePasswordAndHash(msg.Password, user.PasswordHash); err != nil {
		h.record(ctx, user.Username, ActivityOutcomeFailure, "mismatched_password")
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return rewrap(err, "failed to compare password")
	}

	access, err := h.tokens.IssueAccessToken(user.Username, user.ID)
	if err != nil {
		return rewrap(err, "failed to issue access credential")
	}

	h.record(ctx, user.Username, ActivityOutcomeSuccess, "")
	if msg.OnResponse != nil {
		msg.OnResponse(&LoginResponse{User: user, AccessToken: access})
	}
	return nil
}

// lookup treats identifiers containing "@" as emails.
func (h *LoginHandler) lookup(ctx context.Context, identifier string) (*DirectoryUser, error) {
	if strings.Contains(identifier, "@") {
		return h.directory.FindByEmail(ctx, identifier)
	}
	return h.directory.FindByUsername(ctx, identifier)
}

func (h *LoginHandler) record(ctx context.Context, subject, outcome, reason string) {
	event := ActivityEvent{
		EventType: ActivityEventLogin,
		Subject:   subject,
		Outcome:   outcome,
	}
	if reason != "" {
		event.Metadata = map[string]any{"reason": reason}
	}
	recordActivity(ctx, h.activity, h.logger, event)
}
