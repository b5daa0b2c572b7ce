package credentials

import (
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Purpose tags what a credential may be used for. The set is closed.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordRecovery  Purpose = "password_recovery"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeEmailVerification, PurposePasswordRecovery:
		return true
	default:
		return false
	}
}

func (p Purpose) String() string {
	return string(p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Purpose) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, unknownPurpose(string(p))
	}
	return []byte(p), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values fail so
// that a credential with a foreign purpose never decodes.
func (p *Purpose) UnmarshalText(text []byte) error {
	candidate := Purpose(text)
	if !candidate.Valid() {
		return unknownPurpose(string(text))
	}
	*p = candidate
	return nil
}

func unknownPurpose(value string) error {
	return goerrors.New("unknown credential purpose", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeUnknownPurpose).
		WithMetadata(map[string]any{
			"purpose": value,
		})
}

// Claims is the decoded payload of a credential.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string  `json:"userId,omitempty"`
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
}

// Subject returns the subject claim: a username for access and email
// verification credentials, an email for recovery credentials.
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.RegisteredClaims.ID
}
