package credentials

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL       = time.Hour
	DefaultVerificationTokenTTL = 24 * time.Hour
	DefaultRecoveryTokenTTL     = 24 * time.Hour
)

// TokenAuthority mints and interprets purpose tagged credentials. Revocation
// state is owned by the RevocationRegistry it is built with.
type TokenAuthority struct {
	signingKey      []byte
	issuer          string
	accessTTL       time.Duration
	verificationTTL time.Duration
	recoveryTTL     time.Duration
	revocation      RevocationRegistry
	now             func() time.Time
	logger          Logger
}

// TokenAuthorityOption configures a TokenAuthority.
type TokenAuthorityOption func(*TokenAuthority)

// WithTokenClock overrides the clock used for issuance and expiry checks.
func WithTokenClock(now func() time.Time) TokenAuthorityOption {
	return func(ta *TokenAuthority) {
		if now != nil {
			ta.now = now
		}
	}
}

// WithTokenLogger sets the logger.
func WithTokenLogger(logger Logger) TokenAuthorityOption {
	return func(ta *TokenAuthority) {
		ta.logger = normalizeLogger(logger)
	}
}

// NewTokenAuthority builds a TokenAuthority from cfg. Zero TTLs fall back to
// the package defaults. A nil registry means credentials are never revoked.
func NewTokenAuthority(cfg Config, revocation RevocationRegistry, opts ...TokenAuthorityOption) *TokenAuthority {
	ta := &TokenAuthority{
		signingKey:      []byte(cfg.GetSigningKey()),
		issuer:          cfg.GetIssuer(),
		accessTTL:       durationOr(cfg.GetAccessTokenTTL(), DefaultAccessTokenTTL),
		verificationTTL: durationOr(cfg.GetVerificationTokenTTL(), DefaultVerificationTokenTTL),
		recoveryTTL:     durationOr(cfg.GetRecoveryTokenTTL(), DefaultRecoveryTokenTTL),
		revocation:      revocation,
		now:             time.Now,
		logger:          defLogger{},
	}

	if ta.revocation == nil {
		ta.revocation = noopRevocationRegistry{}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ta)
		}
	}

	return ta
}

// IssueAccessToken mints an access credential for a durable user.
func (ta *TokenAuthority) IssueAccessToken(username, userID string) (string, error) {
	claims := ta.newClaims(username, PurposeAccess, ta.accessTTL)
	claims.UserID = userID
	return ta.sign(claims)
}

// IssueEmailVerificationToken mints the credential mailed to a pending
// registration. The subject is the username.
func (ta *TokenAuthority) IssueEmailVerificationToken(username, email string) (string, error) {
	claims := ta.newClaims(username, PurposeEmailVerification, ta.verificationTTL)
	claims.Email = email
	return ta.sign(claims)
}

// IssuePasswordRecoveryToken mints a recovery credential for email valid for
// ttlHours. Non positive values use the configured recovery TTL.
func (ta *TokenAuthority) IssuePasswordRecoveryToken(email string, ttlHours int) (string, error) {
	ttl := ta.recoveryTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	claims := ta.newClaims(email, PurposePasswordRecovery, ttl)
	claims.Email = email
	return ta.sign(claims)
}

// Validate reports whether credential has a good signature, is unexpired
// and has not been revoked. It never fails loudly.
func (ta *TokenAuthority) Validate(ctx context.Context, credential string) bool {
	return ta.Inspect(ctx, credential) == nil
}

// Inspect runs the same checks as Validate and returns the reason for
// rejection: ErrTokenMalformed, ErrTokenExpired or ErrTokenRevoked.
func (ta *TokenAuthority) Inspect(ctx context.Context, credential string) error {
	_, err := ta.Authenticate(ctx, credential)
	return err
}

// Authenticate runs the Inspect checks and returns the claims of an
// accepted credential.
func (ta *TokenAuthority) Authenticate(ctx context.Context, credential string) (*Claims, error) {
	claims, err := ta.Verify(credential)
	if err != nil {
		return nil, err
	}
	if ta.revocation.IsRevoked(ctx, credential) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Verify checks signature and expiry without consulting revocation state.
func (ta *TokenAuthority) Verify(credential string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ta.now),
		jwt.WithExpirationRequired(),
	}
	if ta.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ta.issuer))
	}
	return ta.parse(credential, opts...)
}

// Claims decodes credential after checking its signature. Time based claims
// are not checked, so an expired credential still decodes.
func (ta *TokenAuthority) Claims(credential string) (*Claims, error) {
	return ta.parse(credential,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
}

// PurposeOf returns the typed purpose claim of credential.
func (ta *TokenAuthority) PurposeOf(credential string) (Purpose, error) {
	claims, err := ta.Claims(credential)
	if err != nil {
		return "", err
	}
	return claims.Purpose, nil
}

// Revoke marks credential as no longer honored and returns the claims it
// carried. Only structurally valid credentials are recorded; revoking twice
// is a no-op.
func (ta *TokenAuthority) Revoke(ctx context.Context, credential string) (*Claims, error) {
	claims, err := ta.Verify(credential)
	if err != nil {
		return nil, err
	}

	ta.revocation.Revoke(ctx, credential)
	ta.logger.Debug("revoked %s credential jti=%s", claims.Purpose, claims.TokenID())
	return claims, nil
}

func (ta *TokenAuthority) newClaims(subject string, purpose Purpose, ttl time.Duration) *Claims {
	now := ta.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ta.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}
}

func (ta *TokenAuthority) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ta.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign credential")
	}
	return signed, nil
}

func (ta *TokenAuthority) parse(credential string, opts ...jwt.ParserOption) (*Claims, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ta.logger.Error("credential with unexpected signing method alg=%v", t.Header["alg"])
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return ta.signingKey, nil
	}, opts...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, malformed(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !claims.Purpose.Valid() {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func malformed(err error) error {
	return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
		WithCode(ErrTokenMalformed.Code).
		WithTextCode(ErrTokenMalformed.TextCode)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
