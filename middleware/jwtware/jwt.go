// Package jwtware authenticates fiber requests that carry a credential issued
// by the credentials TokenAuthority.
package jwtware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	credentials "github.com/goliatone/go-credentials"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultContextKey      = "credential_claims"
	DefaultTokenContextKey = "credential"
	defaultTokenLookup     = "header:" + fiber.HeaderAuthorization
)

// ErrCredentialMissing is returned when no extractor finds a credential.
var ErrCredentialMissing = goerrors.New("missing or malformed credential", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(credentials.TextCodeTokenMalformed)

// TokenValidator checks a raw credential and returns its claims.
// *credentials.TokenAuthority satisfies it through Authenticate.
type TokenValidator interface {
	Authenticate(ctx context.Context, credential string) (*credentials.Claims, error)
}

// ValidatorFunc adapts a function to TokenValidator.
type ValidatorFunc func(ctx context.Context, credential string) (*credentials.Claims, error)

func (f ValidatorFunc) Authenticate(ctx context.Context, credential string) (*credentials.Claims, error) {
	return f(ctx, credential)
}

// ValidationListener is invoked after a credential validates and before the
// purpose check.
type ValidationListener func(c *fiber.Ctx, claims *credentials.Claims) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// ContextKey names the fiber local holding the decoded claims.
	ContextKey string
	// TokenContextKey names the fiber local holding the raw credential.
	TokenContextKey string
	// TokenLookup is a comma separated list of source:name pairs. Sources
	// are header, query, param, cookie and body (a JSON field).
	TokenLookup    string
	AuthScheme     string
	TokenValidator TokenValidator
	// Purposes restricts the accepted credential purposes. Empty accepts
	// every purpose.
	Purposes            []credentials.Purpose
	ContextEnricher     func(ctx context.Context, claims *credentials.Claims) context.Context
	ValidationListeners []ValidationListener
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Authenticate(c.UserContext(), raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, claims); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := checkPurpose(claims, cfg.Purposes); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)
		c.Locals(cfg.TokenContextKey, raw)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

func checkPurpose(claims *credentials.Claims, allowed []credentials.Purpose) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, p := range allowed {
		if claims.Purpose == p {
			return nil
		}
	}
	return credentials.ErrTokenPurposeMismatch
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if goerrors.Is(err, ErrCredentialMissing) {
				return c.Status(fiber.StatusBadRequest).SendString(ErrCredentialMissing.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired credential")
		}
	}

	if cfg.TokenValidator == nil {
		panic("CREDENTIALS: jwtware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.TokenContextKey == "" {
		cfg.TokenContextKey = DefaultTokenContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []Extractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, claims *credentials.Claims) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, claims); err != nil {
			return err
		}
	}
	return nil
}

// Claims returns the claims stored under key by the middleware.
func Claims(c *fiber.Ctx, key string) (*credentials.Claims, bool) {
	claims, ok := c.Locals(key).(*credentials.Claims)
	return claims, ok && claims != nil
}

// Token returns the raw credential stored under key by the middleware.
func Token(c *fiber.Ctx, key string) string {
	raw, _ := c.Locals(key).(string)
	return raw
}

type claimsContextKey struct{}

// ContextWithClaims returns a copy of ctx carrying claims. It can be used as
// Config.ContextEnricher.
func ContextWithClaims(ctx context.Context, claims *credentials.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the claims stored by ContextWithClaims.
func ClaimsFromContext(ctx context.Context) (*credentials.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*credentials.Claims)
	return claims, ok && claims != nil
}

// ExtractRawToken returns the first credential found by extractors. The
// result is copied out of the request buffers and outlives the request.
func ExtractRawToken(c *fiber.Ctx, extractors []Extractor) (string, error) {
	for _, extractor := range extractors {
		raw, err := extractor(c)
		if raw != "" && err == nil {
			return utils.CopyString(raw), nil
		}
	}
	return "", ErrCredentialMissing
}

type Extractor func(c *fiber.Ctx) (string, error)

// GetExtractors parses a lookup such as
// "header:Authorization,query:token,body:token".
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		case "body":
			extractors = append(extractors, fromBody(name))
		}
	}

	return extractors
}

// fromHeader extracts "<scheme> <credential>" from header.
func fromHeader(header, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c *fiber.Ctx) (string, error) {
		a := strings.TrimSpace(c.Get(header))
		l := len(authScheme)
		if l == 0 {
			return "", ErrCredentialMissing
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if raw := strings.TrimSpace(a[l:]); raw != "" {
				return raw, nil
			}
		}
		return "", ErrCredentialMissing
	}
}

func fromQuery(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}
}

// fromBody reads a string field of a JSON request body.
func fromBody(field string) Extractor {
	return func(c *fiber.Ctx) (string, error) {
		if len(c.Body()) == 0 || !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return "", ErrCredentialMissing
		}
		payload := map[string]any{}
		if err := c.BodyParser(&payload); err != nil {
			return "", ErrCredentialMissing
		}
		token, _ := payload[field].(string)
		if token == "" {
			return "", ErrCredentialMissing
		}
		return token, nil
	}
}
