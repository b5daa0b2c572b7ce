package credentials

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"time"

	"github.com/goliatone/go-credentials/ephemeral"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultCodeExpiration  = 10 * time.Minute
	DefaultCodeMaxAttempts = 3

	codeLowerBound = 100000
	codeSpan       = 900000
)

// CodeLedger issues and verifies six digit recovery codes. At most one
// active code exists per email; issuing a new one supersedes the previous.
//
// Attempt counting is read, modify, write against the store. Concurrent
// verifications of the same code can lose increments, so slightly more than
// MaxAttempts guesses may be evaluated under contention.
type CodeLedger struct {
	codes       *codeRepository
	expiration  time.Duration
	maxAttempts int
	generate    func() (string, error)
	now         func() time.Time
	logger      Logger
}

// LedgerOption configures a CodeLedger.
type LedgerOption func(*CodeLedger)

// WithCodeExpiration sets how long a code stays valid.
func WithCodeExpiration(d time.Duration) LedgerOption {
	return func(l *CodeLedger) {
		if d > 0 {
			l.expiration = d
		}
	}
}

// WithCodeMaxAttempts sets how many verifications a code tolerates.
func WithCodeMaxAttempts(n int) LedgerOption {
	return func(l *CodeLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(fn func() (string, error)) LedgerOption {
	return func(l *CodeLedger) {
		if fn != nil {
			l.generate = fn
		}
	}
}

// WithLedgerClock overrides the clock.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *CodeLedger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger Logger) LedgerOption {
	return func(l *CodeLedger) {
		l.logger = normalizeLogger(logger)
	}
}

// NewCodeLedger creates a ledger on top of store.
func NewCodeLedger(store ephemeral.Store, opts ...LedgerOption) *CodeLedger {
	l := &CodeLedger{
		expiration:  DefaultCodeExpiration,
		maxAttempts: DefaultCodeMaxAttempts,
		generate:    GenerateNumericCode,
		now:         time.Now,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	l.codes = &codeRepository{store: store, now: l.now}
	return l
}

// ExpirationMinutes returns the configured code lifetime in minutes.
func (l *CodeLedger) ExpirationMinutes() int {
	return int(l.expiration / time.Minute)
}

// MaxAttempts returns the configured attempt limit.
func (l *CodeLedger) MaxAttempts() int {
	return l.maxAttempts
}

// Issue supersedes any active code for email and stores a fresh one.
func (l *CodeLedger) Issue(ctx context.Context, email string) (*IssuedCode, error) {
	l.RevokeActiveForEmail(ctx, email)

	code, err := l.generate()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	now := l.now()
	vc := &VerificationCode{
		ID:        uuid.New(),
		Code:      code,
		Email:     email,
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(l.expiration),
	}

	if err := l.codes.create(ctx, vc, l.expiration); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store verification code")
	}

	l.logger.Debug("issued verification code token=%s", vc.Token)

	return &IssuedCode{
		Token:     vc.Token,
		Code:      vc.Code,
		Email:     vc.Email,
		ExpiresAt: vc.ExpiresAt,
	}, nil
}

// VerifyByToken checks code against the record issued under token.
func (l *CodeLedger) VerifyByToken(ctx context.Context, code, token string) (VerifyOutcome, error) {
	vc, err := l.codes.findByToken(ctx, token)
	if err != nil {
		return VerifyOutcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load verification code")
	}
	return l.verify(ctx, code, vc)
}

// VerifyByEmail checks code against the active record for email. Wrong
// guesses count against that record's attempts. Lookup by email cannot tell
// a superseded code from a wrong guess, so entering the digits of an older
// code is a mismatch that spends an attempt on the fresh code. Callers that
// hold the issuing token should prefer VerifyByToken, which reports a
// superseded code as not found.
func (l *CodeLedger) VerifyByEmail(ctx context.Context, code, email string) (VerifyOutcome, error) {
	vc, err := l.codes.findByEmail(ctx, email)
	if err != nil {
		return VerifyOutcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load verification code")
	}
	return l.verify(ctx, code, vc)
}

func (l *CodeLedger) verify(ctx context.Context, code string, vc *VerificationCode) (VerifyOutcome, error) {
	if vc == nil {
		return VerifyOutcome{Status: VerifyNotFound}, nil
	}

	if vc.IsExpired(l.now()) {
		l.discard(ctx, vc)
		return VerifyOutcome{Status: VerifyExpired}, nil
	}

	if vc.Used {
		return VerifyOutcome{Status: VerifyAlreadyUsed}, nil
	}

	if vc.Attempts >= l.maxAttempts {
		l.discard(ctx, vc)
		return VerifyOutcome{Status: VerifyAttemptsExceeded}, nil
	}

	vc.Attempts++
	matched := subtle.ConstantTimeCompare([]byte(code), []byte(vc.Code)) == 1
	if matched {
		vc.Used = true
	}

	if err := l.codes.update(ctx, vc); err != nil {
		return VerifyOutcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist verification attempt")
	}

	if !matched {
		return VerifyOutcome{
			Status:            VerifyMismatch,
			RemainingAttempts: l.maxAttempts - vc.Attempts,
		}, nil
	}

	return VerifyOutcome{
		Status: VerifySuccess,
		Email:  vc.Email,
		Token:  vc.Token,
	}, nil
}

// RevokeActiveForEmail removes the code currently indexed for email. Store
// failures are logged and swallowed so issuing is never blocked by cleanup.
func (l *CodeLedger) RevokeActiveForEmail(ctx context.Context, email string) {
	vc, err := l.codes.findByEmail(ctx, email)
	if err != nil {
		l.logger.Warn("failed to look up active verification code: %v", err)
		return
	}
	if vc == nil {
		return
	}
	l.discard(ctx, vc)
}

// FindByToken returns the record issued under token, or nil.
func (l *CodeLedger) FindByToken(ctx context.Context, token string) (*VerificationCode, error) {
	vc, err := l.codes.findByToken(ctx, token)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load verification code")
	}
	return vc, nil
}

// FindActiveByEmail returns the unused, unexpired code for email, or nil.
func (l *CodeLedger) FindActiveByEmail(ctx context.Context, email string) (*VerificationCode, error) {
	vc, err := l.codes.findByEmail(ctx, email)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load verification code")
	}
	if vc == nil || !vc.IsActive(l.now()) {
		return nil, nil
	}
	return vc, nil
}

func (l *CodeLedger) discard(ctx context.Context, vc *VerificationCode) {
	if err := l.codes.delete(ctx, vc); err != nil {
		l.logger.Warn("failed to delete verification code token=%s: %v", vc.Token, err)
	}
}

// GenerateNumericCode returns a uniformly drawn code in [100000, 999999].
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeLowerBound, 10), nil
}
