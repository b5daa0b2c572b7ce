package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-credentials/ephemeral"
	goerrors "github.com/goliatone/go-errors"
)

const (
	codeKeyPrefix      = "verification_code:"
	codeTokenKeyPrefix = "token_code:"
	codeEmailKeyPrefix = "email_code:"
)

// codeRepository owns the key layout of verification codes: the primary
// record under verification_code:{email}:{code}, token_code:{token} holding
// the primary suffix and email_code:{email} holding the active code. The
// three keys are written and removed together; an index pointing at a
// missing primary reads as not found.
type codeRepository struct {
	store ephemeral.Store
	now   func() time.Time
}

func primarySuffix(email, code string) string {
	return email + ":" + code
}

func codeKey(email, code string) string {
	return codeKeyPrefix + primarySuffix(email, code)
}

func codeTokenKey(token string) string {
	return codeTokenKeyPrefix + token
}

func codeEmailKey(email string) string {
	return codeEmailKeyPrefix + email
}

func (r *codeRepository) create(ctx context.Context, vc *VerificationCode, ttl time.Duration) error {
	payload, err := json.Marshal(vc)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode verification code")
	}

	if err := r.store.Set(ctx, codeKey(vc.Email, vc.Code), payload, ttl); err != nil {
		return err
	}
	if err := r.store.Set(ctx, codeTokenKey(vc.Token), []byte(primarySuffix(vc.Email, vc.Code)), ttl); err != nil {
		return err
	}
	return r.store.Set(ctx, codeEmailKey(vc.Email), []byte(vc.Code), ttl)
}

// update rewrites the primary record keeping its remaining lifetime.
func (r *codeRepository) update(ctx context.Context, vc *VerificationCode) error {
	payload, err := json.Marshal(vc)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode verification code")
	}

	ttl := vc.ExpiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return r.store.Set(ctx, codeKey(vc.Email, vc.Code), payload, ttl)
}

func (r *codeRepository) findByToken(ctx context.Context, token string) (*VerificationCode, error) {
	suffix, err := r.store.Get(ctx, codeTokenKey(token))
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return r.load(ctx, codeKeyPrefix+string(suffix))
}

func (r *codeRepository) findByEmail(ctx context.Context, email string) (*VerificationCode, error) {
	code, err := r.store.Get(ctx, codeEmailKey(email))
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return r.load(ctx, codeKey(email, string(code)))
}

func (r *codeRepository) load(ctx context.Context, key string) (*VerificationCode, error) {
	payload, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, notFoundAsNil(err)
	}

	vc := &VerificationCode{}
	if err := json.Unmarshal(payload, vc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode verification code").
			WithMetadata(map[string]any{"key": strings.SplitN(key, ":", 2)[0]})
	}
	return vc, nil
}

// delete removes the primary record and its indexes in one call. The email
// index is left alone when it already points at a newer code.
func (r *codeRepository) delete(ctx context.Context, vc *VerificationCode) error {
	keys := []string{codeKey(vc.Email, vc.Code), codeTokenKey(vc.Token)}

	active, err := r.store.Get(ctx, codeEmailKey(vc.Email))
	switch {
	case err == nil && string(active) == vc.Code:
		keys = append(keys, codeEmailKey(vc.Email))
	case err != nil && !errors.Is(err, ephemeral.ErrNotFound):
		return err
	}

	return r.store.Delete(ctx, keys...)
}

func notFoundAsNil(err error) error {
	if errors.Is(err, ephemeral.ErrNotFound) {
		return nil
	}
	return err
}
