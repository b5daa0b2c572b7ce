package credentials

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/goliatone/go-credentials/ephemeral"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultPendingRegistrationTTL = 24 * time.Hour

	pendingKeyPrefix         = "pending_user:"
	pendingEmailKeyPrefix    = "pending_email:"
	pendingUsernameKeyPrefix = "pending_username:"
)

// PendingStore stages registrations keyed by verification token with email
// and username indexes. It does not dedupe: callers check ExistsByEmail and
// ExistsByUsername before saving. An index whose primary record is gone
// reads as absent.
type PendingStore struct {
	store  ephemeral.Store
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// PendingOption configures a PendingStore.
type PendingOption func(*PendingStore)

// WithPendingTTL sets the lifetime of staged records.
func WithPendingTTL(d time.Duration) PendingOption {
	return func(s *PendingStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithPendingClock overrides the clock.
func WithPendingClock(now func() time.Time) PendingOption {
	return func(s *PendingStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPendingLogger sets the logger.
func WithPendingLogger(logger Logger) PendingOption {
	return func(s *PendingStore) {
		s.logger = normalizeLogger(logger)
	}
}

// NewPendingStore creates a PendingStore on top of store.
func NewPendingStore(store ephemeral.Store, opts ...PendingOption) *PendingStore {
	s := &PendingStore{
		store:  store,
		ttl:    DefaultPendingRegistrationTTL,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// TTL returns the lifetime applied to staged records.
func (s *PendingStore) TTL() time.Duration {
	return s.ttl
}

func pendingKey(token string) string {
	return pendingKeyPrefix + token
}

func pendingEmailKey(email string) string {
	return pendingEmailKeyPrefix + email
}

func pendingUsernameKey(username string) string {
	return pendingUsernameKeyPrefix + username
}

// Save writes the record and both indexes with the store TTL.
func (s *PendingStore) Save(ctx context.Context, record *PendingRegistration) error {
	if record == nil || record.VerificationToken == "" {
		return goerrors.New("pending registration requires a verification token", goerrors.CategoryBadInput)
	}
	return s.write(ctx, record, s.ttl)
}

// FindByToken returns the record staged under token, or nil.
func (s *PendingStore) FindByToken(ctx context.Context, token string) (*PendingRegistration, error) {
	payload, err := s.store.Get(ctx, pendingKey(token))
	if err != nil {
		if err = notFoundAsNil(err); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load pending registration")
		}
		return nil, nil
	}

	record := &PendingRegistration{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode pending registration")
	}
	return record, nil
}

// FindByEmail resolves the email index and returns the record, or nil.
func (s *PendingStore) FindByEmail(ctx context.Context, email string) (*PendingRegistration, error) {
	return s.findByIndex(ctx, pendingEmailKey(email))
}

// FindByUsername resolves the username index and returns the record, or nil.
func (s *PendingStore) FindByUsername(ctx context.Context, username string) (*PendingRegistration, error) {
	return s.findByIndex(ctx, pendingUsernameKey(username))
}

// ExistsByEmail reports whether a live record is staged for email.
func (s *PendingStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	record, err := s.FindByEmail(ctx, email)
	return record != nil, err
}

// ExistsByUsername reports whether a live record is staged for username.
func (s *PendingStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	record, err := s.FindByUsername(ctx, username)
	return record != nil, err
}

// DeleteByToken removes the record and the indexes that still point at it.
// The deletes are not atomic; a partial failure leaves a dangling index.
func (s *PendingStore) DeleteByToken(ctx context.Context, token string) error {
	record, err := s.FindByToken(ctx, token)
	if err != nil {
		return err
	}

	keys := []string{pendingKey(token)}
	if record != nil {
		keys = append(keys, s.indexKeysFor(ctx, record)...)
	}

	if err := s.store.Delete(ctx, keys...); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete pending registration")
	}
	return nil
}

// DeleteByEmail removes the registration staged for email. A dangling index
// is removed on its own.
func (s *PendingStore) DeleteByEmail(ctx context.Context, email string) error {
	return s.deleteByIndex(ctx, pendingEmailKey(email))
}

// DeleteByUsername removes the registration staged for username.
func (s *PendingStore) DeleteByUsername(ctx context.Context, username string) error {
	return s.deleteByIndex(ctx, pendingUsernameKey(username))
}

// PendingTokens lists the verification tokens of all staged records.
func (s *PendingStore) PendingTokens(ctx context.Context) ([]string, error) {
	keys, err := s.store.ScanByPrefix(ctx, pendingKeyPrefix)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to scan pending registrations")
	}

	tokens := make([]string, 0, len(keys))
	for _, key := range keys {
		tokens = append(tokens, strings.TrimPrefix(key, pendingKeyPrefix))
	}
	return tokens, nil
}

// ExtendExpiration moves the token expiration of a staged record to now+ttl
// and refreshes the store TTL of the record and its indexes.
func (s *PendingStore) ExtendExpiration(ctx context.Context, token string, ttl time.Duration) error {
	record, err := s.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrPendingRegistrationNotFound
	}

	ttl = durationOr(ttl, s.ttl)
	record.TokenExpiration = s.now().Add(ttl)
	return s.write(ctx, record, ttl)
}

func (s *PendingStore) write(ctx context.Context, record *PendingRegistration, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode pending registration")
	}

	token := []byte(record.VerificationToken)
	writes := []struct {
		key   string
		value []byte
	}{
		{pendingKey(record.VerificationToken), payload},
		{pendingEmailKey(record.Email), token},
		{pendingUsernameKey(record.Username), token},
	}

	for _, w := range writes {
		if err := s.store.Set(ctx, w.key, w.value, ttl); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store pending registration")
		}
	}
	return nil
}

func (s *PendingStore) findByIndex(ctx context.Context, indexKey string) (*PendingRegistration, error) {
	token, err := s.store.Get(ctx, indexKey)
	if err != nil {
		if err = notFoundAsNil(err); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to resolve pending registration index")
		}
		return nil, nil
	}

	record, err := s.FindByToken(ctx, string(token))
	if err != nil {
		return nil, err
	}
	if record == nil {
		s.logger.Debug("dangling pending registration index %s", indexKey)
	}
	return record, nil
}

func (s *PendingStore) deleteByIndex(ctx context.Context, indexKey string) error {
	token, err := s.store.Get(ctx, indexKey)
	if err != nil {
		if err = notFoundAsNil(err); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to resolve pending registration index")
		}
		return nil
	}

	record, err := s.FindByToken(ctx, string(token))
	if err != nil {
		return err
	}
	if record == nil {
		if err := s.store.Delete(ctx, indexKey); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete pending registration index")
		}
		return nil
	}
	return s.DeleteByToken(ctx, record.VerificationToken)
}

// indexKeysFor returns the index keys that still resolve to record. An
// index overwritten by a newer registration is left in place.
func (s *PendingStore) indexKeysFor(ctx context.Context, record *PendingRegistration) []string {
	keys := make([]string, 0, 2)
	for _, key := range []string{pendingEmailKey(record.Email), pendingUsernameKey(record.Username)} {
		token, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		if string(token) == record.VerificationToken {
			keys = append(keys, key)
		}
	}
	return keys
}
