package credentials_test

import (
	"context"
	"sort"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/ephemeral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pendingFixture struct {
	clock   *testClock
	store   *ephemeral.MemoryStore
	pending *credentials.PendingStore
}

func newPendingFixture(t *testing.T) *pendingFixture {
	t.Helper()
	clock := newTestClock()
	store := ephemeral.NewMemoryStore(ephemeral.WithMemoryClock(clock.Now))
	return &pendingFixture{
		clock: clock,
		store: store,
		pending: credentials.NewPendingStore(store,
			credentials.WithPendingClock(clock.Now),
			credentials.WithPendingLogger(&captureLogger{}),
		),
	}
}

func (f *pendingFixture) record(token, username, email string) *credentials.PendingRegistration {
	now := f.clock.Now()
	return &credentials.PendingRegistration{
		Username:          username,
		Email:             email,
		PasswordHash:      "hash",
		VerificationToken: token,
		CreatedAt:         now,
		TokenExpiration:   now.Add(f.pending.TTL()),
	}
}

func TestPendingStore_SaveAndFind(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	rec := f.record("tok-1", "alice", "a@b.com")
	require.NoError(t, f.pending.Save(ctx, rec))

	byToken, err := f.pending.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, "alice", byToken.Username)
	assert.True(t, rec.TokenExpiration.Equal(byToken.TokenExpiration))

	byEmail, err := f.pending.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "tok-1", byEmail.VerificationToken)

	byUsername, err := f.pending.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	assert.Equal(t, "a@b.com", byUsername.Email)

	exists, err := f.pending.ExistsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.pending.ExistsByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPendingStore_DuplicateCheckBeforeSave(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))

	exists, err := f.pending.ExistsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.True(t, exists, "callers must reject a second registration for the email")
}

func TestPendingStore_SaveRequiresToken(t *testing.T) {
	f := newPendingFixture(t)
	assert.Error(t, f.pending.Save(context.Background(), f.record("", "alice", "a@b.com")))
	assert.Error(t, f.pending.Save(context.Background(), nil))
}

func TestPendingStore_DeleteByToken(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))
	require.NoError(t, f.pending.DeleteByToken(ctx, "tok-1"))

	for _, key := range []string{"pending_user:tok-1", "pending_email:a@b.com", "pending_username:alice"} {
		exists, err := f.store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}

	require.NoError(t, f.pending.DeleteByToken(ctx, "tok-1"), "deleting twice is harmless")
}

func TestPendingStore_DeleteKeepsNewerIndexes(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))
	require.NoError(t, f.pending.Save(ctx, f.record("tok-2", "alice", "a@b.com")))

	require.NoError(t, f.pending.DeleteByToken(ctx, "tok-1"))

	rec, err := f.pending.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-2", rec.VerificationToken)
}

func TestPendingStore_DanglingIndexReadsAsAbsent(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))
	require.NoError(t, f.store.Delete(ctx, "pending_user:tok-1"))

	rec, err := f.pending.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = f.pending.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rec)

	exists, err := f.pending.ExistsByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.pending.DeleteByEmail(ctx, "a@b.com"))
	exists, err = f.store.Exists(ctx, "pending_email:a@b.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPendingStore_DeleteByEmailAndUsername(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))
	require.NoError(t, f.pending.Save(ctx, f.record("tok-2", "bob", "bob@b.com")))

	require.NoError(t, f.pending.DeleteByEmail(ctx, "a@b.com"))
	require.NoError(t, f.pending.DeleteByUsername(ctx, "bob"))
	require.NoError(t, f.pending.DeleteByUsername(ctx, "nobody"))

	tokens, err := f.pending.PendingTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestPendingStore_TTLExpiry(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))

	f.clock.Advance(24*time.Hour + time.Second)

	rec, err := f.pending.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	exists, err := f.pending.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPendingStore_PendingTokens(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))
	require.NoError(t, f.pending.Save(ctx, f.record("tok-2", "bob", "bob@b.com")))

	tokens, err := f.pending.PendingTokens(ctx)
	require.NoError(t, err)
	sort.Strings(tokens)
	assert.Equal(t, []string{"tok-1", "tok-2"}, tokens)
}

func TestPendingStore_ExtendExpiration(t *testing.T) {
	f := newPendingFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pending.Save(ctx, f.record("tok-1", "alice", "a@b.com")))

	f.clock.Advance(20 * time.Hour)
	require.NoError(t, f.pending.ExtendExpiration(ctx, "tok-1", 24*time.Hour))

	f.clock.Advance(10 * time.Hour)

	rec, err := f.pending.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.CanBeVerified(f.clock.Now()))
	assert.True(t, f.clock.Now().Add(14*time.Hour).Equal(rec.TokenExpiration))

	err = f.pending.ExtendExpiration(ctx, "missing", time.Hour)
	assert.ErrorIs(t, err, credentials.ErrPendingRegistrationNotFound)
}

func TestPendingRegistration_CanBeVerified(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record credentials.PendingRegistration
		want   bool
	}{
		{name: "fresh", record: credentials.PendingRegistration{TokenExpiration: now.Add(time.Hour)}, want: true},
		{name: "verified", record: credentials.PendingRegistration{TokenExpiration: now.Add(time.Hour), Verified: true}, want: false},
		{name: "expired", record: credentials.PendingRegistration{TokenExpiration: now.Add(-time.Second)}, want: false},
		{name: "expires now", record: credentials.PendingRegistration{TokenExpiration: now}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.CanBeVerified(now))
		})
	}
}

func TestPendingStore_StoreFailure(t *testing.T) {
	store := &flakyStore{Store: ephemeral.NewMemoryStore()}
	pending := credentials.NewPendingStore(store)
	ctx := context.Background()

	store.down.Store(true)

	_, err := pending.FindByEmail(ctx, "a@b.com")
	assert.ErrorIs(t, err, errStoreDown)

	_, err = pending.ExistsByUsername(ctx, "alice")
	assert.ErrorIs(t, err, errStoreDown)
}
