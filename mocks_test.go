package credentials_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/stretchr/testify/mock"
)

// testConfig implements credentials.Config
type testConfig struct {
	signingKey      string
	issuer          string
	accessTTL       time.Duration
	verificationTTL time.Duration
	recoveryTTL     time.Duration
	codeExpiration  time.Duration
	codeAttempts    int
	pendingTTL      time.Duration
	revocation      string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey: "test-signing-key",
		issuer:     "go-credentials-test",
		revocation: credentials.RevocationBackendStore,
	}
}

func (c *testConfig) GetSigningKey() string                    { return c.signingKey }
func (c *testConfig) GetIssuer() string                        { return c.issuer }
func (c *testConfig) GetAccessTokenTTL() time.Duration         { return c.accessTTL }
func (c *testConfig) GetVerificationTokenTTL() time.Duration   { return c.verificationTTL }
func (c *testConfig) GetRecoveryTokenTTL() time.Duration       { return c.recoveryTTL }
func (c *testConfig) GetCodeExpiration() time.Duration         { return c.codeExpiration }
func (c *testConfig) GetCodeMaxAttempts() int                  { return c.codeAttempts }
func (c *testConfig) GetPendingRegistrationTTL() time.Duration { return c.pendingTTL }
func (c *testConfig) GetRevocationBackend() string             { return c.revocation }

// testClock is a manually advanced clock shared by the components under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceCodes returns a generator that hands out the given codes in order
func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", fmt.Errorf("code sequence exhausted")
		}
		code := codes[i]
		i++
		return code, nil
	}
}

// captureLogger records log lines
type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *captureLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *captureLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *captureLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *captureLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// MockNotifier implements credentials.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationEmail(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordRecoveryCodeEmail(ctx context.Context, email string, msg credentials.RecoveryCodeEmail) error {
	args := m.Called(ctx, email, msg)
	return args.Error(0)
}

func (m *MockNotifier) SendWelcomeEmail(ctx context.Context, email, username string) error {
	args := m.Called(ctx, email, username)
	return args.Error(0)
}

func (m *MockNotifier) SendUsernameReminderEmail(ctx context.Context, email, username string) error {
	args := m.Called(ctx, email, username)
	return args.Error(0)
}

// memoryDirectory is an in memory credentials.Directory
type memoryDirectory struct {
	mu     sync.Mutex
	users  map[string]*credentials.DirectoryUser
	nextID int
	fail   error
}

func newMemoryDirectory(users ...credentials.DirectoryUser) *memoryDirectory {
	d := &memoryDirectory{users: make(map[string]*credentials.DirectoryUser)}
	for _, u := range users {
		if _, err := d.CreateUser(context.Background(), u); err != nil {
			panic(err)
		}
	}
	return d
}

func (d *memoryDirectory) FindByEmail(_ context.Context, email string) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	if u, ok := d.users[email]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, credentials.ErrUserNotFound
}

func (d *memoryDirectory) FindByUsername(_ context.Context, username string) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	for _, u := range d.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, credentials.ErrUserNotFound
}

func (d *memoryDirectory) CreateUser(_ context.Context, user credentials.DirectoryUser) (*credentials.DirectoryUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[user.Email]; ok {
		return nil, credentials.ErrIdentityTaken
	}
	d.nextID++
	user.ID = "user-" + strconv.Itoa(d.nextID)
	d.users[user.Email] = &user
	clone := user
	return &clone, nil
}

func (d *memoryDirectory) UpdatePassword(_ context.Context, email, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[email]
	if !ok {
		return credentials.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// activityRecorder collects activity events
type activityRecorder struct {
	mu     sync.Mutex
	events []credentials.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event credentials.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Events() []credentials.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]credentials.ActivityEvent(nil), r.events...)
}
