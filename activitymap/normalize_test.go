package activitymap_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := credentials.ActivityEvent{
		EventType: credentials.ActivityEventRecoveryCodeVerified,
		Subject:   "ada@example.com",
		Outcome:   credentials.ActivityOutcomeFailure,
		Metadata: map[string]any{
			activitymap.MetadataKeyStatus: "mismatch",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "ada@example.com" {
		t.Fatalf("expected actor_id ada@example.com, got %q", out.ActorID)
	}
	if out.Verb != string(credentials.ActivityEventRecoveryCodeVerified) {
		t.Fatalf("expected verb %q, got %q", credentials.ActivityEventRecoveryCodeVerified, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "ada@example.com" {
		t.Fatalf("expected object_id ada@example.com, got %q", out.ObjectID)
	}
	if out.Channel != "credentials" {
		t.Fatalf("expected channel credentials, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyStatus] != "mismatch" {
		t.Fatalf("expected metadata status mismatch, got %#v", out.Metadata[activitymap.MetadataKeyStatus])
	}
	if out.Metadata[activitymap.MetadataKeyOutcome] != credentials.ActivityOutcomeFailure {
		t.Fatalf("expected metadata outcome failure, got %#v", out.Metadata[activitymap.MetadataKeyOutcome])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	event := credentials.ActivityEvent{
		EventType: credentials.ActivityEventCredentialRevoked,
		Metadata: map[string]any{
			"jti":                          "token-1",
			activitymap.MetadataKeyOutcome: "existing",
		},
		Outcome: credentials.ActivityOutcomeSuccess,
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("credential"),
		activitymap.WithActorFallback("system"),
		activitymap.WithClock(func() time.Time { return now }),
		activitymap.WithObjectIDResolver(func(e credentials.ActivityEvent) string {
			if v, ok := e.Metadata["jti"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "credential" {
		t.Fatalf("expected object_type credential, got %q", out.ObjectType)
	}
	if out.ObjectID != "token-1" {
		t.Fatalf("expected object_id token-1, got %q", out.ObjectID)
	}
	if out.ActorID != "system" {
		t.Fatalf("expected actor fallback system, got %q", out.ActorID)
	}
	if !out.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v, got %v", now, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyOutcome] != "existing" {
		t.Fatalf("expected existing outcome metadata to win, got %#v", out.Metadata[activitymap.MetadataKeyOutcome])
	}
}

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *lineLogger) Debug(format string, args ...any) { l.add("debug", format, args...) }
func (l *lineLogger) Info(format string, args ...any)  { l.add("info", format, args...) }
func (l *lineLogger) Warn(format string, args ...any)  { l.add("warn", format, args...) }
func (l *lineLogger) Error(format string, args ...any) { l.add("error", format, args...) }

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	logger := &lineLogger{}
	sink := activitymap.NewLogSink(logger)

	ctx := context.Background()
	if err := sink.Record(ctx, credentials.ActivityEvent{
		EventType: credentials.ActivityEventPasswordReset,
		Subject:   "grace@example.com",
		Outcome:   credentials.ActivityOutcomeSuccess,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Record(ctx, credentials.ActivityEvent{
		EventType: credentials.ActivityEventRecoveryCodeRequested,
		Subject:   "grace@example.com",
		Outcome:   credentials.ActivityOutcomeFailure,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(logger.lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(logger.lines))
	}
	if !strings.HasPrefix(logger.lines[0], "info activity credentials.password.reset") {
		t.Fatalf("unexpected first line %q", logger.lines[0])
	}
	if !strings.HasPrefix(logger.lines[1], "warn activity credentials.recovery.code_requested") {
		t.Fatalf("unexpected second line %q", logger.lines[1])
	}
	if !strings.Contains(logger.lines[0], "grace@example.com") {
		t.Fatalf("expected subject in log line, got %q", logger.lines[0])
	}
}
