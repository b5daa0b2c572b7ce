package credentials

import (
	"context"
	"errors"
	"time"
)

// ActivityEventType enumerates the events reported by the flows.
type ActivityEventType string

const (
	ActivityEventRecoveryCodeRequested ActivityEventType = "credentials.recovery.code_requested"
	ActivityEventRecoveryCodeVerified  ActivityEventType = "credentials.recovery.code_verified"
	ActivityEventPasswordReset         ActivityEventType = "credentials.password.reset"
	ActivityEventRegistrationStaged    ActivityEventType = "credentials.registration.staged"
	ActivityEventRegistrationConfirmed ActivityEventType = "credentials.registration.confirmed"
	ActivityEventCredentialRevoked     ActivityEventType = "credentials.token.revoked"
	ActivityEventLogin                 ActivityEventType = "credentials.login"
	ActivityEventUsernameReminded      ActivityEventType = "credentials.username.reminded"
)

// Activity outcomes.
const (
	ActivityOutcomeSuccess = "success"
	ActivityOutcomeFailure = "failure"
)

// ActivityEvent captures audit friendly information about a flow.
type ActivityEvent struct {
	EventType  ActivityEventType
	Subject    string
	Outcome    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// ActivityFanout forwards each event to every sink. Errors are joined and do
// not stop delivery to the remaining sinks.
type ActivityFanout []ActivitySink

func NewActivityFanout(sinks ...ActivitySink) ActivityFanout {
	out := make(ActivityFanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f ActivityFanout) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error for %s: %v", event.EventType, err)
	}
}
