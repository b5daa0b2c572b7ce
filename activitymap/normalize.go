// Package activitymap turns credential activity events into flat audit
// records for log pipelines.
package activitymap

import (
	"context"
	"strings"
	"time"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-print"
)

const (
	// MetadataKeyOutcome stores the event outcome.
	MetadataKeyOutcome = "outcome"
	// MetadataKeyStatus stores the verification status of code events.
	MetadataKeyStatus = "status"
)

const (
	defaultChannel    = "credentials"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(credentials.ActivityEvent) string
	now              func() time.Time
}

// Normalize converts an activity event into the normalized shape. The subject
// is both the actor and the object since every flow acts on its own account.
func Normalize(event credentials.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.Subject),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(credentials.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event has no subject.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// LogSink writes normalized events to a logger. It implements
// credentials.ActivitySink.
type LogSink struct {
	logger credentials.Logger
	opts   []Option
}

var _ credentials.ActivitySink = (*LogSink)(nil)

func NewLogSink(logger credentials.Logger, opts ...Option) *LogSink {
	if logger == nil {
		logger = credentials.DefaultLogger()
	}
	return &LogSink{logger: logger, opts: opts}
}

func (s *LogSink) Record(_ context.Context, event credentials.ActivityEvent) error {
	record := Normalize(event, s.opts...)
	if event.Outcome == credentials.ActivityOutcomeFailure {
		s.logger.Warn("activity %s:\n%s", record.Verb, print.MaybePrettyJSON(record))
		return nil
	}
	s.logger.Info("activity %s:\n%s", record.Verb, print.MaybePrettyJSON(record))
	return nil
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func resolveObjectID(event credentials.ActivityEvent, resolver func(credentials.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.Subject)
}

func normalizeMetadata(event credentials.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if outcome := strings.TrimSpace(event.Outcome); outcome != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyOutcome]; !exists {
			metadata[MetadataKeyOutcome] = outcome
		}
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
