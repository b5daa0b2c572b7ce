// Package notifier holds Notifier implementations that do not deliver real
// email: one writes messages to a logger, the other keeps them in memory.
package notifier

import (
	"context"
	"sync"

	credentials "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-print"
)

// Message is a rendered outbound notification.
type Message struct {
	Kind     string         `json:"kind"`
	To       string         `json:"to"`
	Payload  map[string]any `json:"payload"`
	Template string         `json:"template"`
}

const (
	KindVerification = "verification"
	KindRecoveryCode = "recovery_code"
	KindWelcome      = "welcome"
	KindUsername     = "username_reminder"
)

// LogNotifier writes every message to a logger. It never fails.
type LogNotifier struct {
	logger credentials.Logger
}

var _ credentials.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a LogNotifier writing to logger.
func NewLogNotifier(logger credentials.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.log(verificationMessage(email, token))
	return nil
}

func (n *LogNotifier) SendPasswordRecoveryCodeEmail(_ context.Context, email string, msg credentials.RecoveryCodeEmail) error {
	n.log(recoveryCodeMessage(email, msg))
	return nil
}

func (n *LogNotifier) SendWelcomeEmail(_ context.Context, email, username string) error {
	n.log(welcomeMessage(email, username))
	return nil
}

func (n *LogNotifier) SendUsernameReminderEmail(_ context.Context, email, username string) error {
	n.log(usernameReminderMessage(email, username))
	return nil
}

func (n *LogNotifier) log(msg Message) {
	n.logger.Info("notification %s to %s:\n%s", msg.Kind, msg.To, print.MaybePrettyJSON(msg))
}

// Outbox keeps sent messages in memory. Tests and local runs read them back
// to complete the flows.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	fail     map[string]error
}

var _ credentials.Notifier = (*Outbox)(nil)

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{fail: make(map[string]error)}
}

// FailWith makes every send of kind return err. A nil err clears it.
func (o *Outbox) FailWith(kind string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		delete(o.fail, kind)
		return
	}
	o.fail[kind] = err
}

func (o *Outbox) SendVerificationEmail(_ context.Context, email, token string) error {
	return o.push(verificationMessage(email, token))
}

func (o *Outbox) SendPasswordRecoveryCodeEmail(_ context.Context, email string, msg credentials.RecoveryCodeEmail) error {
	return o.push(recoveryCodeMessage(email, msg))
}

func (o *Outbox) SendWelcomeEmail(_ context.Context, email, username string) error {
	return o.push(welcomeMessage(email, username))
}

func (o *Outbox) SendUsernameReminderEmail(_ context.Context, email, username string) error {
	return o.push(usernameReminderMessage(email, username))
}

// Messages returns a copy of every delivered message.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the most recent message of kind sent to email.
func (o *Outbox) Last(kind, email string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Kind == kind && o.messages[i].To == email {
			return o.messages[i], true
		}
	}
	return Message{}, false
}

func (o *Outbox) push(msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[msg.Kind]; err != nil {
		return err
	}
	o.messages = append(o.messages, msg)
	return nil
}

func verificationMessage(email, token string) Message {
	return Message{
		Kind:     KindVerification,
		To:       email,
		Template: "email_verification",
		Payload:  map[string]any{"token": token},
	}
}

func recoveryCodeMessage(email string, msg credentials.RecoveryCodeEmail) Message {
	return Message{
		Kind:     KindRecoveryCode,
		To:       email,
		Template: "password_recovery_code",
		Payload: map[string]any{
			"username":           msg.Username,
			"token":              msg.Token,
			"code":               msg.Code,
			"expiration_minutes": msg.ExpirationMinutes,
		},
	}
}

func welcomeMessage(email, username string) Message {
	return Message{
		Kind:     KindWelcome,
		To:       email,
		Template: "welcome",
		Payload:  map[string]any{"username": username},
	}
}

func usernameReminderMessage(email, username string) Message {
	return Message{
		Kind:     KindUsername,
		To:       email,
		Template: "username_reminder",
		Payload:  map[string]any{"username": username},
	}
}
