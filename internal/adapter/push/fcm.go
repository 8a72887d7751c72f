package push

import (
	"context"
	"fmt"

	"coin-ledger/config"
	"coin-ledger/internal/core/domain"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// MessagingClient is the subset of *messaging.Client the sender needs.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender implements ports.PushSender with Firebase Cloud Messaging. Every
// user's devices subscribe to the topic user_<id>.
type FCMSender struct {
	client MessagingClient
	log    zerolog.Logger
}

// NewFCMSender initialises the Firebase app and its messaging client.
func NewFCMSender(ctx context.Context, cfg config.PushConfig, log zerolog.Logger) (*FCMSender, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging: %w", err)
	}
	return NewSender(client, log), nil
}

// NewSender wraps an existing messaging client.
func NewSender(client MessagingClient, log zerolog.Logger) *FCMSender {
	return &FCMSender{client: client, log: log}
}

// Topic returns the FCM topic a user's devices listen on.
func Topic(userID string) string {
	return "user_" + userID
}

// Send pushes n to the user's topic.
func (s *FCMSender) Send(ctx context.Context, n *domain.Notification) error {
	data := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = string(n.Kind)
	data["notification_id"] = n.ID.String()

	msg := &messaging.Message{
		Topic: Topic(n.UserID),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send to %s: %w", msg.Topic, err)
	}
	s.log.Debug().Str("message_id", id).Str("topic", msg.Topic).Msg("push sent")
	return nil
}

// LogSender implements ports.PushSender when push delivery is disabled.
// Notifications are still stored in-app; only the push is skipped.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the notification and reports success.
func (s *LogSender) Send(_ context.Context, n *domain.Notification) error {
	s.log.Debug().
		Str("user_id", n.UserID).
		Str("kind", string(n.Kind)).
		Msg("push disabled, notification kept in-app only")
	return nil
}
