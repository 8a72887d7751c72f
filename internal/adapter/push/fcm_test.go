package push

import (
	"context"
	"errors"
	"testing"

	"coin-ledger/internal/core/domain"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessaging struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeMessaging) Send(_ context.Context, m *messaging.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, m)
	return "projects/dating-app/messages/1", nil
}

func TestFCMSender_Send(t *testing.T) {
	client := &fakeMessaging{}
	sender := NewSender(client, zerolog.Nop())

	n := domain.NewExpiredNotification("u42", 40)
	n.ID = uuid.New()

	require.NoError(t, sender.Send(context.Background(), &n))
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "user_u42", msg.Topic)
	assert.Equal(t, "Coins Expired", msg.Notification.Title)
	assert.Equal(t, "coins_expired", msg.Data["type"])
	assert.Equal(t, "40", msg.Data["expired_coins"])
	assert.Equal(t, n.ID.String(), msg.Data["notification_id"])
	assert.Equal(t, "high", msg.Android.Priority)
	assert.NotContains(t, n.Data, "type", "notification data is not mutated")
}

func TestFCMSender_SendError(t *testing.T) {
	sender := NewSender(&fakeMessaging{err: errors.New("quota exceeded")}, zerolog.Nop())
	n := domain.NewExpiredNotification("u1", 5)

	err := sender.Send(context.Background(), &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_u1")
}

func TestLogSender(t *testing.T) {
	n := domain.NewExpiredNotification("u1", 5)
	assert.NoError(t, NewLogSender(zerolog.Nop()).Send(context.Background(), &n))
}
