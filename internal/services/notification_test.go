package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogOnlyNotifier(t *testing.T, perMinute int) *NotificationService {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewNotificationService("", 0, perMinute, logger)
}

func TestSendLogOnlyMode(t *testing.T) {
	ns := newLogOnlyNotifier(t, 20)

	result, err := ns.Send(context.Background(), "hola", true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ID)
}

func TestSendRateLimitExhausted(t *testing.T) {
	ns := newLogOnlyNotifier(t, 2)

	for i := 0; i < 2; i++ {
		_, err := ns.Send(context.Background(), "ok", false)
		require.NoError(t, err)
	}

	result, err := ns.Send(context.Background(), "dropped", false)
	assert.ErrorIs(t, err, ErrOutboundRateLimited)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestSendRateLimitSlidingWindow(t *testing.T) {
	ns := newLogOnlyNotifier(t, 2)
	current := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	ns.now = func() time.Time { return current }

	for i := 0; i < 2; i++ {
		_, err := ns.Send(context.Background(), "ok", false)
		require.NoError(t, err)
	}
	_, err := ns.Send(context.Background(), "dropped", false)
	require.ErrorIs(t, err, ErrOutboundRateLimited)

	// Once the window slides past the earlier sends, budget frees up.
	current = current.Add(61 * time.Second)
	result, err := ns.Send(context.Background(), "ok again", false)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestNotificationDefaultsPerMinute(t *testing.T) {
	ns := newLogOnlyNotifier(t, 0)
	assert.Equal(t, 20, ns.perMinute)
}
