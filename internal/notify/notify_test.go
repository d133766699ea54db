package notify

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"ipwatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testMessage(first bool) Message {
	msg := Message{
		Observation: types.Observation{
			ID:         2,
			Address:    netip.MustParseAddr("198.51.100.9"),
			ObservedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		},
		First: first,
	}
	if !first {
		msg.Previous = netip.MustParseAddr("203.0.113.5")
	}
	return msg
}

type fakeNotifier struct {
	calls atomic.Int32
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, _ Message) error {
	f.calls.Add(1)
	return f.err
}

func TestMessageSubjectAndEventType(t *testing.T) {
	first := testMessage(true)
	assert.Equal(t, "[IP Watcher] First external IP detected: 198.51.100.9", first.Subject())
	assert.Equal(t, EventAddressFirst, first.EventType())

	changed := testMessage(false)
	assert.Equal(t, "[IP Watcher] External IP changed: 198.51.100.9", changed.Subject())
	assert.Equal(t, EventAddressChanged, changed.EventType())
}

func TestManagerDeliversToAllChannels(t *testing.T) {
	m, err := NewManager(nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	email, hook := &fakeNotifier{}, &fakeNotifier{}
	m.Register(ChannelEmail, email)
	m.Register(ChannelWebhook, hook)
	assert.Equal(t, []ChannelType{ChannelEmail, ChannelWebhook}, m.Channels())

	require.NoError(t, m.Notify(context.Background(), testMessage(true)))
	assert.Equal(t, int32(1), email.calls.Load())
	assert.Equal(t, int32(1), hook.calls.Load())
}

func TestManagerJoinsFailures(t *testing.T) {
	m, err := NewManager(nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	smtpDown := errors.New("relay unavailable")
	email, hook := &fakeNotifier{err: smtpDown}, &fakeNotifier{}
	m.Register(ChannelEmail, email)
	m.Register(ChannelWebhook, hook)

	err = m.Notify(context.Background(), testMessage(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotify)
	assert.ErrorIs(t, err, smtpDown)
	assert.Contains(t, err.Error(), "email")
	// The healthy channel is still attempted exactly once
	assert.Equal(t, int32(1), hook.calls.Load())
	assert.Equal(t, int32(1), email.calls.Load())
}

func TestManagerKeepsEveryFailure(t *testing.T) {
	m, err := NewManager(nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	smtpDown := errors.New("relay unavailable")
	hookDown := errors.New("endpoint returned 502")
	dnsDown := errors.New("zone locked")
	m.Register(ChannelEmail, &fakeNotifier{err: smtpDown})
	m.Register(ChannelWebhook, &fakeNotifier{err: hookDown})
	m.Register(ChannelDNS, &fakeNotifier{err: dnsDown})

	err = m.Notify(context.Background(), testMessage(false))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNotify)
	assert.ErrorIs(t, err, smtpDown)
	assert.ErrorIs(t, err, hookDown)
	assert.ErrorIs(t, err, dnsDown)
	for _, channel := range []string{"email", "webhook", "cloudflare"} {
		assert.Contains(t, err.Error(), channel)
	}
}

func TestManagerWithoutChannels(t *testing.T) {
	m, err := NewManager(nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = m.Notify(context.Background(), testMessage(true))
	assert.ErrorIs(t, err, types.ErrNotify)
}
