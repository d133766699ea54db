package notify

import (
	"context"
	"fmt"
	"net/netip"

	"ipwatch/internal/types"
)

// ChannelType represents the type of notification channel
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelDNS     ChannelType = "cloudflare"
)

const (
	EventAddressFirst   = "address.first"
	EventAddressChanged = "address.changed"
)

// Message describes one recorded address worth reporting
type Message struct {
	// Observation is the durably recorded address
	Observation types.Observation
	// Previous is the prior address, invalid when First is set
	Previous netip.Addr
	// First marks the first address ever observed
	First bool
}

// Subject returns the human readable subject line
func (m Message) Subject() string {
	if m.First {
		return fmt.Sprintf("[IP Watcher] First external IP detected: %s", m.Observation.Address)
	}
	return fmt.Sprintf("[IP Watcher] External IP changed: %s", m.Observation.Address)
}

// EventType returns the machine readable event name
func (m Message) EventType() string {
	if m.First {
		return EventAddressFirst
	}
	return EventAddressChanged
}

// Notifier sends a single best-effort notification without retrying
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
