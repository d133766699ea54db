package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"ipwatch/internal/config"
	ntpl "ipwatch/internal/notify/template"
	"ipwatch/internal/types"

	"go.uber.org/zap"
)

// Manager delivers each message to every registered channel concurrently
type Manager struct {
	logger    *zap.Logger
	notifiers map[ChannelType]Notifier
	mu        sync.RWMutex
}

// NewManager creates a manager with the enabled channels
func NewManager(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger:    logger,
		notifiers: make(map[ChannelType]Notifier),
	}
	if cfg == nil {
		return m, nil
	}
	smtpCfg, webhookCfg := &cfg.SMTP, &cfg.Webhook

	if smtpCfg.Enabled {
		templates, err := ntpl.NewSet(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load email templates: %w", err)
		}
		if err := templates.Override(smtpCfg.Templates); err != nil {
			return nil, fmt.Errorf("failed to load custom templates: %w", err)
		}

		notifier, err := NewEmailNotifier(smtpCfg, templates, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize email notifier: %w", err)
		}
		m.Register(ChannelEmail, notifier)
	}

	if webhookCfg.Enabled {
		notifier, err := NewWebhookNotifier(webhookCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize webhook notifier: %w", err)
		}
		m.Register(ChannelWebhook, notifier)
	}

	if cfg.Cloudflare.Enabled {
		notifier, err := NewCloudflareNotifier(&cfg.Cloudflare, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloudflare notifier: %w", err)
		}
		m.Register(ChannelDNS, notifier)
	}

	return m, nil
}

// Register adds or replaces the notifier for a channel
func (m *Manager) Register(channel ChannelType, notifier Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notifiers[channel] = notifier
	m.logger.Info("Notification channel enabled", zap.String("channel", string(channel)))
}

// Channels returns the registered channel names in sorted order
func (m *Manager) Channels() []ChannelType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]ChannelType, 0, len(m.notifiers))
	for channel := range m.notifiers {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Notify attempts every channel once. A failure on one channel does not stop
// the others; the result joins every failure under types.ErrNotify.
func (m *Manager) Notify(ctx context.Context, msg Message) error {
	m.mu.RLock()
	notifiers := make(map[ChannelType]Notifier, len(m.notifiers))
	for channel, notifier := range m.notifiers {
		notifiers[channel] = notifier
	}
	m.mu.RUnlock()

	if len(notifiers) == 0 {
		return fmt.Errorf("%w: no notification channels configured", types.ErrNotify)
	}

	// One slot per channel so every failure is kept, not just the first
	var wg sync.WaitGroup
	errs := make([]error, len(notifiers))
	i := 0
	for channel, notifier := range notifiers {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			if err := notifier.Notify(ctx, msg); err != nil {
				errs[slot] = fmt.Errorf("%s: %w", channel, err)
				return
			}
			m.logger.Debug("Notification delivered",
				zap.String("channel", string(channel)),
				zap.String("event_type", msg.EventType()))
		}(i)
		i++
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", types.ErrNotify, err)
	}
	return nil
}
