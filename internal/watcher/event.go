package watcher

import (
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies a watcher event
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventIntervalClamped EventKind = "interval_clamped"
	EventFirstObserved   EventKind = "first_observed"
	EventChanged         EventKind = "changed"
	EventUnchanged       EventKind = "unchanged"
	EventNotified        EventKind = "notified"
	EventFailed          EventKind = "failed"
	EventStopped         EventKind = "stopped"
)

// Event is a structured record of something the watcher did
type Event struct {
	Kind     EventKind
	Stage    Stage
	Address  netip.Addr
	Previous netip.Addr
	// Delay is the startup jitter for EventStarted and the effective interval for EventIntervalClamped
	Delay time.Duration
	Err   error
	At    time.Time
}

// EventHandler receives watcher events synchronously
type EventHandler func(Event)

// LogEvents renders events as structured log lines
func LogEvents(logger *zap.Logger) EventHandler {
	return func(e Event) {
		fields := []zap.Field{zap.String("stage", string(e.Stage))}
		if e.Address.IsValid() {
			fields = append(fields, zap.String("address", e.Address.String()))
		}
		if e.Previous.IsValid() {
			fields = append(fields, zap.String("previous", e.Previous.String()))
		}

		switch e.Kind {
		case EventStarted:
			logger.Info("Watcher started", append(fields, zap.Duration("initial_delay", e.Delay))...)
		case EventIntervalClamped:
			logger.Warn("Check interval below minimum, clamped", append(fields, zap.Duration("interval", e.Delay))...)
		case EventFirstObserved:
			logger.Info("First external address detected", fields...)
		case EventChanged:
			logger.Info("External address changed", fields...)
		case EventUnchanged:
			logger.Info("External address unchanged", fields...)
		case EventNotified:
			logger.Info("Notification sent", fields...)
		case EventFailed:
			logger.Error("Cycle failed", append(fields, zap.Error(e.Err))...)
		case EventStopped:
			logger.Info("Watcher stopped", fields...)
		default:
			logger.Debug("Watcher event", append(fields, zap.String("kind", string(e.Kind)))...)
		}
	}
}
