package daemon

import (
	"log/slog"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/qnotify/internal/dbus"
	"github.com/jmylchreest/qnotify/internal/model"
)

// NotificationLevel indicates the severity of an internal notification.
type NotificationLevel int

const (
	// NotificationLevelInfo is for informational messages (low urgency).
	NotificationLevelInfo NotificationLevel = iota
	// NotificationLevelWarning is for warning messages (normal urgency).
	NotificationLevelWarning
	// NotificationLevelError is for error messages (critical urgency).
	NotificationLevelError
)

// internalTimeoutMS is the display timeout of internal notifications.
const internalTimeoutMS = 5000

// DeliverFunc hands a positional Notify argument list to the intake path.
type DeliverFunc func(args []any)

// InternalNotifier sends notifications about qnotifyd's own events through
// the normal intake path. Repeats of the same key are rate limited.
type InternalNotifier struct {
	mu     sync.Mutex
	logger *slog.Logger

	deliver DeliverFunc

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration
	now            func() time.Time

	enabled bool
}

// NewInternalNotifier creates a new InternalNotifier.
func NewInternalNotifier(logger *slog.Logger) *InternalNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalNotifier{
		logger:         logger,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		now:            time.Now,
		enabled:        true,
	}
}

// SetDeliver sets the function internal notifications are delivered to.
func (n *InternalNotifier) SetDeliver(deliver DeliverFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliver = deliver
}

// SetEnabled enables or disables internal notifications.
func (n *InternalNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between notifications sharing a key.
func (n *InternalNotifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends an internal notification unless key was used within the
// minimum interval. It reports whether the notification was delivered.
func (n *InternalNotifier) Notify(key, summary, body string, level NotificationLevel) bool {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return false
	}
	deliver := n.deliver
	if deliver == nil {
		n.mu.Unlock()
		n.logger.Debug("internal notification skipped: no handler", "summary", summary)
		return false
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal notification rate-limited", "key", key, "summary", summary)
		return false
	}
	n.lastNotifyTime[key] = now
	n.mu.Unlock()

	n.logger.Debug("sending internal notification", "key", key, "summary", summary, "level", level)

	// Delivered outside the lock: the intake path may block on icon lookup.
	deliver(InternalArgs(summary, body, level))
	return true
}

// InternalArgs builds the positional Notify arguments for an internal
// notification.
func InternalArgs(summary, body string, level NotificationLevel) []any {
	urgency := byte(model.UrgencyNormal)
	icon := "dialog-warning"
	switch level {
	case NotificationLevelInfo:
		urgency = model.UrgencyLow
		icon = "dialog-information"
	case NotificationLevelError:
		urgency = model.UrgencyCritical
		icon = "dialog-error"
	}

	hints := map[string]godbus.Variant{
		"urgency":       godbus.MakeVariant(urgency),
		"category":      godbus.MakeVariant("device"),
		"transient":     godbus.MakeVariant(true),
		"desktop-entry": godbus.MakeVariant("qnotifyd"),
	}

	return dbus.NotifyArgs("qnotifyd", 0, icon, summary, body, nil, hints, internalTimeoutMS)
}

// NotifyConfigReloaded reports a successful configuration reload.
func (n *InternalNotifier) NotifyConfigReloaded() {
	n.Notify(
		"config-reload",
		"Configuration Reloaded",
		"qnotifyd configuration has been successfully reloaded.",
		NotificationLevelInfo,
	)
}

// NotifyConfigError reports a configuration file that failed to load.
func (n *InternalNotifier) NotifyConfigError(err error) {
	n.Notify(
		"config-error",
		"Configuration Error",
		"Failed to reload configuration: "+err.Error(),
		NotificationLevelWarning,
	)
}

// NotifyLayoutError reports a display template that failed to load.
func (n *InternalNotifier) NotifyLayoutError(err error) {
	n.Notify(
		"layout-error",
		"Layout Error",
		"Failed to load display template: "+err.Error(),
		NotificationLevelError,
	)
}
