package dbus

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Monitor passively observes D-Bus notification traffic without claiming ownership.
// This allows running alongside another notification daemon (like dunst).
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onRequest RequestHandler
}

// NewMonitor creates a new notification monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
	}
}

// SetRequestHandler sets the callback for observed Notify calls.
func (m *Monitor) SetRequestHandler(handler RequestHandler) {
	m.onRequest = handler
}

// Start begins monitoring D-Bus for notification traffic.
// A private connection is used because BecomeMonitor turns the connection
// into a receive-only monitor.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	m.conn = conn

	rules := []string{
		"type='method_call',interface='org.freedesktop.Notifications',member='Notify'",
	}

	// Eavesdrop must be set up before the monitor starts delivering messages.
	ch := make(chan *dbus.Message, 100)
	conn.Eavesdrop(ch)

	err = conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		rules,
		uint32(0),
	).Err
	if err != nil {
		// BecomeMonitor might not be available (older D-Bus versions)
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		if err := m.addEavesdropMatch(); err != nil {
			conn.Eavesdrop(nil)
			return err
		}
	} else {
		m.logger.Info("started D-Bus monitor using BecomeMonitor")
	}

	go m.processMessages(ch)
	return nil
}

// addEavesdropMatch uses the older AddMatch API for eavesdropping.
func (m *Monitor) addEavesdropMatch() error {
	matchRule := "type='method_call',interface='org.freedesktop.Notifications',member='Notify',eavesdrop='true'"

	err := m.conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch",
		0,
		matchRule,
	).Err
	if err != nil {
		return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")
	return nil
}

// processMessages reads D-Bus messages until the channel is closed.
func (m *Monitor) processMessages(ch <-chan *dbus.Message) {
	for msg := range ch {
		m.handleMessage(msg)
	}
}

// handleMessage forwards the untyped body of a Notify call. The body is not
// validated here: eavesdropped calls may be short or carry unexpected types.
func (m *Monitor) handleMessage(msg *dbus.Message) {
	if !isNotifyCall(msg) {
		return
	}

	m.logger.Debug("captured notification", "args", len(msg.Body))

	if m.onRequest != nil {
		m.onRequest(msg.Body, 0)
	}
}

// Stop stops the monitor.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
