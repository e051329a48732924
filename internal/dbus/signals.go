package dbus

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/qnotify/internal/model"
)

var errNotConnected = errors.New("notification server is not on the bus")

// EmitNotificationClosed sends NotificationClosed(id, reason).
func (s *NotificationServer) EmitNotificationClosed(id uint32, reason model.CloseReason) error {
	if err := s.emit("NotificationClosed", id, uint32(reason)); err != nil {
		return err
	}
	s.logger.Debug("notification closed", "id", id, "reason", reason.String())
	return nil
}

// EmitActionInvoked sends ActionInvoked(id, actionKey).
func (s *NotificationServer) EmitActionInvoked(id uint32, actionKey string) error {
	if err := s.emit("ActionInvoked", id, actionKey); err != nil {
		return err
	}
	s.logger.Debug("action invoked", "id", id, "action_key", actionKey)
	return nil
}

// InvokeAction reports an action click on id. Clicks on notifications that
// were already closed are refused.
func (s *NotificationServer) InvokeAction(id uint32, actionKey string) error {
	if !s.IsActive(id) {
		return fmt.Errorf("notification %d is not active", id)
	}
	return s.EmitActionInvoked(id, actionKey)
}

func (s *NotificationServer) emit(member string, args ...any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errNotConnected
	}
	if err := conn.Emit(DBusPath, DBusInterface+"."+member, args...); err != nil {
		return fmt.Errorf("failed to emit %s: %w", member, err)
	}
	return nil
}
