package dbus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/qnotify/internal/model"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the bus name to claim.
	DBusBusName = "org.freedesktop.Notifications"
)

const introspectXML = `
<node>
	<interface name="` + DBusInterface + `">
		<method name="GetCapabilities">
			<arg name="capabilities" type="as" direction="out"/>
		</method>
		<method name="GetServerInformation">
			<arg name="name" type="s" direction="out"/>
			<arg name="vendor" type="s" direction="out"/>
			<arg name="version" type="s" direction="out"/>
			<arg name="spec_version" type="s" direction="out"/>
		</method>
		<method name="Notify">
			<arg name="app_name" type="s" direction="in"/>
			<arg name="replaces_id" type="u" direction="in"/>
			<arg name="app_icon" type="s" direction="in"/>
			<arg name="summary" type="s" direction="in"/>
			<arg name="body" type="s" direction="in"/>
			<arg name="actions" type="as" direction="in"/>
			<arg name="hints" type="a{sv}" direction="in"/>
			<arg name="expire_timeout" type="i" direction="in"/>
			<arg name="id" type="u" direction="out"/>
		</method>
		<method name="CloseNotification">
			<arg name="id" type="u" direction="in"/>
		</method>
		<signal name="NotificationClosed">
			<arg name="id" type="u"/>
			<arg name="reason" type="u"/>
		</signal>
		<signal name="ActionInvoked">
			<arg name="id" type="u"/>
			<arg name="action_key" type="s"/>
		</signal>
	</interface>` + introspect.IntrospectDataString + `
</node>`

// NotificationServer owns the notification bus name and turns every Notify
// call into a positional argument list for the intake path. It remembers
// which ids are still outstanding so that each one is closed exactly once.
type NotificationServer struct {
	conn   *dbus.Conn
	logger *slog.Logger

	nextID atomic.Uint32

	requestHandler RequestHandler
	closeHandler   CloseHandler

	mu          sync.RWMutex
	outstanding map[uint32]struct{}
	serverInfo  ServerInfo
	running     bool
}

// NewNotificationServer creates a new NotificationServer.
func NewNotificationServer(logger *slog.Logger) *NotificationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationServer{
		logger:      logger,
		outstanding: make(map[uint32]struct{}),
		serverInfo:  DefaultServerInfo(),
	}
}

// SetRequestHandler sets the handler every accepted request is passed to.
func (s *NotificationServer) SetRequestHandler(handler RequestHandler) {
	s.requestHandler = handler
}

// SetCloseHandler sets the handler run before a CloseNotification is
// acknowledged with NotificationClosed.
func (s *NotificationServer) SetCloseHandler(handler CloseHandler) {
	s.closeHandler = handler
}

// SetServerInfo sets what GetServerInformation reports.
func (s *NotificationServer) SetServerInfo(info ServerInfo) {
	s.serverInfo = info
}

// Start serves on the session bus.
func (s *NotificationServer) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return s.StartConn(conn)
}

// StartConn exports the server on conn and claims DBusBusName, replacing
// an existing owner that allows it.
func (s *NotificationServer) StartConn(conn *dbus.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	if err := conn.Export(s, DBusPath, DBusInterface); err != nil {
		return fmt.Errorf("failed to export %s: %w", DBusInterface, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), DBusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection data: %w", err)
	}

	reply, err := conn.RequestName(DBusBusName, dbus.NameFlagDoNotQueue|dbus.NameFlagReplaceExisting)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", DBusBusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("%s is owned by another notification server (try --monitor)", DBusBusName)
	}

	s.conn = conn
	s.running = true
	s.logger.Info("owning notification bus name", "name", DBusBusName)
	return nil
}

// Stop gives up the bus name. The shared session connection stays open.
func (s *NotificationServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if _, err := s.conn.ReleaseName(DBusBusName); err != nil {
		s.logger.Warn("failed to release bus name", "name", DBusBusName, "error", err)
	}
	s.logger.Info("released notification bus name", "name", DBusBusName)
	return nil
}

// GetCapabilities is the D-Bus method GetCapabilities() -> as.
func (s *NotificationServer) GetCapabilities() ([]string, *dbus.Error) {
	return ServerCapabilities, nil
}

// GetServerInformation is the D-Bus method GetServerInformation() -> (ssss).
func (s *NotificationServer) GetServerInformation() (string, string, string, string, *dbus.Error) {
	info := s.serverInfo
	return info.Name, info.Vendor, info.Version, info.SpecVersion, nil
}

// Notify is the D-Bus method Notify(susssasa{sv}i) -> u. The typed
// arguments are put back into their positional order before intake.
//
// A non-zero replaces_id is echoed back as the id; the request is still
// queued as a new notification.
func (s *NotificationServer) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	id := replacesID
	if id == 0 {
		id = s.allocateID()
	}

	s.logger.Debug("notify request", "id", id, "app", appName, "replaces_id", replacesID)
	s.accept(NotifyArgs(appName, replacesID, appIcon, summary, body, actions, hints, expireTimeout), id)
	return id, nil
}

// NotifyInternal queues a notification raised by the daemon itself under a
// fresh id, exactly as if it had arrived over the bus.
func (s *NotificationServer) NotifyInternal(args []any) uint32 {
	id := s.allocateID()
	s.logger.Debug("internal notify request", "id", id)
	s.accept(args, id)
	return id
}

func (s *NotificationServer) accept(args []any, id uint32) {
	s.mu.Lock()
	s.outstanding[id] = struct{}{}
	s.mu.Unlock()

	if s.requestHandler != nil {
		s.requestHandler(args, id)
	}
}

// allocateID returns the next id, skipping 0 on wrap-around.
func (s *NotificationServer) allocateID() uint32 {
	for {
		if id := s.nextID.Add(1); id != 0 {
			return id
		}
	}
}

// CloseNotification is the D-Bus method CloseNotification(u). Unknown or
// already closed ids are ignored.
func (s *NotificationServer) CloseNotification(id uint32) *dbus.Error {
	if !s.MarkClosed(id) {
		s.logger.Debug("close request for unknown id", "id", id)
		return nil
	}

	if s.closeHandler != nil {
		s.closeHandler(id)
	}
	if err := s.EmitNotificationClosed(id, model.CloseReasonClosed); err != nil {
		s.logger.Warn("failed to emit NotificationClosed signal", "id", id, "error", err)
	}
	return nil
}

// Retire closes id with reason once its record has left the display. It
// does nothing for an id that is unknown or already closed.
func (s *NotificationServer) Retire(id uint32, reason model.CloseReason) {
	if !s.MarkClosed(id) {
		return
	}
	if err := s.EmitNotificationClosed(id, reason); err != nil {
		s.logger.Warn("failed to emit NotificationClosed signal", "id", id, "error", err)
	}
}

// MarkClosed forgets id and reports whether it was outstanding.
func (s *NotificationServer) MarkClosed(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outstanding[id]; !ok {
		return false
	}
	delete(s.outstanding, id)
	return true
}

// IsActive reports whether id has been handed out and not closed yet.
func (s *NotificationServer) IsActive(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outstanding[id]
	return ok
}
