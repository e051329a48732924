package dbus

import (
	"github.com/godbus/dbus/v5"
)

// RequestHandler receives the positional arguments of one Notify call:
// app_name, replaces_id, app_icon, summary, body, actions, hints,
// expire_timeout. The list may be short or wrong-typed when it was
// eavesdropped. id is the notification id assigned by this server, or 0 in
// monitor mode.
type RequestHandler func(args []any, id uint32)

// CloseHandler is asked to take id off screen when a client closes it.
type CloseHandler func(id uint32)

// NotifyArgs returns the Notify parameters as the positional list passed to
// a RequestHandler.
func NotifyArgs(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) []any {
	return []any{appName, replacesID, appIcon, summary, body, actions, hints, expireTimeout}
}

// ServerCapabilities is what GetCapabilities reports. Popups render
// actions, body text with Pango markup and one static icon.
var ServerCapabilities = []string{"actions", "body", "body-markup", "icon-static"}

// ServerInfo is the GetServerInformation reply.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo is used until the daemon sets its build version.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{Name: "qnotifyd", Vendor: "qnotify", Version: "dev", SpecVersion: "1.2"}
}

// isNotifyCall reports whether msg is a Notify method call on the
// notification interface.
func isNotifyCall(msg *dbus.Message) bool {
	if msg == nil || msg.Type != dbus.TypeMethodCall {
		return false
	}
	iface, ok := msg.Headers[dbus.FieldInterface]
	if !ok || iface.Value() != DBusInterface {
		return false
	}
	member, ok := msg.Headers[dbus.FieldMember]
	return ok && member.Value() == "Notify"
}
