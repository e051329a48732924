// Package dbus implements the org.freedesktop.Notifications D-Bus interface.
// It provides a server that owns the notification service, and a monitor
// that eavesdrops on Notify calls addressed to another server. Both hand the
// raw positional arguments of each request to a RequestHandler.
package dbus
