// Package daemon wires the request parser, the dispatcher and the transport
// together for qnotifyd. It also watches the configuration and layout files
// and reports reload results as self notifications.
package daemon
