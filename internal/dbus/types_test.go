package dbus

import (
	"encoding/xml"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/qnotify/internal/model"
)

type captured struct {
	args []any
	id   uint32
}

func recorder() (*[]captured, RequestHandler) {
	var got []captured
	return &got, func(args []any, id uint32) {
		got = append(got, captured{args: args, id: id})
	}
}

func TestNotifyForwardsPositionalArgs(t *testing.T) {
	s := NewNotificationServer(nil)
	got, handler := recorder()
	s.SetRequestHandler(handler)

	hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))}
	id, dErr := s.Notify("app", 0, "icon", "summary", "body", []string{"default", "Open"}, hints, 3000)
	require.Nil(t, dErr)

	require.Len(t, *got, 1)
	assert.Equal(t, id, (*got)[0].id)
	assert.Equal(t, []any{"app", uint32(0), "icon", "summary", "body", []string{"default", "Open"}, hints, int32(3000)}, (*got)[0].args)
	assert.True(t, s.IsActive(id))
}

func TestNotifyIDs(t *testing.T) {
	s := NewNotificationServer(nil)

	first, _ := s.Notify("a", 0, "", "s", "", nil, nil, -1)
	second, _ := s.Notify("a", 0, "", "s", "", nil, nil, -1)
	assert.NotZero(t, first)
	assert.Greater(t, second, first)

	replaced, _ := s.Notify("a", first, "", "s", "", nil, nil, -1)
	assert.Equal(t, first, replaced)
}

func TestAllocateIDSkipsZero(t *testing.T) {
	s := NewNotificationServer(nil)
	s.nextID.Store(^uint32(0))
	assert.Equal(t, uint32(1), s.allocateID())
}

func TestCloseNotification(t *testing.T) {
	s := NewNotificationServer(nil)
	var closed []uint32
	s.SetCloseHandler(func(id uint32) { closed = append(closed, id) })

	id, _ := s.Notify("a", 0, "", "s", "", nil, nil, -1)

	assert.Nil(t, s.CloseNotification(id))
	assert.Equal(t, []uint32{id}, closed)
	assert.False(t, s.IsActive(id))

	// Unknown or already closed ids are ignored.
	assert.Nil(t, s.CloseNotification(id))
	assert.Nil(t, s.CloseNotification(999))
	assert.Equal(t, []uint32{id}, closed)
}

func TestRetire(t *testing.T) {
	s := NewNotificationServer(nil)
	id, _ := s.Notify("a", 0, "", "s", "", nil, nil, -1)

	// Not connected: the signal fails but the id is still retired.
	s.Retire(id, model.CloseReasonExpired)
	assert.False(t, s.IsActive(id))
	assert.False(t, s.MarkClosed(id))
}

func TestNotifyInternal(t *testing.T) {
	s := NewNotificationServer(nil)
	got, handler := recorder()
	s.SetRequestHandler(handler)

	args := []any{"qnotifyd", uint32(0), "dialog-information", "Config reloaded"}
	id := s.NotifyInternal(args)

	require.Len(t, *got, 1)
	assert.Equal(t, args, (*got)[0].args)
	assert.Equal(t, id, (*got)[0].id)
	assert.True(t, s.IsActive(id))
}

func TestInvokeActionRequiresActive(t *testing.T) {
	s := NewNotificationServer(nil)
	assert.Error(t, s.InvokeAction(42, "default"))
}

func TestSignalsRequireConnection(t *testing.T) {
	s := NewNotificationServer(nil)
	assert.ErrorIs(t, s.EmitNotificationClosed(1, model.CloseReasonExpired), errNotConnected)
	assert.ErrorIs(t, s.EmitActionInvoked(1, "default"), errNotConnected)
}

func TestIntrospectionData(t *testing.T) {
	var node introspect.Node
	require.NoError(t, xml.Unmarshal([]byte(introspectXML), &node))

	var iface *introspect.Interface
	for i := range node.Interfaces {
		if node.Interfaces[i].Name == DBusInterface {
			iface = &node.Interfaces[i]
		}
	}
	require.NotNil(t, iface)

	var methods, signals []string
	for _, m := range iface.Methods {
		methods = append(methods, m.Name)
		if m.Name == "Notify" {
			assert.Len(t, m.Args, 9)
		}
	}
	for _, sig := range iface.Signals {
		signals = append(signals, sig.Name)
	}
	assert.ElementsMatch(t, []string{"GetCapabilities", "GetServerInformation", "Notify", "CloseNotification"}, methods)
	assert.ElementsMatch(t, []string{"NotificationClosed", "ActionInvoked"}, signals)
}

func TestServerInformation(t *testing.T) {
	s := NewNotificationServer(nil)
	s.SetServerInfo(ServerInfo{Name: "n", Vendor: "v", Version: "1", SpecVersion: "1.2"})

	name, vendor, version, spec, dErr := s.GetServerInformation()
	require.Nil(t, dErr)
	assert.Equal(t, []string{"n", "v", "1", "1.2"}, []string{name, vendor, version, spec})

	caps, dErr := s.GetCapabilities()
	require.Nil(t, dErr)
	assert.Contains(t, caps, "actions")
	assert.Contains(t, caps, "body-markup")
}

func notifyMessage(body ...any) *dbus.Message {
	return &dbus.Message{
		Type: dbus.TypeMethodCall,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldInterface: dbus.MakeVariant(DBusInterface),
			dbus.FieldMember:    dbus.MakeVariant("Notify"),
			dbus.FieldPath:      dbus.MakeVariant(dbus.ObjectPath(DBusPath)),
		},
		Body: body,
	}
}

func TestMonitorForwardsRawBody(t *testing.T) {
	m := NewMonitor(nil)
	got, handler := recorder()
	m.SetRequestHandler(handler)

	// Short and wrong-typed bodies are forwarded untouched.
	m.handleMessage(notifyMessage("app", "not-a-uint"))
	m.handleMessage(notifyMessage())

	require.Len(t, *got, 2)
	assert.Equal(t, []any{"app", "not-a-uint"}, (*got)[0].args)
	assert.Zero(t, (*got)[0].id)
	assert.Empty(t, (*got)[1].args)
}

func TestMonitorIgnoresOtherMessages(t *testing.T) {
	m := NewMonitor(nil)
	got, handler := recorder()
	m.SetRequestHandler(handler)

	other := notifyMessage("x")
	other.Headers[dbus.FieldMember] = dbus.MakeVariant("CloseNotification")
	m.handleMessage(other)

	signal := notifyMessage("x")
	signal.Type = dbus.TypeSignal
	m.handleMessage(signal)

	wrongIface := notifyMessage("x")
	wrongIface.Headers[dbus.FieldInterface] = dbus.MakeVariant("org.example.Other")
	m.handleMessage(wrongIface)

	noIface := notifyMessage("x")
	delete(noIface.Headers, dbus.FieldInterface)
	m.handleMessage(noIface)

	m.handleMessage(nil)

	assert.Empty(t, *got)
}

func TestNotifyArgsOrder(t *testing.T) {
	args := NotifyArgs("a", 1, "i", "s", "b", []string{"k", "l"}, nil, -1)
	require.Len(t, args, 8)
	assert.Equal(t, "a", args[0])
	assert.Equal(t, uint32(1), args[1])
	assert.Equal(t, "s", args[3])
	assert.Equal(t, int32(-1), args[7])
}
