package model

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	a := NewID()
	b := NewID()

	_, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCloneDoesNotShareState(t *testing.T) {
	orig := Record{
		Summary: "hello",
		Actions: []string{"default", "Open"},
		Hints:   map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))},
	}

	c := orig.Clone()
	c.Actions[0] = "changed"
	c.Hints["urgency"] = dbus.MakeVariant(byte(0))

	assert.Equal(t, "default", orig.Actions[0])
	assert.Equal(t, UrgencyCritical, orig.Urgency())
	assert.Equal(t, UrgencyLow, c.Urgency())
}

func TestCloneNil(t *testing.T) {
	c := Record{Summary: "x"}.Clone()
	assert.Nil(t, c.Actions)
	assert.Nil(t, c.Hints)
}

func TestParsedActions(t *testing.T) {
	tests := []struct {
		name     string
		actions  []string
		expected []Action
	}{
		{
			name:     "empty",
			actions:  nil,
			expected: []Action{},
		},
		{
			name:     "single action",
			actions:  []string{"default", "Open"},
			expected: []Action{{Key: "default", Label: "Open"}},
		},
		{
			name:     "odd number (incomplete pair ignored)",
			actions:  []string{"default", "Open", "orphan"},
			expected: []Action{{Key: "default", Label: "Open"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Actions: tt.actions}
			assert.Equal(t, tt.expected, r.ParsedActions())
		})
	}
}

func TestUrgency(t *testing.T) {
	tests := []struct {
		name     string
		hints    map[string]dbus.Variant
		expected int
	}{
		{"no hint", nil, UrgencyNormal},
		{"low", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(0))}, UrgencyLow},
		{"critical", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(2))}, UrgencyCritical},
		{"out of range", map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(9))}, UrgencyNormal},
		{"wrong type", map[string]dbus.Variant{"urgency": dbus.MakeVariant("high")}, UrgencyNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Record{Hints: tt.hints}.Urgency())
		})
	}
}

func TestResidentAndCategory(t *testing.T) {
	r := Record{Hints: map[string]dbus.Variant{
		"resident": dbus.MakeVariant(true),
		"category": dbus.MakeVariant("email.arrived"),
	}}
	assert.True(t, r.Resident())
	assert.Equal(t, "email.arrived", r.Category())

	r.Hints = nil
	assert.False(t, r.Resident())
	assert.Equal(t, "", r.Category())
}

func TestHasInlineIcon(t *testing.T) {
	assert.False(t, Record{IconRef: "firefox"}.HasInlineIcon())
	assert.False(t, Record{IconRef: InlineImagePrefix}.HasInlineIcon())
	assert.True(t, Record{IconRef: InlineImagePrefix + "iVBORw0KGgo="}.HasInlineIcon())
}

func TestDisplayTimeout(t *testing.T) {
	def := 3 * time.Second
	tests := []struct {
		timeoutMS int32
		want      time.Duration
	}{
		{-1, def},
		{-500, def},
		{0, 0},
		{1500, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Record{TimeoutMS: tt.timeoutMS}.DisplayTimeout(def), "timeout %d", tt.timeoutMS)
	}
}

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}
