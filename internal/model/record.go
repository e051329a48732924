// Package model defines the canonical notification record handed from the
// request parser to the dispatcher and renderers.
package model

import (
	"crypto/rand"
	"maps"
	"slices"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/oklog/ulid/v2"
)

// InlineImagePrefix is the media-type marker every inline image string starts with.
const InlineImagePrefix = "data:image/png;base64,"

// Urgency levels carried by the "urgency" hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Record is one fully parsed notification request.
// A Record is a value: once it has been enqueued it is never mutated, and
// Clone must be used before handing it to code that may modify it.
type Record struct {
	// ID is a ULID assigned at parse time, used for log correlation.
	ID string
	// NotifyID is the transport-level notification id (0 in monitor mode).
	NotifyID uint32

	AppName    string
	ReplacesID uint32 // 0 = new notification; passed through, never acted on
	IconRef    string // file path, theme key, or inline image string
	Summary    string
	Body       string   // may contain markup, opaque here
	Actions    []string // alternating key, label pairs
	Hints      map[string]dbus.Variant
	TimeoutMS  int32 // -1 = server default, 0 = never expire

	// ImagePayload is an inline image string decoded from the raw image hint.
	ImagePayload string
	// AppIconPayload is an inline image string resolved from AppName.
	AppIconPayload string

	ReceivedAt time.Time
}

// NewID generates a new ULID string for a record.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	c := r
	c.Actions = slices.Clone(r.Actions)
	c.Hints = maps.Clone(r.Hints)
	return c
}

// HasImage reports whether a raw image hint was decoded into ImagePayload.
func (r Record) HasImage() bool {
	return r.ImagePayload != ""
}

// HasInlineIcon reports whether IconRef was rewritten to an inline image.
func (r Record) HasInlineIcon() bool {
	return len(r.IconRef) > len(InlineImagePrefix) && r.IconRef[:len(InlineImagePrefix)] == InlineImagePrefix
}

// DisplayTimeout resolves TimeoutMS: negative uses def, zero means the
// display never expires and is reported as 0.
func (r Record) DisplayTimeout(def time.Duration) time.Duration {
	if r.TimeoutMS < 0 {
		return def
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ParsedActions converts the action array to structured form.
// Actions are passed as alternating key/label pairs; a trailing odd key is dropped.
func (r Record) ParsedActions() []Action {
	actions := make([]Action, 0, len(r.Actions)/2)
	for i := 0; i+1 < len(r.Actions); i += 2 {
		actions = append(actions, Action{
			Key:   r.Actions[i],
			Label: r.Actions[i+1],
		})
	}
	return actions
}

// Urgency extracts the urgency hint from the record.
// Returns UrgencyNormal if not specified.
func (r Record) Urgency() int {
	if v, ok := r.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok && b <= UrgencyCritical {
			return int(b)
		}
	}
	return UrgencyNormal
}

// Resident returns true if the resident hint is set.
// Resident notifications are not closed after an action is invoked.
func (r Record) Resident() bool {
	if v, ok := r.Hints["resident"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Category extracts the category hint.
func (r Record) Category() string {
	if v, ok := r.Hints["category"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// CloseReason represents the reason a notification display ended.
// These values are defined by the freedesktop.org Desktop Notifications protocol.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by freedesktop.org.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}
