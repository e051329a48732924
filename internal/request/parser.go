// Package request turns the positional argument list of a Notify call into a
// model.Record.
package request

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/qnotify/internal/imagecodec"
	"github.com/jmylchreest/qnotify/internal/model"
)

// DefaultLookupTimeout bounds each icon lookup.
const DefaultLookupTimeout = 250 * time.Millisecond

// Positional argument indices of org.freedesktop.Notifications.Notify.
const (
	argAppName = iota
	argReplacesID
	argAppIcon
	argSummary
	argBody
	argActions
	argHints
	argTimeout
	argCount
)

// ImageHintKeys are the raw image hint names, highest priority first.
// "image_data" and "icon_data" are deprecated spellings still sent by older
// clients.
var ImageHintKeys = []string{"image-data", "image_data", "icon_data"}

// IconResolver looks up an icon by theme name.
type IconResolver interface {
	Lookup(ctx context.Context, name string) (image.Image, bool)
}

// Parser builds records from raw Notify arguments.
type Parser struct {
	resolver      IconResolver
	lookupTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewParser creates a parser. A nil resolver disables icon lookups; a
// non-positive timeout uses DefaultLookupTimeout.
func NewParser(resolver IconResolver, lookupTimeout time.Duration, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Parser{
		resolver:      resolver,
		lookupTimeout: lookupTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

// Parse builds a record from args. It never fails: missing, extra or
// malformed arguments fall back to field defaults.
func (p *Parser) Parse(ctx context.Context, args []any) model.Record {
	rec := model.Record{
		ID:         model.NewID(),
		TimeoutMS:  -1,
		Hints:      map[string]dbus.Variant{},
		ReceivedAt: p.now(),
	}

	for i := 0; i < len(args) && i < argCount; i++ {
		p.assign(&rec, i, args[i])
	}

	rec.ImagePayload = p.extractImage(rec.Hints)
	p.resolveIcons(ctx, &rec)

	return rec
}

func (p *Parser) assign(rec *model.Record, i int, v any) {
	ok := true
	switch i {
	case argAppName:
		rec.AppName, ok = asString(v)
	case argReplacesID:
		rec.ReplacesID, ok = asUint32(v)
	case argAppIcon:
		rec.IconRef, ok = asString(v)
	case argSummary:
		rec.Summary, ok = asString(v)
	case argBody:
		rec.Body, ok = asString(v)
	case argActions:
		rec.Actions, ok = asStrings(v)
	case argHints:
		var hints map[string]dbus.Variant
		if hints, ok = asHints(v); ok {
			rec.Hints = hints
		}
	case argTimeout:
		var timeout int32
		if timeout, ok = asInt32(v); ok {
			rec.TimeoutMS = timeout
		}
	}

	if !ok {
		p.logger.Debug("malformed notify argument, using default", "index", i, "type", typeName(v))
	}
}

// extractImage removes every raw image hint from hints and returns the
// highest priority one as an inline image string, or "" if none decodes.
func (p *Parser) extractImage(hints map[string]dbus.Variant) string {
	var raw any
	found := ""
	for _, key := range ImageHintKeys {
		if v, ok := hints[key]; ok {
			if found == "" {
				raw, found = v, key
			}
			delete(hints, key)
		}
	}
	if found == "" {
		return ""
	}

	pd, err := imagecodec.PixelDataFromArgs(raw)
	if err != nil {
		p.logger.Debug("ignoring malformed image hint", "hint", found, "error", err)
		return ""
	}

	img, err := imagecodec.DecodeWire(pd)
	if err != nil {
		p.logger.Debug("ignoring undecodable image hint", "hint", found, "error", err)
		return ""
	}
	if img.Bounds().Empty() {
		return ""
	}

	s, err := imagecodec.EncodeInline(img)
	if err != nil {
		p.logger.Debug("failed to inline image hint", "hint", found, "error", err)
		return ""
	}
	return s
}

func (p *Parser) resolveIcons(ctx context.Context, rec *model.Record) {
	if rec.IconRef != "" && !rec.HasInlineIcon() && !isLocalFile(rec.IconRef) {
		if s, ok := p.lookupInline(ctx, rec.IconRef); ok {
			rec.IconRef = s
		}
	}

	if rec.AppName != "" {
		if s, ok := p.lookupInline(ctx, rec.AppName); ok {
			rec.AppIconPayload = s
		}
	}
}

func (p *Parser) lookupInline(ctx context.Context, name string) (string, bool) {
	if p.resolver == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	defer cancel()

	name = strings.ToLower(name)
	img, ok := p.resolver.Lookup(ctx, name)
	if !ok || img == nil {
		p.logger.Debug("icon not found", "name", name)
		return "", false
	}

	s, err := imagecodec.EncodeInline(img)
	if err != nil {
		p.logger.Debug("failed to inline icon", "name", name, "error", err)
		return "", false
	}
	return s, true
}

// isLocalFile reports whether ref names an existing, readable regular file,
// either as a plain path or a file:// URI.
func isLocalFile(ref string) bool {
	path := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return false
		}
		path = u.Path
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	return err == nil && info.Mode().IsRegular()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
