// Package imagesource turns the icon and image references carried by a
// notification record into something a toolkit can load. Inline images are
// decoded to PNG bytes in memory; nothing is written to disk.
package imagesource

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/qnotify/internal/imagecodec"
)

// ErrNotInline is returned when a data: reference is not an inline PNG.
var ErrNotInline = errors.New("not an inline image")

// Kind classifies an icon or image reference.
type Kind int

const (
	// KindNone is an empty reference.
	KindNone Kind = iota
	// KindFile is a local file path.
	KindFile
	// KindIconName is a theme icon name.
	KindIconName
	// KindPNG is encoded PNG data held in memory.
	KindPNG
)

// Source is a resolved reference. Exactly one of Path, Name or Data is set,
// matching Kind.
type Source struct {
	Kind Kind
	Path string
	Name string
	Data []byte
}

// IsZero reports whether s refers to nothing.
func (s Source) IsZero() bool { return s.Kind == KindNone }

// Resolve classifies ref: inline images become PNG bytes, file:// URIs and
// absolute paths become files and anything else is an icon name.
func Resolve(ref string) (Source, error) {
	switch {
	case ref == "":
		return Source{}, nil
	case strings.HasPrefix(ref, "data:"):
		data, ok := imagecodec.ParseInline(ref)
		if !ok {
			return Source{}, ErrNotInline
		}
		return Source{Kind: KindPNG, Data: data}, nil
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return Source{}, fmt.Errorf("invalid file URI %q: %w", ref, err)
		}
		return Source{Kind: KindFile, Path: u.Path}, nil
	case filepath.IsAbs(ref):
		return Source{Kind: KindFile, Path: ref}, nil
	default:
		return Source{Kind: KindIconName, Name: ref}, nil
	}
}
