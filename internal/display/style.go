package display

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/qnotify/internal/config"
)

//go:embed style.css
var defaultCSS string

// Style loads popup CSS: the user's stylesheet when present, otherwise the
// built-in one.
type Style struct {
	logger   *slog.Logger
	path     string
	provider *gtk.CSSProvider
}

// StylePath returns the user stylesheet location.
func StylePath() string {
	return filepath.Join(config.ConfigDir(), "style.css")
}

// NewStyle creates a Style reading the user stylesheet at path.
func NewStyle(path string, logger *slog.Logger) *Style {
	if logger == nil {
		logger = slog.Default()
	}
	return &Style{
		logger:   logger,
		path:     path,
		provider: gtk.NewCSSProvider(),
	}
}

// Path returns the user stylesheet path.
func (s *Style) Path() string {
	return s.path
}

// Load (re)reads the stylesheet. Call on the GTK main loop.
func (s *Style) Load() {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		s.provider.LoadFromString(string(data))
		s.logger.Info("loaded user stylesheet", "path", s.path)
	case os.IsNotExist(err):
		s.provider.LoadFromString(defaultCSS)
		s.logger.Debug("using built-in stylesheet")
	default:
		s.logger.Warn("failed to read stylesheet, using built-in", "path", s.path, "error", err)
		s.provider.LoadFromString(defaultCSS)
	}
}

// Apply installs the stylesheet for the default display.
func (s *Style) Apply() {
	display := gdk.DisplayGetDefault()
	if display == nil {
		s.logger.Warn("no display available, cannot apply stylesheet")
		return
	}
	gtk.StyleContextAddProviderForDisplay(display, s.provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)
}
