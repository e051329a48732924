package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "5s", "10s", "1m", "1h30m", or integer milliseconds.
// A value of "0" or 0 means never expire.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for qnotifyd.
// Loaded from ~/.config/qnotify/qnotifyd.toml
type DaemonConfig struct {
	Transport TransportConfig `toml:"transport"`
	Display   DisplayConfig   `toml:"display"`
	Timeouts  TimeoutConfig   `toml:"timeouts"`
	Layout    LayoutConfig    `toml:"layout"`
	Icons     IconsConfig     `toml:"icons"`
	Mouse     MouseConfig     `toml:"mouse"`
}

// TransportConfig selects how notifications are received.
type TransportConfig struct {
	Mode string `toml:"mode"` // "server" or "monitor"
}

// TransportMode is the bus role of the daemon.
type TransportMode string

const (
	// TransportServer owns org.freedesktop.Notifications.
	TransportServer TransportMode = "server"
	// TransportMonitor eavesdrops on Notify calls addressed to another server.
	TransportMonitor TransportMode = "monitor"
)

// LayoutConfig contains layout template settings.
type LayoutConfig struct {
	Template string `toml:"template"` // Embedded template name or path to an .xml file
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	Position  string `toml:"position"`   // "top-right", "top-left", etc.
	OffsetX   int    `toml:"offset_x"`   // Pixels from screen edge
	OffsetY   int    `toml:"offset_y"`   // Pixels from screen edge
	Width     int    `toml:"width"`      // Popup width in pixels
	MaxHeight int    `toml:"max_height"` // Maximum popup height
}

// TimeoutConfig contains timeout settings.
// Durations can be specified as "5s", "10s", "1m", etc. or as integer milliseconds.
type TimeoutConfig struct {
	Default Duration `toml:"default"` // Used when a notification asks for the server default
}

// IconsConfig contains icon theme lookup settings.
type IconsConfig struct {
	Theme         string   `toml:"theme"`
	LookupTimeout Duration `toml:"lookup_timeout"`
	ExtraDirs     []string `toml:"extra_dirs"`
}

// MouseConfig contains mouse button action mappings.
type MouseConfig struct {
	Left   string `toml:"left"`   // "dismiss", "do-action", "none"
	Middle string `toml:"middle"` // "dismiss", "do-action", "none"
	Right  string `toml:"right"`  // "dismiss", "do-action", "none"
}

// MouseAction represents a mouse button action.
type MouseAction string

const (
	MouseActionDismiss  MouseAction = "dismiss"
	MouseActionDoAction MouseAction = "do-action"
	MouseActionNone     MouseAction = "none"
)

// Position represents a popup position on screen.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionTopCenter,
		PositionBottomLeft,
		PositionBottomRight,
		PositionBottomCenter,
	}
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Transport: TransportConfig{
			Mode: string(TransportServer),
		},
		Display: DisplayConfig{
			Position:  string(PositionTopRight),
			OffsetX:   10,
			OffsetY:   10,
			Width:     350,
			MaxHeight: 600,
		},
		Timeouts: TimeoutConfig{
			Default: Duration(5 * time.Second),
		},
		Layout: LayoutConfig{
			Template: "default",
		},
		Icons: IconsConfig{
			LookupTimeout: Duration(250 * time.Millisecond),
		},
		Mouse: MouseConfig{
			Left:   string(MouseActionDismiss),
			Middle: string(MouseActionNone),
			Right:  string(MouseActionDoAction),
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() string {
	return filepath.Join(ConfigDir(), "qnotifyd.toml")
}

// LoadDaemonConfig loads the daemon configuration from path, or from
// DaemonConfigPath if path is empty.
// If the file doesn't exist, returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		path = DaemonConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.Icons.ExtraDirs = expandPaths(config.Icons.ExtraDirs)
	config.Layout.Template = expandPath(config.Layout.Template)

	return config, nil
}

// SaveDaemonConfig writes the configuration to path.
func SaveDaemonConfig(path string, config *DaemonConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// WriteDefaultDaemonConfig writes the default configuration to path. An
// existing file is left alone and reported with an error wrapping
// os.ErrExist.
func WriteDefaultDaemonConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s: %w", path, os.ErrExist)
	}
	return SaveDaemonConfig(path, DefaultDaemonConfig())
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	switch TransportMode(c.Transport.Mode) {
	case TransportServer, TransportMonitor:
	default:
		return fmt.Errorf("invalid transport mode %q, must be %q or %q", c.Transport.Mode, TransportServer, TransportMonitor)
	}

	if !slices.Contains(ValidPositions(), Position(c.Display.Position)) {
		return fmt.Errorf("invalid position %q, must be one of: %v", c.Display.Position, ValidPositions())
	}

	if c.Display.Width < 100 || c.Display.Width > 1000 {
		return fmt.Errorf("width must be between 100 and 1000, got %d", c.Display.Width)
	}
	if c.Display.MaxHeight < 50 {
		return fmt.Errorf("max_height must be at least 50, got %d", c.Display.MaxHeight)
	}

	if c.Timeouts.Default < 0 {
		return fmt.Errorf("default timeout must not be negative, got %s", c.Timeouts.Default.Duration())
	}
	if c.Icons.LookupTimeout <= 0 {
		return fmt.Errorf("icon lookup_timeout must be positive, got %s", c.Icons.LookupTimeout.Duration())
	}

	validActions := []MouseAction{MouseActionDismiss, MouseActionDoAction, MouseActionNone}
	for _, action := range []string{c.Mouse.Left, c.Mouse.Middle, c.Mouse.Right} {
		if !slices.Contains(validActions, MouseAction(action)) {
			return fmt.Errorf("invalid mouse action %q", action)
		}
	}

	return nil
}

// Mode returns the configured transport mode.
func (c *DaemonConfig) Mode() TransportMode {
	return TransportMode(c.Transport.Mode)
}
