// Package icons resolves icon names to bitmaps by searching freedesktop icon
// theme directories.
package icons

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // register decoder
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nfnt/resize"
)

// Size is the edge length icons are fitted into.
const Size = 128

// FallbackTheme is searched across all icon roots after the configured theme.
const FallbackTheme = "hicolor"

// Cache defaults.
const (
	DefaultCacheSize  = 256
	DefaultTimeoutTTL = 30 * time.Second
)

// ErrNotFound is returned by Find when no icon file matches.
var ErrNotFound = errors.New("icon not found")

// Options configures a ThemeResolver.
type Options struct {
	// Theme is the preferred icon theme name.
	Theme string
	// Roots overrides the icon search roots. Empty means DefaultRoots.
	Roots []string
	// ExtraDirs are appended to the search roots.
	ExtraDirs []string
	// CacheSize bounds the number of remembered names. Zero means
	// DefaultCacheSize.
	CacheSize int
	// TimeoutTTL is how long a lookup that ran out of time is treated as a
	// miss. Zero means DefaultTimeoutTTL.
	TimeoutTTL time.Duration
	Logger     *slog.Logger
}

// ThemeResolver looks up icons by name. Results, including misses, are
// kept in a bounded LRU. Lookups that hit their deadline are remembered as
// misses for TimeoutTTL so a slow tree is not walked on every request.
type ThemeResolver struct {
	themes []string
	roots  []string
	logger *slog.Logger

	cache    *lru.Cache[string, image.Image]
	timedOut *expirable.LRU[string, struct{}]
}

// DefaultRoots returns the standard icon search roots in lookup order.
func DefaultRoots() []string {
	roots := []string{filepath.Join(xdg.DataHome, "icons")}
	for _, dir := range xdg.DataDirs {
		roots = append(roots, filepath.Join(dir, "icons"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".icons"))
	}
	return roots
}

// NewThemeResolver creates a resolver for the given options.
func NewThemeResolver(opts Options) *ThemeResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roots := opts.Roots
	if len(roots) == 0 {
		roots = DefaultRoots()
	}
	roots = append(append([]string{}, roots...), opts.ExtraDirs...)
	if len(opts.Roots) == 0 {
		roots = append(roots, "/usr/share/pixmaps")
	}

	var themes []string
	if opts.Theme != "" && opts.Theme != FallbackTheme {
		themes = append(themes, opts.Theme)
	}
	if opts.Theme == FallbackTheme {
		logger.Debug("icon theme is the generic fallback theme, themed icons may be missing", "theme", opts.Theme)
	}
	themes = append(themes, FallbackTheme)

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := opts.TimeoutTTL
	if ttl <= 0 {
		ttl = DefaultTimeoutTTL
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, image.Image](size)

	return &ThemeResolver{
		themes:   themes,
		roots:    roots,
		logger:   logger,
		cache:    cache,
		timedOut: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

// Lookup returns the icon for name fitted into Size x Size, or false if no
// readable icon exists. A cancelled lookup is not remembered.
func (r *ThemeResolver) Lookup(ctx context.Context, name string) (image.Image, bool) {
	if !validName(name) {
		return nil, false
	}

	if img, ok := r.cache.Get(name); ok {
		return img, img != nil
	}
	if r.timedOut.Contains(name) {
		return nil, false
	}

	path, err := r.Find(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			r.cache.Add(name, nil)
		case errors.Is(err, context.DeadlineExceeded):
			r.logger.Debug("icon lookup timed out", "name", name)
			r.timedOut.Add(name, struct{}{})
		default:
			r.logger.Debug("icon lookup aborted", "name", name, "error", err)
		}
		return nil, false
	}

	img, err := loadIcon(path)
	if err != nil {
		r.logger.Debug("failed to load icon", "name", name, "path", path, "error", err)
		r.cache.Add(name, nil)
		return nil, false
	}

	r.cache.Add(name, img)
	return img, true
}

// Find returns the path of the best matching <name>.png. Each theme is
// searched across every root before the next theme, and loose files in the
// roots come last. Within a theme the 128x128 directory wins, then the
// largest fixed size.
func (r *ThemeResolver) Find(ctx context.Context, name string) (string, error) {
	if !validName(name) {
		return "", ErrNotFound
	}
	file := name + ".png"

	for _, theme := range r.themes {
		for _, root := range r.roots {
			path, err := findInTheme(ctx, filepath.Join(root, theme), file)
			if err != nil {
				return "", err
			}
			if path != "" {
				return path, nil
			}
		}
	}

	for _, root := range r.roots {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		loose := filepath.Join(root, file)
		if isReadableFile(loose) {
			return loose, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func findInTheme(ctx context.Context, dir, file string) (string, error) {
	best := ""
	bestScore := -1

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Missing theme directory or unreadable subtree.
			if d == nil || d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != file {
			return nil
		}
		if score := sizeScore(path, dir); score > bestScore {
			best, bestScore = path, score
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipDir) {
		return "", err
	}
	return best, nil
}

// sizeScore ranks a candidate by the NxN directory it lives under.
func sizeScore(path, themeDir string) int {
	rel, err := filepath.Rel(themeDir, path)
	if err != nil {
		return 0
	}
	score := 0
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		part, _, _ = strings.Cut(part, "@")
		w, h, ok := strings.Cut(part, "x")
		if !ok || w != h {
			continue
		}
		n, err := strconv.Atoi(w)
		if err != nil {
			continue
		}
		if n == Size {
			return 1 << 20
		}
		if n > score {
			score = n
		}
	}
	return score
}

func loadIcon(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open icon: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon: %w", err)
	}
	return resize.Thumbnail(Size, Size, img, resize.Bilinear), nil
}

func isReadableFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	return err == nil && info.Mode().IsRegular()
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, filepath.Separator)
}
