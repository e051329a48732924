package display

import (
	"log/slog"
	"sync"
	"time"

	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/qnotify/internal/config"
	"github.com/jmylchreest/qnotify/internal/dispatch"
	"github.com/jmylchreest/qnotify/internal/display/imagesource"
	"github.com/jmylchreest/qnotify/internal/layout"
	"github.com/jmylchreest/qnotify/internal/model"
)

// ActionCallback is called when an action is invoked on a popup.
type ActionCallback func(notifyID uint32, actionKey string)

// Renderer shows one popup per record. The display template is pushed in
// with SetLayout whenever it is (re)loaded; Show only reads it.
type Renderer struct {
	app    *gtk.Application
	logger *slog.Logger

	mu        sync.RWMutex
	config    *config.DaemonConfig
	layoutRef string
	layout    *layout.LayoutConfig
	layoutErr error
	onAction  ActionCallback
}

var _ dispatch.Renderer = (*Renderer)(nil)

// NewRenderer creates a GTK renderer.
func NewRenderer(app *gtk.Application, cfg *config.DaemonConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	return &Renderer{
		app:       app,
		logger:    logger,
		config:    cfg,
		layoutErr: errNoLayout,
	}
}

// Start checks that a display is available.
func (r *Renderer) Start() error {
	if gdk.DisplayGetDefault() == nil {
		return &DisplayError{Message: "no display available"}
	}
	r.logger.Info("display renderer started")
	return nil
}

// SetLayout installs the result of loading the display template ref. While
// err is non-nil every Show fails with a DisplayError.
func (r *Renderer) SetLayout(ref string, tmpl *layout.LayoutConfig, err error) {
	if err == nil && tmpl == nil {
		err = errNoLayout
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layoutRef = ref
	r.layout = tmpl
	r.layoutErr = err
}

// SetActionCallback sets the callback for action invocation events.
func (r *Renderer) SetActionCallback(cb ActionCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAction = cb
}

// UpdateConfig applies a reloaded configuration to subsequent popups.
func (r *Renderer) UpdateConfig(cfg *config.DaemonConfig) {
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
	r.logger.Debug("display renderer config updated", "position", cfg.Display.Position)
}

// Show implements dispatch.Renderer. It fails when the display template did
// not load. Images are decoded and the popup is built on the GTK main loop.
func (r *Renderer) Show(rec model.Record) (dispatch.Handle, error) {
	r.mu.RLock()
	cfg := r.config
	onAction := r.onAction
	ref, tmpl, layoutErr := r.layoutRef, r.layout, r.layoutErr
	r.mu.RUnlock()

	if layoutErr != nil {
		return nil, &DisplayError{Message: "invalid display template " + ref, Cause: layoutErr}
	}

	h := &handle{done: make(chan struct{})}

	glib.IdleAdd(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.released {
			return
		}

		p := newPopup(r.app, rec, r.prepare(rec), cfg, tmpl, r.logger)
		p.onAction = func(key string) {
			if onAction != nil {
				onAction(rec.NotifyID, key)
			}
		}
		p.onDismiss = func() { h.finish(model.CloseReasonDismissed) }
		h.popup = p
		p.Show()
	})

	if timeout := rec.DisplayTimeout(cfg.Timeouts.Default.Duration()); timeout > 0 {
		h.timer = time.AfterFunc(timeout, func() { h.finish(model.CloseReasonExpired) })
	}

	r.logger.Debug("showing popup",
		"id", rec.ID,
		"notify_id", rec.NotifyID,
		"template", ref,
		"timeout_ms", rec.TimeoutMS,
	)
	return h, nil
}

// content holds the loadable form of a record's images.
type content struct {
	icon    imagesource.Source
	appIcon imagesource.Source
	image   imagesource.Source
}

func (r *Renderer) prepare(rec model.Record) content {
	var c content
	var err error

	if c.icon, err = imagesource.Resolve(rec.IconRef); err != nil {
		r.logger.Debug("failed to resolve icon", "id", rec.ID, "error", err)
	}
	if c.appIcon, err = imagesource.Resolve(rec.AppIconPayload); err != nil {
		r.logger.Debug("failed to resolve app icon", "id", rec.ID, "error", err)
	}
	if rec.HasImage() {
		if c.image, err = imagesource.Resolve(rec.ImagePayload); err != nil {
			r.logger.Debug("failed to resolve image", "id", rec.ID, "error", err)
		}
	}
	return c
}

// handle tracks one popup for the dispatcher.
type handle struct {
	done  chan struct{}
	once  sync.Once
	timer *time.Timer

	mu       sync.Mutex
	reason   model.CloseReason
	popup    *Popup
	released bool
}

func (h *handle) Finished() <-chan struct{} { return h.done }

func (h *handle) Reason() model.CloseReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *handle) Dismiss() { h.finish(model.CloseReasonDismissed) }

// Release closes the popup window on the GTK main loop.
func (h *handle) Release() {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.finish(model.CloseReasonClosed)

	glib.IdleAdd(func() {
		h.mu.Lock()
		p := h.popup
		h.popup = nil
		h.released = true
		h.mu.Unlock()

		if p != nil {
			p.Close()
		}
	})
}

func (h *handle) finish(reason model.CloseReason) {
	h.once.Do(func() {
		h.mu.Lock()
		h.reason = reason
		h.mu.Unlock()
		close(h.done)
	})
}
