// Package headless provides a renderer that logs notifications instead of
// drawing them. It is used when no graphical session is available.
package headless

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/qnotify/internal/dispatch"
	"github.com/jmylchreest/qnotify/internal/model"
)

// Renderer logs each record and finishes it after its timeout.
type Renderer struct {
	logger *slog.Logger

	mu             sync.Mutex
	defaultTimeout time.Duration
}

// New creates a headless renderer. defaultTimeout applies to records with a
// negative timeout.
func New(defaultTimeout time.Duration, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger, defaultTimeout: defaultTimeout}
}

// SetDefaultTimeout changes the timeout used for records that do not set one.
func (r *Renderer) SetDefaultTimeout(d time.Duration) {
	r.mu.Lock()
	r.defaultTimeout = d
	r.mu.Unlock()
}

// Show implements dispatch.Renderer.
func (r *Renderer) Show(rec model.Record) (dispatch.Handle, error) {
	r.mu.Lock()
	timeout := rec.DisplayTimeout(r.defaultTimeout)
	r.mu.Unlock()

	r.logger.Info("notification",
		"id", rec.ID,
		"notify_id", rec.NotifyID,
		"app", rec.AppName,
		"summary", rec.Summary,
		"body", rec.Body,
		"urgency", rec.Urgency(),
		"actions", len(rec.ParsedActions()),
		"image", rec.HasImage(),
		"app_icon", rec.AppIconPayload != "",
		"received", humanize.Time(rec.ReceivedAt),
		"timeout", timeout,
	)

	h := &handle{done: make(chan struct{})}
	if timeout > 0 {
		h.timer = time.AfterFunc(timeout, func() { h.finish(model.CloseReasonExpired) })
	}
	return h, nil
}

type handle struct {
	done  chan struct{}
	once  sync.Once
	timer *time.Timer

	mu     sync.Mutex
	reason model.CloseReason
}

func (h *handle) Finished() <-chan struct{} { return h.done }

func (h *handle) Reason() model.CloseReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

func (h *handle) Dismiss() { h.finish(model.CloseReasonDismissed) }

func (h *handle) Release() {
	if h.timer != nil {
		h.timer.Stop()
	}
	h.finish(model.CloseReasonClosed)
}

func (h *handle) finish(reason model.CloseReason) {
	h.once.Do(func() {
		h.mu.Lock()
		h.reason = reason
		h.mu.Unlock()
		close(h.done)
	})
}
