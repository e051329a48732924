// Package dispatch implements the notification queue and the single active
// display slot.
package dispatch

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/jmylchreest/qnotify/internal/model"
)

// Renderer displays one record at a time.
// Show must not block; it is called with the dispatcher lock held.
type Renderer interface {
	Show(rec model.Record) (Handle, error)
}

// Handle is a renderer's binding to one displayed record.
type Handle interface {
	// Finished is closed exactly once when the display ends.
	Finished() <-chan struct{}
	// Reason reports why the display ended. Only valid after Finished.
	Reason() model.CloseReason
	// Release frees the display resources. It is called once, after
	// Finished or when the dispatcher stops.
	Release()
	// Dismiss asks the renderer to end the display early.
	Dismiss()
}

// State is the dispatcher state.
type State int

const (
	// Idle means no record is displayed.
	Idle State = iota
	// Showing means exactly one record is displayed.
	Showing
)

func (s State) String() string {
	if s == Showing {
		return "showing"
	}
	return "idle"
}

// RetireCallback is called after a displayed record is released.
type RetireCallback func(rec model.Record, reason model.CloseReason)

// active is the record currently bound to a renderer handle.
type active struct {
	rec    model.Record
	handle Handle
}

// Dispatcher owns the FIFO queue and feeds records to the renderer one at a
// time. All methods are safe for concurrent use.
type Dispatcher struct {
	renderer Renderer
	logger   *slog.Logger

	mu        sync.Mutex
	queue     *list.List // of model.Record
	current   *active
	advancing bool
	stopped   bool
	stopCh    chan struct{}

	onRetire RetireCallback
}

// New creates a dispatcher feeding renderer.
func New(renderer Renderer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		renderer: renderer,
		logger:   logger,
		queue:    list.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetRetireCallback sets the callback run when a displayed record finishes.
// The callback runs without the dispatcher lock held.
func (d *Dispatcher) SetRetireCallback(cb RetireCallback) {
	d.mu.Lock()
	d.onRetire = cb
	d.mu.Unlock()
}

// Enqueue appends rec to the queue and shows it immediately if nothing is
// being displayed.
func (d *Dispatcher) Enqueue(rec model.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.logger.Debug("dropping notification, dispatcher stopped", "id", rec.ID)
		return
	}

	d.queue.PushBack(rec.Clone())
	d.logger.Debug("queued notification",
		"id", rec.ID,
		"notify_id", rec.NotifyID,
		"queue_size", d.queue.Len(),
	)

	if d.current == nil {
		d.advanceLocked()
	}
}

// advanceLocked releases the active record, if any, and shows the next
// queued one. Records whose Show fails are skipped. Caller must hold the lock.
func (d *Dispatcher) advanceLocked() {
	if d.advancing {
		panic("dispatch: re-entrant advance")
	}
	d.advancing = true
	defer func() { d.advancing = false }()

	if d.current != nil {
		d.current.handle.Release()
		d.current = nil
	}

	for d.queue.Len() > 0 {
		rec := d.queue.Remove(d.queue.Front()).(model.Record)

		handle, err := d.renderer.Show(rec)
		if err != nil {
			d.logger.Error("failed to show notification",
				"id", rec.ID,
				"notify_id", rec.NotifyID,
				"error", err,
			)
			continue
		}

		cur := &active{rec: rec, handle: handle}
		d.current = cur
		go d.watch(cur)

		d.logger.Debug("showing notification",
			"id", rec.ID,
			"notify_id", rec.NotifyID,
			"queue_size", d.queue.Len(),
		)
		return
	}
}

// watch waits for cur to finish and advances the queue.
func (d *Dispatcher) watch(cur *active) {
	select {
	case <-cur.handle.Finished():
	case <-d.stopCh:
		return
	}

	d.mu.Lock()
	if d.current != cur {
		// Already released by Stop.
		d.mu.Unlock()
		return
	}
	reason := cur.handle.Reason()
	d.advanceLocked()
	cb := d.onRetire
	d.mu.Unlock()

	d.logger.Debug("notification finished", "id", cur.rec.ID, "reason", reason)

	if cb != nil {
		cb(cur.rec, reason)
	}
}

// Dismiss ends the display of the active record if its transport id is
// notifyID. Queued records are not affected. It reports whether the active
// record matched.
func (d *Dispatcher) Dismiss(notifyID uint32) bool {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()

	if cur == nil || notifyID == 0 || cur.rec.NotifyID != notifyID {
		return false
	}
	cur.handle.Dismiss()
	return true
}

// DismissActive ends the display of whatever record is active.
func (d *Dispatcher) DismissActive() bool {
	d.mu.Lock()
	cur := d.current
	d.mu.Unlock()

	if cur == nil {
		return false
	}
	cur.handle.Dismiss()
	return true
}

// Stop releases the active record and discards the queue. Later Enqueue
// calls are ignored.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	close(d.stopCh)

	if d.current != nil {
		d.current.handle.Release()
		d.current = nil
	}
	dropped := d.queue.Len()
	d.queue.Init()

	d.logger.Info("dispatcher stopped", "dropped", dropped)
}

// State returns the current state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		return Showing
	}
	return Idle
}

// Active returns a copy of the displayed record, if any.
func (d *Dispatcher) Active() (model.Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return model.Record{}, false
	}
	return d.current.rec.Clone(), true
}

// QueuedCount returns the number of records waiting to be shown.
func (d *Dispatcher) QueuedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}
