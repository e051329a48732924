package headless

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/qnotify/internal/dispatch"
	"github.com/jmylchreest/qnotify/internal/model"
)

func TestShowLogsAndExpires(t *testing.T) {
	var buf bytes.Buffer
	r := New(time.Hour, slog.New(slog.NewTextHandler(&buf, nil)))

	h, err := r.Show(model.Record{ID: "x", Summary: "Build finished", TimeoutMS: 5, ReceivedAt: time.Now()})
	require.NoError(t, err)

	select {
	case <-h.Finished():
	case <-time.After(time.Second):
		t.Fatal("notification did not expire")
	}
	assert.Equal(t, model.CloseReasonExpired, h.Reason())
	assert.Contains(t, buf.String(), "Build finished")
	h.Release()
}

func TestNeverExpires(t *testing.T) {
	r := New(time.Millisecond, nil)
	h, err := r.Show(model.Record{TimeoutMS: 0})
	require.NoError(t, err)

	select {
	case <-h.Finished():
		t.Fatal("zero timeout must not expire")
	case <-time.After(20 * time.Millisecond):
	}

	h.Dismiss()
	<-h.Finished()
	assert.Equal(t, model.CloseReasonDismissed, h.Reason())

	// Further calls do not change the outcome.
	h.Dismiss()
	h.Release()
	assert.Equal(t, model.CloseReasonDismissed, h.Reason())
}

func TestDefaultTimeoutApplies(t *testing.T) {
	r := New(time.Hour, nil)
	r.SetDefaultTimeout(5 * time.Millisecond)

	h, err := r.Show(model.Record{TimeoutMS: -1})
	require.NoError(t, err)
	select {
	case <-h.Finished():
	case <-time.After(time.Second):
		t.Fatal("default timeout not applied")
	}
}

func TestWithDispatcher(t *testing.T) {
	r := New(time.Hour, nil)
	d := dispatch.New(r, nil)
	defer d.Stop()

	done := make(chan model.CloseReason, 2)
	d.SetRetireCallback(func(_ model.Record, reason model.CloseReason) { done <- reason })

	d.Enqueue(model.Record{ID: "1", NotifyID: 1, TimeoutMS: 5})
	d.Enqueue(model.Record{ID: "2", NotifyID: 2, TimeoutMS: 0})

	assert.Equal(t, model.CloseReasonExpired, <-done)
	require.Eventually(t, func() bool {
		a, ok := d.Active()
		return ok && a.ID == "2"
	}, time.Second, time.Millisecond)

	assert.True(t, d.Dismiss(2))
	assert.Equal(t, model.CloseReasonDismissed, <-done)
}
