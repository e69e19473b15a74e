package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensworks/lumen/domain/image"
)

type eventCollector struct {
	mu     sync.Mutex
	events []image.PendingEvent
}

func (c *eventCollector) handle(event image.PendingEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) snapshot() []image.PendingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]image.PendingEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *eventCollector) waitFor(t *testing.T, n int) []image.PendingEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := c.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, have %d", n, len(c.snapshot()))
	return nil
}

func TestDebouncer_CoalescesRapidModifies(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, 30*time.Millisecond)
	t.Cleanup(func() { _ = d.Close() })

	for i := 0; i < 5; i++ {
		d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventModified, time.Now()))
		time.Sleep(2 * time.Millisecond)
	}

	events := collector.waitFor(t, 1)
	require.Len(t, events, 1)
	assert.Equal(t, "/p/a.jpg", events[0].Path())
	assert.Equal(t, image.EventModified, events[0].Kind())
}

func TestDebouncer_IndependentPaths(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, 20*time.Millisecond)
	t.Cleanup(func() { _ = d.Close() })

	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventCreated, time.Now()))
	d.Observe(image.NewPendingEvent("/p/b.jpg", image.EventCreated, time.Now()))

	events := collector.waitFor(t, 2)
	paths := map[string]bool{}
	for _, e := range events {
		paths[e.Path()] = true
	}
	assert.True(t, paths["/p/a.jpg"])
	assert.True(t, paths["/p/b.jpg"])
}

func TestDebouncer_DeleteSurvivesStaleModify(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, 30*time.Millisecond)
	t.Cleanup(func() { _ = d.Close() })

	now := time.Now()
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventDeleted, now))
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventModified, now.Add(time.Millisecond)))

	events := collector.waitFor(t, 1)
	require.Len(t, events, 1)
	assert.Equal(t, image.EventDeleted, events[0].Kind())
}

func TestDebouncer_CreateAfterDeleteRevives(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, 30*time.Millisecond)
	t.Cleanup(func() { _ = d.Close() })

	now := time.Now()
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventDeleted, now))
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventCreated, now.Add(time.Millisecond)))

	events := collector.waitFor(t, 1)
	require.Len(t, events, 1)
	assert.Equal(t, image.EventCreated, events[0].Kind())
}

func TestDebouncer_CloseFlushesPending(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, time.Hour)

	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventModified, time.Now()))
	assert.Equal(t, 1, d.Pending())

	require.NoError(t, d.Close())
	events := collector.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "/p/a.jpg", events[0].Path())

	// Observations after close are dropped.
	d.Observe(image.NewPendingEvent("/p/b.jpg", image.EventCreated, time.Now()))
	assert.Zero(t, d.Pending())
}

func TestDebouncer_SerializesDeliveriesPerPath(t *testing.T) {
	var (
		mu    sync.Mutex
		order []image.EventKind
	)
	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(event image.PendingEvent) {
		if event.Kind() == image.EventModified {
			close(started)
			<-release
		}
		mu.Lock()
		order = append(order, event.Kind())
		mu.Unlock()
	}

	d := NewDebouncer(handler, 20*time.Millisecond)
	t.Cleanup(func() { _ = d.Close() })

	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventModified, time.Now()))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the modify handler to start")
	}

	// The delete arrives while the modify handler is still running. It must
	// queue behind it, not complete first and get clobbered by the stale
	// modify.
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventDeleted, time.Now()))
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	handled := len(order)
	mu.Unlock()
	require.Zero(t, handled, "delete was handled while the modify handler was in flight")

	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []image.EventKind{image.EventModified, image.EventDeleted}, order)
}

func TestDebouncer_StaleTimerDeliveryDiscarded(t *testing.T) {
	collector := &eventCollector{}
	d := NewDebouncer(collector.handle, time.Hour)

	now := time.Now()
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventCreated, now))
	d.Observe(image.NewPendingEvent("/p/a.jpg", image.EventModified, now.Add(time.Millisecond)))

	// A timer that expired just before being superseded carries an old
	// generation; its delivery must be dropped rather than jump the reset
	// quiet interval.
	d.fire("/p/a.jpg", 1)
	assert.Empty(t, collector.snapshot())
	assert.Equal(t, 1, d.Pending())

	require.NoError(t, d.Close())
	events := collector.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, image.EventModified, events[0].Kind())
}

func TestIsImagePath(t *testing.T) {
	assert.True(t, IsImagePath("/photos/cat.JPG"))
	assert.True(t, IsImagePath("/photos/cat.webp"))
	assert.False(t, IsImagePath("/photos/notes.txt"))
	assert.False(t, IsImagePath("/photos/noext"))
}

func TestWatcher_DeliversCreateForNewImage(t *testing.T) {
	root := t.TempDir()
	collector := &eventCollector{}

	w, err := New(root, 20*time.Millisecond, collector.handle, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.Start(context.Background())

	path := filepath.Join(root, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))

	events := collector.waitFor(t, 1)
	assert.Equal(t, path, events[0].Path())
}

func TestWatcher_IgnoresNonImageFiles(t *testing.T) {
	root := t.TempDir()
	collector := &eventCollector{}

	w, err := New(root, 10*time.Millisecond, collector.handle, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	w.Start(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("text"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, collector.snapshot())
}

func TestWatcher_ConcurrentCloseIsSafe(t *testing.T) {
	root := t.TempDir()

	w, err := New(root, 10*time.Millisecond, func(image.PendingEvent) {}, nil)
	require.NoError(t, err)
	w.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Close())
		}()
	}
	wg.Wait()
}
