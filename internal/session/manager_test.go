package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-wizard/internal/attachment"
	"task-wizard/internal/geocode"
	"task-wizard/internal/mappicker"
	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(opts ...Option) (*Manager, *clock) {
	c := &clock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(opts...)
	m.now = c.Now
	return m, c
}

// =============================================================================
// Session Creation and Retrieval Tests
// =============================================================================

func TestNewManager(t *testing.T) {
	m := NewManager()
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Count())
}

func TestManager_Create(t *testing.T) {
	m, _ := newTestManager()

	s := m.Create()

	assert.Len(t, s.ID, 36)
	assert.Equal(t, 1, m.Count())
	snap := s.Snapshot()
	assert.Equal(t, wizard.StepTaskType, snap.Step)
	assert.Len(t, snap.Data.DropOffs, 1)
}

func TestManager_Get(t *testing.T) {
	m, c := newTestManager()
	s := m.Create()
	c.Advance(time.Minute)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, c.Now(), got.LastUsed())

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DeleteAndList(t *testing.T) {
	m, _ := newTestManager()
	a := m.Create()
	b := m.Create()

	assert.ElementsMatch(t, []string{a.ID, b.ID}, m.List())

	require.NoError(t, m.Delete(a.ID))
	assert.Equal(t, []string{b.ID}, m.List())
	assert.ErrorIs(t, m.Delete(a.ID), ErrNotFound)
}

// =============================================================================
// Wizard access
// =============================================================================

func TestSession_Do(t *testing.T) {
	m, _ := newTestManager()
	s := m.Create()

	require.NoError(t, s.Do(func(w *wizard.Wizard) error { return w.GoNext() }))
	assert.Equal(t, wizard.StepPickup, s.Snapshot().Step)

	err := s.Do(func(w *wizard.Wizard) error { return w.JumpTo(9) })
	assert.ErrorIs(t, err, wizard.ErrInvalidStep)
}

func TestSession_ConcurrentEdits(t *testing.T) {
	m, _ := newTestManager()
	s := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(func(w *wizard.Wizard) error {
				_, err := w.AddDropOff()
				return err
			})
		}()
	}
	wg.Wait()

	assert.Len(t, s.Snapshot().Data.DropOffs, 21)
}

// =============================================================================
// Pickers
// =============================================================================

func TestSession_Pickers(t *testing.T) {
	m, _ := newTestManager()
	s := m.Create()
	resolver := geocode.Static{}

	first := mappicker.Open(nil, resolver)
	s.OpenPicker(PickupTarget, first)
	got, ok := s.Picker(PickupTarget)
	require.True(t, ok)
	assert.Same(t, first, got)

	second := mappicker.Open(nil, resolver)
	s.OpenPicker(PickupTarget, second)
	assert.False(t, first.Snapshot().Open, "replaced picker is closed")

	s.ClosePicker(PickupTarget)
	assert.False(t, second.Snapshot().Open)
	_, ok = s.Picker(PickupTarget)
	assert.False(t, ok)

	third := mappicker.Open(nil, resolver)
	s.OpenPicker("drop-1", third)
	s.ClosePickers()
	assert.False(t, third.Snapshot().Open)
}

// =============================================================================
// Expiry
// =============================================================================

func TestCleanupExpired_ReleasesResources(t *testing.T) {
	store := attachment.NewStore(0)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, c := newTestManager(WithReleaser(store), WithMetrics(metrics))

	stale := m.Create()
	f, err := store.Put("parcel.png", pngBytes)
	require.NoError(t, err)
	require.NoError(t, stale.Do(func(w *wizard.Wizard) error {
		drop := w.Data().DropOffs[0]
		parcel, err := drop.Parcel.WithImage(store, f.ID)
		if err != nil {
			return err
		}
		_, err = w.UpdateDropOff(drop.ID, func(d taskform.DropOff) taskform.DropOff {
			d.Parcel = parcel
			return d
		})
		return err
	}))
	picker := mappicker.Open(nil, geocode.Static{})
	stale.OpenPicker(PickupTarget, picker)
	require.Equal(t, 1, store.Live())

	c.Advance(90 * time.Minute)
	fresh := m.Create()
	c.Advance(40 * time.Minute)

	removed := m.CleanupExpired(2 * time.Hour)

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{fresh.ID}, m.List())
	assert.Equal(t, 0, store.Live())
	assert.Equal(t, 0, store.Files())
	assert.False(t, picker.Snapshot().Open)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.active))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.created))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ended.WithLabelValues("expired")))
}

func TestRunCleanup_StopsWithContext(t *testing.T) {
	m, _ := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.RunCleanup(ctx, time.Millisecond, time.Hour, nil)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop")
	}
}
