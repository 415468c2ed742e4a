package formulary

import (
	"sync/atomic"
	"time"

	"github.com/pediadose/pediadose-api/logging"
)

// Container holds the published formulary snapshot with atomic pointers for
// zero-downtime replacement. Readers always see a complete, validated
// document; updates swap the whole snapshot at once.
type Container struct {
	current    atomic.Value // *Formulary
	lastLoaded atomic.Value // time.Time
	loading    atomic.Bool
}

// NewContainer creates a container with an empty formulary.
func NewContainer() *Container {
	c := &Container{}
	c.current.Store(&Formulary{Drugs: map[string]Drug{}})
	c.lastLoaded.Store(time.Time{})
	return c
}

// Current returns the published formulary snapshot. Callers must treat the
// returned document as read-only.
func (c *Container) Current() *Formulary {
	if v := c.current.Load(); v != nil {
		if f, ok := v.(*Formulary); ok {
			return f
		}
	}

	logging.Warn("Formulary snapshot is empty or invalid")
	return &Formulary{Drugs: map[string]Drug{}}
}

// LastLoaded returns the timestamp of the last successful publish.
func (c *Container) LastLoaded() time.Time {
	if v := c.lastLoaded.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the formulary last loaded value")
	return time.Time{}
}

// IsLoading returns true while a reload is in progress.
func (c *Container) IsLoading() bool {
	return c.loading.Load()
}

// Update atomically publishes a new formulary snapshot.
func (c *Container) Update(f *Formulary) {
	if f == nil {
		logging.Warn("Refusing to publish nil formulary")
		return
	}
	c.current.Store(f)
	c.lastLoaded.Store(time.Now())
}

// Invalidate marks the cached snapshot as stale without unpublishing it.
// Readers keep getting the previous document until the scheduler's monitor
// notices the zero timestamp and reloads; health checks report the marker.
func (c *Container) Invalidate() {
	c.lastLoaded.Store(time.Time{})
}

// BeginUpdate marks the start of a reload. Returns false if another reload
// is already in progress.
func (c *Container) BeginUpdate() bool {
	return c.loading.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload.
func (c *Container) EndUpdate() {
	c.loading.Store(false)
}
