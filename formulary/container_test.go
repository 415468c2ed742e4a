package formulary

import (
	"sync"
	"testing"
	"time"
)

func TestContainerStartsEmpty(t *testing.T) {
	c := NewContainer()

	if got := c.Current().DrugCount(); got != 0 {
		t.Errorf("expected an empty formulary before the first load, got %d drugs", got)
	}
	if !c.LastLoaded().IsZero() {
		t.Error("expected a zero last loaded time before the first load")
	}
	if c.IsLoading() {
		t.Error("expected no load in progress")
	}
}

func TestContainerUpdatePublishesSnapshot(t *testing.T) {
	c := NewContainer()
	f := &Formulary{Drugs: map[string]Drug{"ibuprofen": {Key: "ibuprofen"}}}

	before := time.Now()
	c.Update(f)

	if c.Current() != f {
		t.Error("expected the published snapshot back")
	}
	if c.LastLoaded().Before(before) {
		t.Error("expected the publish timestamp to be stamped")
	}
}

func TestContainerIgnoresNil(t *testing.T) {
	c := NewContainer()
	f := &Formulary{Drugs: map[string]Drug{"ibuprofen": {Key: "ibuprofen"}}}
	c.Update(f)

	c.Update(nil)

	if c.Current() != f {
		t.Error("a nil update must not replace the snapshot")
	}
}

func TestContainerInvalidate(t *testing.T) {
	c := NewContainer()
	f := &Formulary{Drugs: map[string]Drug{"ibuprofen": {Key: "ibuprofen"}}}
	c.Update(f)

	c.Invalidate()

	if !c.LastLoaded().IsZero() {
		t.Error("invalidate must zero the last loaded marker")
	}
	if c.Current() != f {
		t.Error("invalidate must keep serving the previous snapshot")
	}
}

func TestContainerUpdateGuard(t *testing.T) {
	c := NewContainer()

	if !c.BeginUpdate() {
		t.Fatal("expected to acquire the update marker")
	}
	if c.BeginUpdate() {
		t.Error("expected a second concurrent update to be refused")
	}
	if !c.IsLoading() {
		t.Error("expected the loading marker while updating")
	}

	c.EndUpdate()
	if c.IsLoading() {
		t.Error("expected the loading marker cleared")
	}
	if !c.BeginUpdate() {
		t.Error("expected the marker to be reusable after EndUpdate")
	}
	c.EndUpdate()
}

func TestContainerConcurrentReaders(t *testing.T) {
	c := NewContainer()
	c.Update(&Formulary{Drugs: map[string]Drug{"ibuprofen": {Key: "ibuprofen"}}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c.Current().DrugCount() == 0 {
					t.Error("reader saw an empty snapshot during updates")
					return
				}
			}
		}()
	}

	for j := 0; j < 50; j++ {
		c.Update(&Formulary{Drugs: map[string]Drug{"ibuprofen": {Key: "ibuprofen"}}})
	}
	wg.Wait()
}
