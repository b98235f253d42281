package counter

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRecordCountsWithinWindow(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	if count := w.Record("g1", now, 10*time.Second); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	if count := w.Record("g1", now.Add(time.Second), 10*time.Second); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestRecordExpiresOldEntries(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	w.Record("g1", now, 10*time.Second)
	w.Record("g1", now.Add(time.Second), 10*time.Second)
	if count := w.Record("g1", now.Add(15*time.Second), 10*time.Second); count != 1 {
		t.Fatalf("expected stale entries pruned, got %d", count)
	}
}

func TestRecordBoundaryEntryDropped(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	w.Record("g1", now, 10*time.Second)
	if count := w.Record("g1", now.Add(10*time.Second), 10*time.Second); count != 1 {
		t.Fatalf("entry exactly one window old should drop, got %d", count)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	w.Record("g1:u1", now, time.Minute)
	w.Record("g1:u1", now, time.Minute)
	if count := w.Record("g1:u2", now, time.Minute); count != 1 {
		t.Fatalf("keys leaked into each other, got %d", count)
	}
}

func TestReset(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	w.Record("g1", now, time.Minute)
	w.Record("g1", now, time.Minute)
	w.Reset("g1")
	if count := w.Count("g1", now, time.Minute); count != 0 {
		t.Fatalf("expected empty after reset, got %d", count)
	}
}

func TestConcurrentRecord(t *testing.T) {
	w := NewWindows()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Record("g1", now.Add(time.Duration(i)*time.Millisecond), time.Minute)
		}(i)
	}
	wg.Wait()

	if count := w.Count("g1", now.Add(time.Second), time.Minute); count != 50 {
		t.Fatalf("expected 50 recorded events, got %d", count)
	}
}

func TestManyKeys(t *testing.T) {
	w := NewWindows()
	now := time.Now()
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("guild:%d", i)
		if count := w.Record(key, now, time.Minute); count != 1 {
			t.Fatalf("key %s expected 1, got %d", key, count)
		}
	}
}
