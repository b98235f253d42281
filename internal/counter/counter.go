package counter

import (
	"sync"
	"time"
)

// Windows tracks sliding-window event counts per string key. It is handed to
// the evaluator as an explicit dependency so tests can swap it out and so no
// package-level state survives a restart unnoticed.
type Windows struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewWindows() *Windows {
	return &Windows{hits: make(map[string][]time.Time)}
}

// Record appends now to the key's window, drops entries at or before
// now-window, and returns the count including the new entry. The whole
// operation holds the lock so concurrent callers on the same key serialize.
func (w *Windows) Record(key string, now time.Time, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := prune(w.hits[key], now.Add(-window))
	hits = append(hits, now)
	w.hits[key] = hits
	return len(hits)
}

// Count prunes and returns the key's count without recording an event.
func (w *Windows) Count(key string, now time.Time, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := prune(w.hits[key], now.Add(-window))
	if len(hits) == 0 {
		delete(w.hits, key)
		return 0
	}
	w.hits[key] = hits
	return len(hits)
}

// Reset clears a key entirely.
func (w *Windows) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, key)
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	return hits[idx:]
}
