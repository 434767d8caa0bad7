package frame

import (
	"sync"
	"time"
)

const (
	dedupWindowSize = 1000
	dedupWindowTTL  = 5 * time.Minute
)

type dedupEntry struct {
	key  string
	seen time.Time
}

// DedupWindow remembers up to dedupWindowSize keys for dedupWindowTTL,
// whichever limit is reached first. The observe store uses it to drop
// agent events replayed by the gateway (same runId and seq).
type DedupWindow struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []dedupEntry
	index   map[string]struct{}
}

// NewDedupWindow returns an empty window reading time from now
// (time.Now if nil).
func NewDedupWindow(now func() time.Time) *DedupWindow {
	if now == nil {
		now = time.Now
	}
	return &DedupWindow{
		now:     now,
		entries: make([]dedupEntry, 0, dedupWindowSize),
		index:   make(map[string]struct{}, dedupWindowSize),
	}
}

// IsDuplicate reports whether key was already seen, recording it if not.
func (d *DedupWindow) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cutoff := now.Add(-dedupWindowTTL)
	start := 0
	for start < len(d.entries) && d.entries[start].seen.Before(cutoff) {
		delete(d.index, d.entries[start].key)
		start++
	}
	d.entries = d.entries[start:]

	if _, ok := d.index[key]; ok {
		return true
	}

	if len(d.entries) >= dedupWindowSize {
		delete(d.index, d.entries[0].key)
		d.entries = d.entries[1:]
	}
	d.entries = append(d.entries, dedupEntry{key: key, seen: now})
	d.index[key] = struct{}{}
	return false
}

// Reset forgets every key.
func (d *DedupWindow) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = d.entries[:0]
	clear(d.index)
}

// Len returns the number of tracked keys.
func (d *DedupWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
