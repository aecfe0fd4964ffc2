package admission

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const contentPrefixRunes = 50

// Deduplicator remembers recently seen messages. Stable message IDs are the
// authoritative key; without one, a content key of conversation, text prefix
// and a coarse time bucket is used instead.
type Deduplicator struct {
	window time.Duration
	idTTL  time.Duration

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewDeduplicator creates a Deduplicator. window sizes the content buckets;
// idTTL is how long message IDs are remembered.
func NewDeduplicator(window, idTTL time.Duration) *Deduplicator {
	return &Deduplicator{
		window:  window,
		idTTL:   idTTL,
		expires: make(map[string]time.Time),
	}
}

// Seen marks the message and reports whether it had been marked before.
// The first call for a key returns false, later calls true until expiry.
func (d *Deduplicator) Seen(conversationID, text, messageID string, now time.Time) bool {
	key, expiry := d.key(conversationID, text, messageID, now)

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.expires[key]; ok && now.Before(exp) {
		return true
	}
	d.expires[key] = expiry
	return false
}

func (d *Deduplicator) key(conversationID, text, messageID string, now time.Time) (string, time.Time) {
	if id := strings.TrimSpace(messageID); id != "" {
		return "id:" + id, now.Add(d.idTTL)
	}
	bucket := now.Truncate(d.window)
	key := "content:" + conversationID + "|" + truncateRunes(strings.TrimSpace(text), contentPrefixRunes) +
		"|" + strconv.FormatInt(bucket.Unix(), 10)
	return key, bucket.Add(d.window)
}

// Sweep removes expired records.
func (d *Deduplicator) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	purged := 0
	for key, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, key)
			purged++
		}
	}
	return purged
}

// Len returns the number of live records.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expires)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
