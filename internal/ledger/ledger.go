package ledger

import (
	"errors"
	"sync"
)

// ErrStaleEpoch is returned when an insertion belongs to a session that
// has since been reset.
var ErrStaleEpoch = errors.New("ledger reset since request was issued")

// Ledger is the set of content hashes already delivered to the display in
// the current session. A hash is added at most once and only leaves the
// set through Reset.
type Ledger struct {
	mu     sync.Mutex
	hashes map[string]struct{}
	order  []string // insertion order, for stable exclusion lists
	epoch  uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{hashes: make(map[string]struct{})}
}

// Has reports whether hash has been delivered.
func (l *Ledger) Has(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.hashes[hash]
	return ok
}

// Add inserts hash and reports whether it was new. Checking and inserting
// happen under one lock, so two deliveries of the same hash can never both
// observe it as new.
func (l *Ledger) Add(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(hash)
}

// AddInEpoch is Add for callers that read the ledger earlier and must not
// write into a session started after that read.
func (l *Ledger) AddInEpoch(epoch uint64, hash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if epoch != l.epoch {
		return false, ErrStaleEpoch
	}
	return l.addLocked(hash), nil
}

func (l *Ledger) addLocked(hash string) bool {
	if _, ok := l.hashes[hash]; ok {
		return false
	}
	l.hashes[hash] = struct{}{}
	l.order = append(l.order, hash)
	return true
}

// Reset clears every entry and starts a new epoch.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashes = make(map[string]struct{})
	l.order = nil
	l.epoch++
}

// Snapshot returns a copy of all hashes in insertion order together with
// the epoch they belong to.
func (l *Ledger) Snapshot() ([]string, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out, l.epoch
}

// Epoch returns the number of resets so far.
func (l *Ledger) Epoch() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.epoch
}

// Len returns the number of delivered hashes.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
