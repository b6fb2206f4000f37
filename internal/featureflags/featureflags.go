// Package featureflags holds a small set of boolean toggles that gate
// optional behavior (currently just upstream ML-backed analysis) without
// requiring a redeploy. Flags are refreshed on a timer from a backing
// source and read through a copy-on-write snapshot so readers never block
// a refresh and never see a half-written map.
package featureflags

import (
	"sync/atomic"
	"time"
)

// MLDetection gates whether the analysis router is allowed to try the
// upstream ML-backed analyzer at all, independent of tier or circuit
// state. Absence of the flag (nil snapshot, or key not present) behaves as
// "not explicitly false" per the router's decision tree.
const MLDetection = "ml-detection"

// Snapshot is an immutable view of flag values at a point in time.
type Snapshot struct {
	values map[string]bool
	at     time.Time
}

// Get reports the flag's value and whether it was explicitly set. A
// caller implementing "not explicitly false" logic should treat
// ok=false as true.
func (s *Snapshot) Get(name string) (value bool, ok bool) {
	if s == nil {
		return false, false
	}
	v, ok := s.values[name]
	return v, ok
}

// IsExplicitlyFalse is a convenience for the router's gate condition.
func (s *Snapshot) IsExplicitlyFalse(name string) bool {
	v, ok := s.Get(name)
	return ok && !v
}

// Store holds the current Snapshot behind an atomic pointer so Current()
// never blocks a concurrent Refresh.
type Store struct {
	current atomic.Pointer[Snapshot]
	source  func() (map[string]bool, error)
	stopCh  chan struct{}
}

// NewStore builds a Store with an initial snapshot and starts a
// background refresh loop at the given interval. source is called on
// each tick; a failed fetch leaves the previous snapshot in place.
func NewStore(initial map[string]bool, source func() (map[string]bool, error), refreshInterval time.Duration) *Store {
	s := &Store{
		source: source,
		stopCh: make(chan struct{}),
	}
	s.current.Store(&Snapshot{values: cloneMap(initial), at: time.Now()})

	if source != nil && refreshInterval > 0 {
		go s.refreshLoop(refreshInterval)
	}

	return s
}

// Current returns the latest Snapshot. Safe for concurrent use.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Set overrides a single flag immediately, copying the current snapshot
// so in-flight readers of the old one are unaffected.
func (s *Store) Set(name string, value bool) {
	old := s.current.Load()
	next := cloneMap(old.values)
	next[name] = value
	s.current.Store(&Snapshot{values: next, at: time.Now()})
}

// Close stops the background refresh loop, if any.
func (s *Store) Close() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

func (s *Store) refreshLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			values, err := s.source()
			if err != nil {
				continue
			}
			s.current.Store(&Snapshot{values: cloneMap(values), at: time.Now()})
		}
	}
}

func cloneMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
