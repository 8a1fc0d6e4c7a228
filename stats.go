package mongoo

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats holds model-layer counters. All fields are safe for
// concurrent use.
type Stats struct {
	// Registered is the number of models compiled and materialized.
	Registered atomic.Int64
	// Hits counts idempotent registrations returning an existing
	// entry.
	Hits atomic.Int64
	// Extensions counts schema extensions applied after
	// registration.
	Extensions atomic.Int64
	// CompileDuration is the total time spent compiling and
	// synthesizing, in nanoseconds.
	CompileDuration atomic.Int64
	// Errors counts normalized runtime failures.
	Errors atomic.Int64

	kinds [len(kindNames)]atomic.Int64
}

func (s *Stats) errorNormalized(k Kind) {
	s.Errors.Add(1)
	if int(k) < len(s.kinds) {
		s.kinds[k].Add(1)
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Registered:      s.Registered.Load(),
		Hits:            s.Hits.Load(),
		Extensions:      s.Extensions.Load(),
		CompileDuration: time.Duration(s.CompileDuration.Load()),
		Errors:          s.Errors.Load(),
		ByKind:          make(map[Kind]int64, len(kindNames)),
	}
	for k := range s.kinds {
		if v := s.kinds[k].Load(); v > 0 {
			snap.ByKind[Kind(k)] = v
		}
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.Registered.Store(0)
	s.Hits.Store(0)
	s.Extensions.Store(0)
	s.CompileDuration.Store(0)
	s.Errors.Store(0)
	for k := range s.kinds {
		s.kinds[k].Store(0)
	}
}

// StatsSnapshot is a point-in-time view of the registry counters.
type StatsSnapshot struct {
	Registered      int64
	Hits            int64
	Extensions      int64
	CompileDuration time.Duration
	Errors          int64
	ByKind          map[Kind]int64
}

// AvgCompileDuration returns the average compile time per registered
// model.
func (s StatsSnapshot) AvgCompileDuration() time.Duration {
	if s.Registered == 0 {
		return 0
	}
	return s.CompileDuration / time.Duration(s.Registered)
}

// String returns a human-readable summary.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"models=%d hits=%d extensions=%d compile=%s avg=%s errors=%d",
		s.Registered, s.Hits, s.Extensions, s.CompileDuration,
		s.AvgCompileDuration(), s.Errors,
	)
}
