package mongoo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	s.Registered.Add(2)
	s.Hits.Add(5)
	s.Extensions.Add(1)
	s.CompileDuration.Add(int64(4 * time.Millisecond))
	s.errorNormalized(KindDuplicateKey)
	s.errorNormalized(KindDuplicateKey)
	s.errorNormalized(KindNotFound)

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.Registered)
	assert.Equal(t, int64(5), snap.Hits)
	assert.Equal(t, int64(1), snap.Extensions)
	assert.Equal(t, 4*time.Millisecond, snap.CompileDuration)
	assert.Equal(t, int64(3), snap.Errors)
	assert.Equal(t, map[Kind]int64{KindDuplicateKey: 2, KindNotFound: 1}, snap.ByKind,
		"zero counters are omitted")

	// The snapshot is detached from the live counters.
	s.Hits.Add(1)
	assert.Equal(t, int64(5), snap.Hits)
}

func TestStatsReset(t *testing.T) {
	var s Stats
	s.Registered.Add(1)
	s.CompileDuration.Add(int64(time.Second))
	s.errorNormalized(KindValidationFailed)

	s.Reset()
	snap := s.Snapshot()
	assert.Zero(t, snap.Registered)
	assert.Zero(t, snap.CompileDuration)
	assert.Zero(t, snap.Errors)
	assert.Empty(t, snap.ByKind)
}

func TestAvgCompileDuration(t *testing.T) {
	snap := StatsSnapshot{Registered: 4, CompileDuration: 10 * time.Millisecond}
	assert.Equal(t, 2500*time.Microsecond, snap.AvgCompileDuration())

	assert.Zero(t, StatsSnapshot{}.AvgCompileDuration(), "no models means no average")
}

func TestStatsString(t *testing.T) {
	snap := StatsSnapshot{
		Registered:      2,
		Hits:            7,
		Extensions:      1,
		CompileDuration: 4 * time.Millisecond,
		Errors:          3,
	}
	assert.Equal(t, "models=2 hits=7 extensions=1 compile=4ms avg=2ms errors=3", snap.String())
}
