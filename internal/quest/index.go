package quest

import (
	"sort"
	"sync/atomic"
	"time"
)

// Index answers "which zones contain point P at time T" against a versioned
// zone snapshot. Load swaps the whole snapshot atomically, so readers see
// either the old set or the new set in full, never a partial mix.
type Index struct {
	snapshot atomic.Pointer[[]Zone]
}

func NewIndex() *Index {
	idx := &Index{}
	empty := []Zone{}
	idx.snapshot.Store(&empty)
	return idx
}

// Load replaces the active zone set. Safe to call concurrently with queries.
func (idx *Index) Load(zones []Zone) {
	snap := make([]Zone, len(zones))
	copy(snap, zones)
	idx.snapshot.Store(&snap)
}

// Zones returns the current snapshot. Callers must not mutate it.
func (idx *Index) Zones() []Zone {
	return *idx.snapshot.Load()
}

// FindContaining returns every completable zone that spatially contains the
// point and whose scheduled window (if any) includes at, sorted by zone id.
// Zones outside their window are simply excluded; there is no rejection
// signal from this call.
func (idx *Index) FindContaining(lat, lng float64, at time.Time) []Zone {
	var hits []Zone
	for _, z := range *idx.snapshot.Load() {
		if !z.Completable() {
			continue
		}
		if !z.Contains(lat, lng) {
			continue
		}
		if !z.InWindow(at) {
			continue
		}
		hits = append(hits, z)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits
}

// Evaluate turns a position report into the set of newly-entered zones:
// FindContaining minus everything the user has already completed. It is pure
// and read-only, safe to call speculatively with the same inputs.
func Evaluate(idx *Index, lat, lng float64, at time.Time, alreadyVisited map[string]bool) []Zone {
	var entered []Zone
	for _, z := range idx.FindContaining(lat, lng, at) {
		if alreadyVisited[z.ID] {
			continue
		}
		entered = append(entered, z)
	}
	return entered
}
