package mapview

import (
	"sort"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// WorkingSet is an immutable snapshot of the turbines fetched for one
// viewport. It holds at most one record per id.
type WorkingSet struct {
	seq     uint64
	box     domain.BoundingBox
	byID    map[int64]int
	records []domain.Turbine // ascending id
}

// NewWorkingSet builds a snapshot from a query response. When records
// repeat an id the later one wins.
func NewWorkingSet(seq uint64, box domain.BoundingBox, records []domain.Turbine) *WorkingSet {
	latest := make(map[int64]domain.Turbine, len(records))
	for _, t := range records {
		latest[t.ID] = t
	}
	out := make([]domain.Turbine, 0, len(latest))
	for _, t := range latest {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	byID := make(map[int64]int, len(out))
	for i, t := range out {
		byID[t.ID] = i
	}
	return &WorkingSet{seq: seq, box: box, byID: byID, records: out}
}

func emptyWorkingSet() *WorkingSet {
	return &WorkingSet{byID: map[int64]int{}}
}

// Seq is the request sequence number the snapshot came from; 0 for the
// initial empty set.
func (w *WorkingSet) Seq() uint64 { return w.seq }

// Box is the bounding box the snapshot was fetched for.
func (w *WorkingSet) Box() domain.BoundingBox { return w.box }

// Len returns the number of turbines.
func (w *WorkingSet) Len() int { return len(w.records) }

// Get looks up a turbine by id.
func (w *WorkingSet) Get(id int64) (domain.Turbine, bool) {
	i, ok := w.byID[id]
	if !ok {
		return domain.Turbine{}, false
	}
	return w.records[i], true
}

// Turbines returns the records in ascending id order. The slice is shared
// and must not be modified.
func (w *WorkingSet) Turbines() []domain.Turbine { return w.records }
