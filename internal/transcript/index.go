// Package transcript provides a pure, immutable index over the timestamped
// speaker segments of a call transcript. It answers "which segment is active
// at time t" and "where does segment i start" for the playback synchronizer.
package transcript

import (
	"sort"

	"github.com/voxproof/eval-console/internal/result"
)

// Index is built once per fetched segment list and never mutated. A nil or
// empty Index is valid and treats every query as a miss.
type Index struct {
	segments []result.SpeakerSegment
}

// NewIndex builds an index over the given segments. The transcription stage
// guarantees segments arrive sorted ascending by start and non-overlapping;
// the index trusts but re-sorts defensively since lookups rely on order.
func NewIndex(segments []result.SpeakerSegment) *Index {
	if len(segments) == 0 {
		return &Index{}
	}

	owned := make([]result.SpeakerSegment, len(segments))
	copy(owned, segments)
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].Start < owned[j].Start
	})

	return &Index{segments: owned}
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.segments)
}

// ActiveIndexAt returns the index of the unique segment with start <= t <= end,
// or ok=false when t falls in a gap or outside the covered range. There is no
// clamping to the nearest segment.
//
// Tie-break: a boundary shared by two segments (t == segments[i].End ==
// segments[i+1].Start) belongs to the LATER segment. Picking the last segment
// whose start is <= t makes this rule fall out of the search itself.
func (ix *Index) ActiveIndexAt(t float64) (int, bool) {
	if ix.Len() == 0 {
		return 0, false
	}

	// First index with start > t; the candidate is the one before it.
	i := sort.Search(len(ix.segments), func(i int) bool {
		return ix.segments[i].Start > t
	})
	if i == 0 {
		return 0, false
	}

	cand := i - 1
	if t > ix.segments[cand].End {
		return 0, false
	}
	return cand, true
}

// StartOf returns the start time of segment i, used for seek commands.
// Out-of-range indices report ok=false rather than panicking.
func (ix *Index) StartOf(i int) (float64, bool) {
	if ix == nil || i < 0 || i >= len(ix.segments) {
		return 0, false
	}
	return ix.segments[i].Start, true
}

// Segment returns a copy of segment i.
func (ix *Index) Segment(i int) (result.SpeakerSegment, bool) {
	if ix == nil || i < 0 || i >= len(ix.segments) {
		return result.SpeakerSegment{}, false
	}
	return ix.segments[i], true
}

// CoveredRange returns the [first start, last end] range of the transcript,
// or ok=false for an empty index.
func (ix *Index) CoveredRange() (start, end float64, ok bool) {
	if ix.Len() == 0 {
		return 0, 0, false
	}
	return ix.segments[0].Start, ix.segments[len(ix.segments)-1].End, true
}
