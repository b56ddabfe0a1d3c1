package suggestions

import (
	"container/heap"
	"iter"
	"math"

	"bobbin-backend/application/ports"
)

// Ranked yields scored candidates in non-increasing score order. Scores are
// clamped to [0,1], NaN scores are dropped, as are scores below minScore.
// At most limit items are yielded; limit <= 0 means no limit. Ordering work
// happens lazily as the caller pulls items.
func Ranked(scored []ports.ScoredCandidate, minScore float64, limit int) iter.Seq[ports.ScoredCandidate] {
	return func(yield func(ports.ScoredCandidate) bool) {
		h := make(scoreHeap, 0, len(scored))
		for i, sc := range scored {
			if math.IsNaN(sc.Score) {
				continue
			}
			sc.Score = clamp(sc.Score)
			if sc.Score < minScore {
				continue
			}
			h = append(h, rankedItem{candidate: sc, seq: i})
		}
		heap.Init(&h)

		for n := 0; h.Len() > 0 && (limit <= 0 || n < limit); n++ {
			item := heap.Pop(&h).(rankedItem)
			if !yield(item.candidate) {
				return
			}
		}
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type rankedItem struct {
	candidate ports.ScoredCandidate
	seq       int
}

// scoreHeap is a max-heap on score; ties keep input order
type scoreHeap []rankedItem

func (h scoreHeap) Len() int { return len(h) }

func (h scoreHeap) Less(i, j int) bool {
	if h[i].candidate.Score != h[j].candidate.Score {
		return h[i].candidate.Score > h[j].candidate.Score
	}
	return h[i].seq < h[j].seq
}

func (h scoreHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoreHeap) Push(x any) { *h = append(*h, x.(rankedItem)) }

func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
