package ranker

import (
	"container/heap"
)

// topK selects the best k candidates with a bounded min-heap and returns
// them best first.
func topK(candidates []candidate, k int) []candidate {
	h := &candidateHeap{}
	heap.Init(h)
	for _, c := range candidates {
		heap.Push(h, c)
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]candidate, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(candidate)
	}
	return result
}

// candidateHeap orders the worst candidate first: lower score, then later
// corpus position.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].ordinal > h[j].ordinal
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
