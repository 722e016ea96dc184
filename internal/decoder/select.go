package decoder

// selectLowest returns the flat indices of the k lowest scores using an
// in-place quickselect. Only a partial order is established: the k
// returned entries are the minimum set, but their relative order and the
// winner among exactly tied scores depend on pivoting order. Callers
// must not rely on tie outcomes.
func selectLowest(scores []float32, k int) []int {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if k <= 0 {
		return idx[:0]
	}
	if k >= n {
		return idx
	}

	lo, hi := 0, n-1
	for lo < hi {
		p := partition(scores, idx, lo, hi)
		switch {
		case p == k:
			return idx[:k]
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
	return idx[:k]
}

// partition reorders idx[lo:hi+1] around a middle-element pivot and
// returns the pivot's final position.
func partition(scores []float32, idx []int, lo, hi int) int {
	mid := lo + (hi-lo)/2
	idx[mid], idx[hi] = idx[hi], idx[mid]
	pivot := scores[idx[hi]]

	i := lo
	for j := lo; j < hi; j++ {
		if scores[idx[j]] < pivot {
			idx[i], idx[j] = idx[j], idx[i]
			i++
		}
	}
	idx[i], idx[hi] = idx[hi], idx[i]
	return i
}
