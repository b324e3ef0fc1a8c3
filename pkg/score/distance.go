package score

// Levenshtein returns the edit distance between a and b, counting one per
// insertion, deletion or substitution. Only two rows of the DP matrix are
// kept, sized by the shorter input.
//
// Complexity: O(len(a)·len(b)) time, O(min(len(a), len(b))) memory.
func Levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ca := range a {
		curr[0] = i + 1
		for j, cb := range b {
			cost := 1
			if ca == cb {
				cost = 0
			}
			curr[j+1] = min(prev[j+1]+1, curr[j]+1, prev[j]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
