package service

import "math/rand"

// sampleIDs draws min(n, len(pool)) distinct ids from pool using a
// partial Fisher–Yates shuffle: each of the first n positions is
// swapped with a uniformly chosen later position, so every subset and
// every ordering of the draw is equally likely. The returned slice is
// the draw order itself; callers must not re-sort it.
func sampleIDs(rng *rand.Rand, pool []int64, n int) []int64 {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return []int64{}
	}

	ids := make([]int64, len(pool))
	copy(ids, pool)

	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:n]
}
