package classify

import (
	"fmt"
	"math/rand"

	"winepress/internal/features"
)

// Split shuffles row indices with the given seed and carves off testFraction
// of the rows for held-out evaluation. The same seed always produces the
// same partition.
func Split(set *features.Set, testFraction float64, seed int64) (train, test *features.Set, err error) {
	if set == nil || len(set.X) == 0 {
		return nil, nil, fmt.Errorf("classify: cannot split empty feature set")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("classify: test fraction must be in (0, 1), got %f", testFraction)
	}

	n := len(set.X)
	testN := int(float64(n) * testFraction)
	if testN == 0 || testN == n {
		return nil, nil, fmt.Errorf("classify: test fraction %f leaves an empty partition for %d rows", testFraction, n)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	pick := func(indices []int) *features.Set {
		out := &features.Set{
			Names:  set.Names,
			X:      make([][]float64, len(indices)),
			Labels: make([]string, len(indices)),
		}
		for i, src := range indices {
			out.X[i] = set.X[src]
			out.Labels[i] = set.Labels[src]
		}
		return out
	}

	return pick(idx[testN:]), pick(idx[:testN]), nil
}
