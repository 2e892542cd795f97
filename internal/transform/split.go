// Package transform turns a validated dataset into model-ready feature
// matrices: a seeded train/test split followed by scaling and encoding.
package transform

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplit partitions row indices 0..n-1. The test partition holds
// ceil(testSize*n) rows. The same (n, testSize, seed) always yields the same
// partition in the same order.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, fmt.Errorf("test_size must be in (0, 1), got %g", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d rows with test_size %g", n, testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
