package filter

import "math"

const (
	// MinWidth is the smallest supported counter-vector width.
	MinWidth = 64

	// MaxK is the largest supported number of probe positions per id.
	MaxK = 16

	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453

	// ln2Squared is ln(2)^2, used in optimal sizing calculations.
	ln2Squared = ln2 * ln2
)

// OptimalParams calculates the counter-vector width and probe count for the
// expected number of resident items and the desired false positive rate.
//
// It uses the standard Bloom filter formulas:
//   - width = -n * ln(p) / ln(2)^2
//   - k = (width / n) * ln(2)
func OptimalParams(expectedItems uint64, fpRate float64) (width uint64, k int) {
	if expectedItems == 0 {
		expectedItems = 1
	}

	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	width = uint64(math.Ceil(-float64(expectedItems) * math.Log(fpRate) / ln2Squared))
	if width < MinWidth {
		width = MinWidth
	}

	countersPerItem := float64(width) / float64(expectedItems)

	k = int(math.Round(countersPerItem * ln2))
	if k < 1 {
		k = 1
	}

	if k > MaxK {
		k = MaxK
	}

	return width, k
}
