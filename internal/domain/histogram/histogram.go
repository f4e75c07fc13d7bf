// Package histogram turns raw per-class pixel counts into labeled percentage
// distributions.
package histogram

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
)

// RawHistogram maps a class id to its pixel count. Counts are reducer pixel
// weights and may be fractional where a pixel straddles the AOI edge.
type RawHistogram map[int]float64

// Total returns the sum of all counts.
func (h RawHistogram) Total() float64 {
	var total float64
	for _, c := range h {
		total += c
	}
	return total
}

// ClassIDs returns the class ids present in h in ascending order.
func (h RawHistogram) ClassIDs() []int {
	return slices.Sorted(maps.Keys(h))
}

// Check reports the first negative or non-finite count in h, or a total that
// overflows.
func (h RawHistogram) Check() error {
	for _, id := range h.ClassIDs() {
		if c := h[id]; !ValidCount(c) {
			return fmt.Errorf("%w: class %d has count %v", ErrInvalidCount, id, c)
		}
	}
	if total := h.Total(); math.IsInf(total, 0) {
		return fmt.Errorf("%w: total count overflows", ErrInvalidCount)
	}
	return nil
}

// ValidCount reports whether c is a finite, non-negative pixel count.
func ValidCount(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0
}

// Reclassify folds continuous pixel values into interval classes. Each value
// lands in the smallest break that is >= the value; values above the top break
// land in the top class. breaks must be ascending.
func Reclassify(values map[float64]float64, breaks []int) RawHistogram {
	out := make(RawHistogram, len(breaks))
	if len(breaks) == 0 {
		return out
	}
	top := breaks[len(breaks)-1]
	for v, c := range values {
		i := sort.Search(len(breaks), func(i int) bool { return float64(breaks[i]) >= v })
		class := top
		if i < len(breaks) {
			class = breaks[i]
		}
		out[class] += c
	}
	return out
}
