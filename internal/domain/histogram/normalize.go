package histogram

import (
	"cmp"
	"slices"

	"github.com/okian/zonal/internal/domain/dataset"
)

// Share is one class's slice of a distribution.
type Share struct {
	ClassID    int     `json:"class_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Count      float64 `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution is a normalized histogram. Shares are ordered by ascending
// class id and their percentages sum to 100.
type Distribution struct {
	Dataset string  `json:"dataset"`
	Total   float64 `json:"total"`
	Shares  []Share `json:"shares"`
}

// Map returns the distribution keyed by display name. Classes sharing a name
// are summed so the map still totals 100.
func (d Distribution) Map() map[string]float64 {
	out := make(map[string]float64, len(d.Shares))
	for _, s := range d.Shares {
		out[s.Name] += s.Percentage
	}
	return out
}

// Normalize converts h into percentages and resolves each class id through
// desc. Every class present in h must exist in desc; a missing one fails with
// dataset.ErrUnknownClass rather than being dropped.
func Normalize(h RawHistogram, desc *dataset.Descriptor) (Distribution, error) {
	if err := h.Check(); err != nil {
		return Distribution{}, err
	}
	total := h.Total()
	if len(h) == 0 || total == 0 {
		return Distribution{}, ErrEmptyHistogram
	}

	ids := h.ClassIDs()
	shares := make([]Share, 0, len(ids))
	for _, id := range ids {
		class, ok := desc.Class(id)
		if !ok {
			_, err := desc.NameFor(id)
			return Distribution{}, err
		}
		shares = append(shares, Share{
			ClassID:    id,
			Name:       class.Name,
			Color:      class.Color,
			Count:      h[id],
			Percentage: 100 * h[id] / total,
		})
	}

	return Distribution{Dataset: desc.Key, Total: total, Shares: shares}, nil
}

// TopN returns the n largest shares by percentage, ties broken by ascending
// class id. n <= 0 returns every share.
func TopN(d Distribution, n int) []Share {
	ranked := slices.Clone(d.Shares)
	slices.SortStableFunc(ranked, func(a, b Share) int {
		if c := cmp.Compare(b.Percentage, a.Percentage); c != 0 {
			return c
		}
		return cmp.Compare(a.ClassID, b.ClassID)
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
