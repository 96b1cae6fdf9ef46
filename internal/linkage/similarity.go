package linkage

// SimilarityFunc scores two query fingerprints in [0, 1]. Implementations
// must be symmetric and deterministic; the detector treats the exact measure
// as replaceable.
type SimilarityFunc func(a, b string) float64

// PrefixSimilarity scores fingerprints by their shared prefix relative to n
// leading characters. Two hashes agreeing on all n characters score 1.0;
// shorter agreement scores proportionally. A crude measure, but it captures
// the common case of requesters re-submitting near-identical canonical
// queries whose hashes share structure.
func PrefixSimilarity(n int) SimilarityFunc {
	if n <= 0 {
		n = 8
	}
	return func(a, b string) float64 {
		if a == "" || b == "" {
			return 0
		}
		limit := n
		if len(a) < limit {
			limit = len(a)
		}
		if len(b) < limit {
			limit = len(b)
		}
		matched := 0
		for i := 0; i < limit; i++ {
			if a[i] != b[i] {
				break
			}
			matched++
		}
		return float64(matched) / float64(n)
	}
}
