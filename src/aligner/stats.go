package aligner

// Stats holds the counters an aligner instance accumulates over its
// lifetime. An instance is single-owner so the counters are plain ints;
// callers aggregate across instances after the workers drain.
type Stats struct {
	HashTableLookups                      int64
	LocationsScoredLandauVishkin          int64
	LocationsScoredAffineGap              int64
	LocationsScoredHamming                int64
	HitsIgnoredBecauseOfTooHighPopularity int64
	ReadsIgnoredBecauseOfTooManyNs        int64
	IndelsMerged                          int64
}

// Add is a method to fold the counters of another stats block into this one
func (stats *Stats) Add(other *Stats) {
	stats.HashTableLookups += other.HashTableLookups
	stats.LocationsScoredLandauVishkin += other.LocationsScoredLandauVishkin
	stats.LocationsScoredAffineGap += other.LocationsScoredAffineGap
	stats.LocationsScoredHamming += other.LocationsScoredHamming
	stats.HitsIgnoredBecauseOfTooHighPopularity += other.HitsIgnoredBecauseOfTooHighPopularity
	stats.ReadsIgnoredBecauseOfTooManyNs += other.ReadsIgnoredBecauseOfTooManyNs
	stats.IndelsMerged += other.IndelsMerged
}
