// Package cache holds small in-process caches used during a single run.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Size returns the current number of items in the cache
	Size() int

	// Stats reports hit and miss counters since creation
	Stats() Stats
}

// Stats counts cache lookups
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
}

// HitRatio is hits over total lookups, or 0 when nothing was looked up
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
