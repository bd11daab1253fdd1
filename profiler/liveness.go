package profiler

import (
	"sort"

	"gitlab.com/akita/simtexec/kernels"
)

// LivenessStat summarizes the live values seen on entry to a hyperblock.
type LivenessStat struct {
	Entry      kernels.EntryID `json:"entry"`
	Dispatches uint64          `json:"dispatches"`
	LiveValues uint64          `json:"live_values"`
}

// Average returns the mean number of live values per dispatch.
func (s LivenessStat) Average() float64 {
	if s.Dispatches == 0 {
		return 0
	}
	return float64(s.LiveValues) / float64(s.Dispatches)
}

// LivenessEntryCounter accumulates live-value counts per entry.
type LivenessEntryCounter struct {
	stats map[kernels.EntryID]*LivenessStat
}

// NewLivenessEntryCounter creates an empty counter.
func NewLivenessEntryCounter() *LivenessEntryCounter {
	return &LivenessEntryCounter{
		stats: make(map[kernels.EntryID]*LivenessStat),
	}
}

// Count records one dispatch of entry with the given live values.
func (c *LivenessEntryCounter) Count(entry kernels.EntryID, liveValues int) {
	s, found := c.stats[entry]
	if !found {
		s = &LivenessStat{Entry: entry}
		c.stats[entry] = s
	}

	s.Dispatches++
	s.LiveValues += uint64(liveValues)
}

// Stat returns the record of entry.
func (c *LivenessEntryCounter) Stat(entry kernels.EntryID) LivenessStat {
	if s, found := c.stats[entry]; found {
		return *s
	}
	return LivenessStat{Entry: entry}
}

// Merge adds all records of other into c.
func (c *LivenessEntryCounter) Merge(other *LivenessEntryCounter) {
	for e, o := range other.stats {
		s, found := c.stats[e]
		if !found {
			s = &LivenessStat{Entry: e}
			c.stats[e] = s
		}
		s.Dispatches += o.Dispatches
		s.LiveValues += o.LiveValues
	}
}

// Entries lists the records ordered by entry id.
func (c *LivenessEntryCounter) Entries() []LivenessStat {
	stats := make([]LivenessStat, 0, len(c.stats))
	for _, s := range c.stats {
		stats = append(stats, *s)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Entry < stats[j].Entry
	})

	return stats
}
