// Package profiler collects observational statistics of kernel execution.
// Nothing recorded here is consulted for scheduling decisions.
package profiler

import (
	"sort"

	"gitlab.com/akita/simtexec/kernels"
)

// EntryStat is the visit count of one hyperblock entry.
type EntryStat struct {
	Entry  kernels.EntryID `json:"entry"`
	Visits uint64          `json:"visits"`
}

// EntryCounter counts how many thread visits each entry received.
type EntryCounter struct {
	visits map[kernels.EntryID]uint64
}

// NewEntryCounter creates an empty counter.
func NewEntryCounter() *EntryCounter {
	return &EntryCounter{
		visits: make(map[kernels.EntryID]uint64),
	}
}

// Count adds n thread visits to entry.
func (c *EntryCounter) Count(entry kernels.EntryID, n int) {
	c.visits[entry] += uint64(n)
}

// Visits returns the visits recorded for entry.
func (c *EntryCounter) Visits(entry kernels.EntryID) uint64 {
	return c.visits[entry]
}

// Total returns the visits over all entries.
func (c *EntryCounter) Total() uint64 {
	total := uint64(0)
	for _, v := range c.visits {
		total += v
	}
	return total
}

// Merge adds all counts of other into c.
func (c *EntryCounter) Merge(other *EntryCounter) {
	for e, v := range other.visits {
		c.visits[e] += v
	}
}

// Entries lists the counts ordered by entry id.
func (c *EntryCounter) Entries() []EntryStat {
	stats := make([]EntryStat, 0, len(c.visits))
	for e, v := range c.visits {
		stats = append(stats, EntryStat{Entry: e, Visits: v})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Entry < stats[j].Entry
	})

	return stats
}
