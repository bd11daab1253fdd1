package translation

import (
	"log"

	"gitlab.com/akita/simtexec/kernels"
)

// ThreadFunc executes one hyperblock for a single thread.
type ThreadFunc func(ctx *kernels.ThreadContext)

// WarpFunc executes one hyperblock for a whole warp in lockstep.
type WarpFunc func(warp []*kernels.ThreadContext)

// A Hyperblock is the Go rendition of one partitioned kernel region.
type Hyperblock struct {
	Entry kernels.EntryID
	Name  string

	// Thread is used when the warp is executed one thread at a time.
	Thread ThreadFunc

	// Warp, if set, is preferred and runs all threads together.
	Warp WarpFunc

	// MaxWidth bounds the warp width the block can be compiled for. Zero
	// means unbounded.
	MaxWidth int

	// LiveIn is the number of values live on entry, reported to profilers.
	LiveIn int
}

// A Program is the set of hyperblocks of one kernel.
type Program struct {
	Name   string
	blocks map[kernels.EntryID]Hyperblock
}

// NewProgram creates an empty program.
func NewProgram(name string) *Program {
	return &Program{
		Name:   name,
		blocks: make(map[kernels.EntryID]Hyperblock),
	}
}

// Add registers a hyperblock. Registering the same entry twice is a
// partitioning defect.
func (p *Program) Add(hb Hyperblock) *Program {
	if hb.Thread == nil && hb.Warp == nil {
		log.Panicf("hyperblock %d of %s has no body", hb.Entry, p.Name)
	}

	if _, found := p.blocks[hb.Entry]; found {
		log.Panicf("hyperblock %d of %s registered twice", hb.Entry, p.Name)
	}

	p.blocks[hb.Entry] = hb
	return p
}

// AddThreadFunc registers a scalar hyperblock.
func (p *Program) AddThreadFunc(
	entry kernels.EntryID,
	name string,
	fn ThreadFunc,
) *Program {
	return p.Add(Hyperblock{Entry: entry, Name: name, Thread: fn})
}

// Lookup returns the hyperblock registered at entry.
func (p *Program) Lookup(entry kernels.EntryID) (Hyperblock, bool) {
	hb, found := p.blocks[entry]
	return hb, found
}

// NumEntries returns the number of hyperblocks.
func (p *Program) NumEntries() int {
	return len(p.blocks)
}
