package emu

import (
	"github.com/google/btree"

	"gitlab.com/akita/simtexec/kernels"
)

// CTAState marks where a CTA is in its lifecycle.
type CTAState int

// A list of all CTA states.
const (
	CTAUninitialized CTAState = iota
	CTAActive                 // Has ready or waiting threads
	CTADraining               // Threads unaccounted for; a scheduling defect
	CTARetired                // Every thread exited
)

func (s CTAState) String() string {
	switch s {
	case CTAUninitialized:
		return "uninitialized"
	case CTAActive:
		return "active"
	case CTADraining:
		return "draining"
	case CTARetired:
		return "retired"
	}
	return "unknown"
}

// A CTA is one cooperative thread array resident on an executive. It owns the
// memory regions and thread contexts of its block.
type CTA struct {
	UID      string
	BlockID  kernels.Dim3
	Key      int
	BlockDim kernels.Dim3
	State    CTAState

	Memory   *kernels.CTAMemory
	Contexts []*kernels.ThreadContext

	exited int

	// queues is owned by the CTAScheduler of the executive.
	queues interface{}
}

// Less orders CTAs by their flattened block id inside the executive's arena.
func (c *CTA) Less(than btree.Item) bool {
	return c.Key < than.(*CTA).Key
}

// NumThreads returns the number of thread contexts the CTA owns.
func (c *CTA) NumThreads() int {
	return len(c.Contexts)
}

// NumExited returns how many threads reported a final exit.
func (c *CTA) NumExited() int {
	return c.exited
}

// Done checks if every thread has exited.
func (c *CTA) Done() bool {
	return c.exited == len(c.Contexts)
}

// CTAStatus is a snapshot of a CTA's scheduling sets.
type CTAStatus struct {
	BlockID kernels.Dim3
	State   CTAState
	Ready   int
	Waiting int
	Exited  int
	Total   int
}

// Accounted checks that every thread is in exactly one of the ready,
// waiting and exited sets.
func (s CTAStatus) Accounted() bool {
	return s.Ready+s.Waiting+s.Exited == s.Total
}
