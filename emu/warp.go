package emu

import (
	"log"

	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// A Warp is a batch of threads sharing an entry point, dispatched together
// into one translation. Warps hold references into their CTA and are rebuilt
// every scheduling round.
type Warp struct {
	Entry   kernels.EntryID
	Threads []*kernels.ThreadContext

	capacity int

	translation translation.Translation

	// vector is set when the warp is backed by a warp-level slot array.
	vector *vectorWarp
}

// NewWarp creates an empty warp that holds at most capacity threads.
func NewWarp(entry kernels.EntryID, capacity int) *Warp {
	return &Warp{
		Entry:    entry,
		Threads:  make([]*kernels.ThreadContext, 0, capacity),
		capacity: capacity,
	}
}

// Add appends a thread. Exceeding the capacity or mixing entries is a
// scheduler defect.
func (w *Warp) Add(ctx *kernels.ThreadContext) {
	if len(w.Threads) >= w.capacity {
		log.Panicf("warp at entry %d is full (%d threads)",
			w.Entry, w.capacity)
	}

	if ctx.ResumePoint != w.Entry {
		log.Panicf("thread %d resumes at %d, cannot join warp at entry %d",
			ctx.LinearID, ctx.ResumePoint, w.Entry)
	}

	w.Threads = append(w.Threads, ctx)
}

// Size returns the number of threads in the warp.
func (w *Warp) Size() int {
	return len(w.Threads)
}

// Capacity returns the maximum number of threads.
func (w *Warp) Capacity() int {
	return w.capacity
}

// Full checks if no more threads fit.
func (w *Warp) Full() bool {
	return len(w.Threads) == w.capacity
}
