package emu

import (
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/kernels"
)

// SchedulingMode selects how a CTA groups its threads into warps.
type SchedulingMode int

// A list of all scheduling modes.
const (
	// ThreadLevel keeps per-thread ready and barrier queues and forms a warp
	// from the ready threads that share an entry every round.
	ThreadLevel SchedulingMode = iota

	// WarpLevel keeps a vector of warps that are homogeneous by
	// construction and dispatches them directly.
	WarpLevel
)

func (m SchedulingMode) String() string {
	switch m {
	case ThreadLevel:
		return "thread"
	case WarpLevel:
		return "warp"
	}
	return "unknown"
}

// ParseSchedulingMode converts a flag value into a mode.
func ParseSchedulingMode(s string) (SchedulingMode, error) {
	switch strings.ToLower(s) {
	case "thread", "thread-level":
		return ThreadLevel, nil
	case "warp", "warp-level":
		return WarpLevel, nil
	}
	return ThreadLevel, errors.Errorf("unknown scheduling mode %q", s)
}

// A CTAScheduler owns the ready and barrier-wait sets of the CTAs of one
// executive.
type CTAScheduler interface {
	// Init places every thread of a freshly created CTA in the ready set.
	Init(cta *CTA)

	// NextEntry reports the entry of the next warp to run and how many
	// ready threads share it. It returns false if no thread is ready.
	NextEntry(cta *CTA) (entry kernels.EntryID, available int, ok bool)

	// FormWarp removes up to width ready threads at entry from the ready
	// set, earliest first, and returns them as a warp.
	FormWarp(cta *CTA, entry kernels.EntryID, width int) *Warp

	// Reconcile moves the threads of an executed warp into the set their
	// exit code selects.
	Reconcile(cta *CTA, warp *Warp) error

	// TestBarrier releases every waiting thread if all non-exited threads
	// of the CTA are waiting. It reports whether a release happened.
	TestBarrier(cta *CTA) bool

	NumReady(cta *CTA) int
	NumWaiting(cta *CTA) int
}

// NewCTAScheduler creates the scheduler for a mode.
func NewCTAScheduler(mode SchedulingMode, warpSize int) CTAScheduler {
	switch mode {
	case WarpLevel:
		return &warpLevelScheduler{warpSize: warpSize}
	default:
		return &threadLevelScheduler{}
	}
}

type disposition int

const (
	toReady disposition = iota
	toWaiting
	toExited
)

// classify applies the exit code of one executed thread. Call moves the
// continuation onto the thread's return stack; exits are counted on the CTA.
func classify(cta *CTA, entry kernels.EntryID, ctx *kernels.ThreadContext) (
	disposition, error,
) {
	switch ctx.ExitCode {
	case kernels.ExitFallthrough, kernels.ExitBranch, kernels.ExitTailCall:
		return toReady, nil
	case kernels.ExitCall:
		ctx.PushReturn(ctx.ReturnPoint)
		ctx.ReturnPoint = 0
		return toReady, nil
	case kernels.ExitBarrier:
		return toWaiting, nil
	case kernels.ExitThread, kernels.ExitOther:
		cta.exited++
		return toExited, nil
	}

	return toExited, &ExitCodeError{
		BlockID: cta.BlockID,
		Thread:  ctx.LinearID,
		Entry:   entry,
		Code:    ctx.ExitCode,
	}
}
