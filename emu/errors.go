package emu

import (
	"fmt"

	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/kernels"
)

// Precondition violations.
var (
	ErrDuplicateCTA   = errors.New("CTA already active on this processor")
	ErrRetiredCTA     = errors.New("CTA already retired on this processor")
	ErrBlockOutOfGrid = errors.New("block id outside the launch grid")
	ErrNoActiveCTA    = errors.New("no active CTA to execute")
)

// DeadlockError reports a CTA that has neither ready nor releasable waiting
// threads while some of its threads have not exited.
type DeadlockError struct {
	Processor   int
	BlockID     kernels.Dim3
	Waiting     int
	Exited      int
	Total       int
	Unaccounted int
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf(
		"processor %d: deadlock in CTA %s: %d of %d threads exited, "+
			"%d waiting at barrier, %d unaccounted",
		e.Processor, e.BlockID, e.Exited, e.Total, e.Waiting, e.Unaccounted)
}

// ExitCodeError reports an exit code outside the known enumeration.
type ExitCodeError struct {
	BlockID kernels.Dim3
	Thread  int
	Entry   kernels.EntryID
	Code    kernels.ExitCode
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf(
		"CTA %s thread %d: malformed exit code %d after entry %d",
		e.BlockID, e.Thread, int(e.Code), e.Entry)
}
