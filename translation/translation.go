// Package translation defines how the dynamic executive obtains executable
// code for a hyperblock, and provides a backend that runs hyperblocks written
// as Go functions.
package translation

import (
	"fmt"

	"gitlab.com/akita/simtexec/kernels"
)

// A Translation is executable code for one hyperblock at one warp width.
type Translation interface {
	// Entry returns the hyperblock the translation was compiled from.
	Entry() kernels.EntryID

	// Width returns the number of threads the translation executes at once.
	// It is never larger than the width requested at compilation.
	Width() int

	// Execute runs every thread of the warp until it reaches a hyperblock
	// boundary, leaving the exit code and resume point in its context.
	Execute(warp []*kernels.ThreadContext)
}

// A Cache maps (entry, width) to compiled translations. LookupOrCompile is
// idempotent: repeated calls with the same key yield translations that
// behave identically.
type Cache interface {
	LookupOrCompile(entry kernels.EntryID, width int) (Translation, error)
}

// LivenessReporter is implemented by translations that know how many values
// are live on entry to their hyperblock.
type LivenessReporter interface {
	LiveValues() int
}

// CompilationError reports that no translation could be produced.
type CompilationError struct {
	Entry kernels.EntryID
	Width int
	Err   error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compiling entry %d at width %d: %v",
		e.Entry, e.Width, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}
