package kernels

// EntryID identifies one hyperblock of a partitioned kernel. Entry 0 is the
// kernel entry point.
type EntryID uint32

// ExitCode is the reason a thread returned from a translated hyperblock to the
// scheduler.
type ExitCode int

// A list of all exit codes a translation may produce.
const (
	ExitFallthrough ExitCode = 0
	ExitBranch      ExitCode = 1
	ExitTailCall    ExitCode = 3
	ExitCall        ExitCode = 4
	ExitBarrier     ExitCode = 5
	ExitThread      ExitCode = 6
	ExitOther       ExitCode = 7
	ExitInvalid     ExitCode = 8
)

// Valid checks if the exit code is one the scheduler knows how to reconcile.
func (c ExitCode) Valid() bool {
	switch c {
	case ExitFallthrough, ExitBranch, ExitTailCall, ExitCall,
		ExitBarrier, ExitThread, ExitOther:
		return true
	}
	return false
}

// IsExit checks if the code terminates the thread.
func (c ExitCode) IsExit() bool {
	return c == ExitThread || c == ExitOther
}

func (c ExitCode) String() string {
	switch c {
	case ExitFallthrough:
		return "fallthrough"
	case ExitBranch:
		return "branch"
	case ExitTailCall:
		return "tailcall"
	case ExitCall:
		return "call"
	case ExitBarrier:
		return "barrier"
	case ExitThread:
		return "exit"
	case ExitOther:
		return "exit_other"
	default:
		return "invalid"
	}
}
