package kernels

// A ThreadContext is the execution state of one logical thread. The
// translation layer reads and writes its registers and memory; the scheduler
// only looks at ResumePoint, ExitCode and the return stack.
type ThreadContext struct {
	ThreadID Dim3
	BlockID  Dim3
	BlockDim Dim3
	GridDim  Dim3

	// LinearID is the thread's flattened index inside its CTA.
	LinearID int

	Registers []byte

	Local     *Region
	Shared    *Region
	Constant  *Region
	Parameter *Region
	Argument  *Region

	ResumePoint EntryID
	ExitCode    ExitCode

	// ReturnPoint is the continuation a call returns to. It is only read when
	// ExitCode is ExitCall and is cleared once the call is taken.
	ReturnPoint EntryID

	returnStack []EntryID
}

// NewThreadContext creates a context for the thread at linear index id of a
// CTA, wired to that CTA's memory. The context starts runnable at entry 0.
func NewThreadContext(
	blockID, blockDim, gridDim Dim3,
	id int,
	memory *CTAMemory,
) *ThreadContext {
	ctx := &ThreadContext{
		ThreadID:    blockDim.Unflatten(id),
		BlockID:     blockID,
		BlockDim:    blockDim,
		GridDim:     gridDim,
		LinearID:    id,
		ResumePoint: 0,
		ExitCode:    ExitFallthrough,
	}

	if memory != nil {
		ctx.Local = memory.LocalFor(id)
		ctx.Shared = memory.Shared
		ctx.Constant = memory.Constant
		ctx.Parameter = memory.Parameter
		ctx.Argument = memory.Argument
	}

	return ctx
}

// GlobalLinearID returns a grid-wide unique thread index.
func (c *ThreadContext) GlobalLinearID() int {
	return c.GridDim.Flatten(c.BlockID)*c.BlockDim.Size() + c.LinearID
}

// Branch ends the hyperblock and continues at entry.
func (c *ThreadContext) Branch(entry EntryID) {
	c.ExitCode = ExitBranch
	c.ResumePoint = entry
}

// Fallthrough ends the hyperblock and continues at the next one.
func (c *ThreadContext) Fallthrough(entry EntryID) {
	c.ExitCode = ExitFallthrough
	c.ResumePoint = entry
}

// TailCall transfers to callee without keeping a continuation.
func (c *ThreadContext) TailCall(callee EntryID) {
	c.ExitCode = ExitTailCall
	c.ResumePoint = callee
}

// Call transfers to callee. When the callee returns, the thread resumes at
// continuation.
func (c *ThreadContext) Call(callee, continuation EntryID) {
	c.ExitCode = ExitCall
	c.ResumePoint = callee
	c.ReturnPoint = continuation
}

// Return resumes at the innermost pending continuation. Returning from the
// outermost frame ends the thread.
func (c *ThreadContext) Return() {
	entry, ok := c.PopReturn()
	if !ok {
		c.Exit()
		return
	}
	c.Branch(entry)
}

// Barrier suspends the thread until every thread of its CTA reached the
// barrier, then continues at resume.
func (c *ThreadContext) Barrier(resume EntryID) {
	c.ExitCode = ExitBarrier
	c.ResumePoint = resume
}

// Exit terminates the thread.
func (c *ThreadContext) Exit() {
	c.ExitCode = ExitThread
}

// PushReturn records a continuation for a call in flight.
func (c *ThreadContext) PushReturn(entry EntryID) {
	c.returnStack = append(c.returnStack, entry)
}

// PopReturn removes the innermost continuation.
func (c *ThreadContext) PopReturn() (EntryID, bool) {
	n := len(c.returnStack)
	if n == 0 {
		return 0, false
	}

	entry := c.returnStack[n-1]
	c.returnStack = c.returnStack[:n-1]
	return entry, true
}

// CallDepth returns the number of pending continuations.
func (c *ThreadContext) CallDepth() int {
	return len(c.returnStack)
}
