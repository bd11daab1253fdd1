// Package callsum exercises calls and returns with a recursive hyperblock:
// every thread sums 1..k by calling itself k times, where k depends on the
// thread id, so threads of one warp return at different depths.
package callsum

import (
	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/benchmarks"
	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// Hyperblock entries of the kernel.
const (
	entryMain kernels.EntryID = iota
	entryAccumulate
	entryStore
	entryUnwind
)

// Local memory layout of one thread.
const (
	localCounter = 0
	localSum     = 4
)

// Benchmark computes out[i] = k(k+1)/2 with k = i%MaxDepth + 1.
type Benchmark struct {
	NumBlocks int
	BlockDim  int
	MaxDepth  int

	global *kernels.Region
	kernel *kernels.Descriptor
}

// NewBenchmark creates a call benchmark.
func NewBenchmark() *Benchmark {
	return &Benchmark{
		NumBlocks: 4,
		BlockDim:  32,
		MaxDepth:  8,
	}
}

// Name returns "callsum".
func (b *Benchmark) Name() string {
	return "callsum"
}

// Kernel returns the launch descriptor.
func (b *Benchmark) Kernel() *kernels.Descriptor {
	n := b.NumBlocks * b.BlockDim
	b.global = kernels.NewGlobalRegion("global", 1, 4*n)

	b.kernel = &kernels.Descriptor{
		Name:      "call_sum",
		PID:       1,
		GridDim:   kernels.D3(b.NumBlocks, 1, 1),
		BlockDim:  kernels.D3(b.BlockDim, 1, 1),
		LocalSize: 8,
		Parameters: []kernels.Parameter{
			benchmarks.Uint32Param("out", 0, 0),
			benchmarks.Uint32Param("depth", 4, uint32(b.MaxDepth)),
		},
		NumEntries: 4,
	}

	return b.kernel
}

// Program returns the hyperblocks of the kernel.
func (b *Benchmark) Program() *translation.Program {
	d := b.kernel
	outOff := benchmarks.ParamOffset(d, "out")
	depthOff := benchmarks.ParamOffset(d, "depth")

	p := translation.NewProgram("call_sum")

	p.AddThreadFunc(entryMain, "main", func(ctx *kernels.ThreadContext) {
		depth := int(ctx.Parameter.Uint32(depthOff))
		k := ctx.GlobalLinearID()%depth + 1

		ctx.Local.SetUint32(localCounter, uint32(k))
		ctx.Local.SetUint32(localSum, 0)
		ctx.Call(entryAccumulate, entryStore)
	})

	p.AddThreadFunc(entryAccumulate, "accumulate",
		func(ctx *kernels.ThreadContext) {
			counter := ctx.Local.Uint32(localCounter)
			sum := ctx.Local.Uint32(localSum)

			ctx.Local.SetUint32(localSum, sum+counter)
			ctx.Local.SetUint32(localCounter, counter-1)

			if counter > 1 {
				ctx.Call(entryAccumulate, entryUnwind)
				return
			}
			ctx.Return()
		})

	p.AddThreadFunc(entryUnwind, "unwind", func(ctx *kernels.ThreadContext) {
		ctx.Return()
	})

	p.AddThreadFunc(entryStore, "store", func(ctx *kernels.ThreadContext) {
		out := uint64(ctx.Parameter.Uint32(outOff))
		i := uint64(ctx.GlobalLinearID())
		b.global.SetUint32(out+4*i, ctx.Local.Uint32(localSum))
		ctx.Exit()
	})

	return p
}

// Verify checks every thread's sum.
func (b *Benchmark) Verify() error {
	n := b.NumBlocks * b.BlockDim
	for i := 0; i < n; i++ {
		k := uint32(i%b.MaxDepth + 1)
		want := k * (k + 1) / 2

		if got := b.global.Uint32(uint64(4 * i)); got != want {
			return errors.Errorf("callsum: thread %d summed %d, expected %d",
				i, got, want)
		}
	}
	return nil
}
