// Package reduction sums an array with one tree reduction in shared memory
// per CTA.
package reduction

import (
	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/benchmarks"
	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// Hyperblock entries of the kernel.
const (
	entryLoad kernels.EntryID = iota
	entryStep
	entryStore
)

// Benchmark sums NumBlocks*BlockDim unsigned words into one partial sum per
// block.
type Benchmark struct {
	NumBlocks int
	BlockDim  int

	input  []uint32
	global *kernels.Region
	kernel *kernels.Descriptor
}

// NewBenchmark creates a reduction benchmark. BlockDim must be a power of
// two.
func NewBenchmark() *Benchmark {
	return &Benchmark{
		NumBlocks: 16,
		BlockDim:  64,
	}
}

// Name returns "reduction".
func (b *Benchmark) Name() string {
	return "reduction"
}

// Kernel allocates the input and returns the launch descriptor.
func (b *Benchmark) Kernel() *kernels.Descriptor {
	n := b.NumBlocks * b.BlockDim
	b.input = make([]uint32, n)
	b.global = kernels.NewGlobalRegion("global", 1, 4*(n+b.NumBlocks))

	for i := range b.input {
		b.input[i] = uint32(i % 97)
		b.global.SetUint32(uint64(4*i), b.input[i])
	}

	b.kernel = &kernels.Descriptor{
		Name:       "reduce",
		PID:        1,
		GridDim:    kernels.D3(b.NumBlocks, 1, 1),
		BlockDim:   kernels.D3(b.BlockDim, 1, 1),
		SharedSize: 4 * b.BlockDim,
		LocalSize:  4,
		Parameters: []kernels.Parameter{
			benchmarks.Uint32Param("in", 0, 0),
			benchmarks.Uint32Param("out", 4, uint32(4*n)),
		},
		NumEntries: 3,
	}

	return b.kernel
}

// Program returns the three hyperblocks of the kernel. The stride is kept in
// local memory across barriers.
func (b *Benchmark) Program() *translation.Program {
	d := b.kernel
	inOff := benchmarks.ParamOffset(d, "in")
	outOff := benchmarks.ParamOffset(d, "out")

	p := translation.NewProgram("reduce")

	p.AddThreadFunc(entryLoad, "load", func(ctx *kernels.ThreadContext) {
		tid := uint64(ctx.LinearID)
		in := uint64(ctx.Parameter.Uint32(inOff))
		v := b.global.Uint32(in + 4*uint64(ctx.GlobalLinearID()))

		ctx.Shared.SetUint32(4*tid, v)
		ctx.Local.SetUint32(0, uint32(ctx.BlockDim.Size()/2))
		ctx.Barrier(entryStep)
	})

	p.Add(translation.Hyperblock{
		Entry:  entryStep,
		Name:   "step",
		LiveIn: 2,
		Warp: func(warp []*kernels.ThreadContext) {
			for _, ctx := range warp {
				tid := uint32(ctx.LinearID)
				stride := ctx.Local.Uint32(0)

				if tid < stride {
					x := ctx.Shared.Uint32(uint64(4 * tid))
					y := ctx.Shared.Uint32(uint64(4 * (tid + stride)))
					ctx.Shared.SetUint32(uint64(4*tid), x+y)
				}

				stride /= 2
				ctx.Local.SetUint32(0, stride)
				if stride > 0 {
					ctx.Barrier(entryStep)
				} else {
					ctx.Barrier(entryStore)
				}
			}
		},
	})

	p.AddThreadFunc(entryStore, "store", func(ctx *kernels.ThreadContext) {
		if ctx.LinearID == 0 {
			out := uint64(ctx.Parameter.Uint32(outOff))
			block := uint64(ctx.GridDim.Flatten(ctx.BlockID))
			b.global.SetUint32(out+4*block, ctx.Shared.Uint32(0))
		}
		ctx.Exit()
	})

	return p
}

// Verify compares every partial sum with the host result.
func (b *Benchmark) Verify() error {
	out := uint64(4 * len(b.input))

	for blk := 0; blk < b.NumBlocks; blk++ {
		var want uint32
		for i := 0; i < b.BlockDim; i++ {
			want += b.input[blk*b.BlockDim+i]
		}

		got := b.global.Uint32(out + uint64(4*blk))
		if got != want {
			return errors.Errorf("reduction: block %d sums to %d, expected %d",
				blk, got, want)
		}
	}

	return nil
}
