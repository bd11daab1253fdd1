// Package vectoradd implements the element-wise addition of two vectors.
package vectoradd

import (
	"math/rand"

	"github.com/pkg/errors"

	"gitlab.com/akita/simtexec/benchmarks"
	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// Benchmark computes c = a + b.
type Benchmark struct {
	Width    int
	BlockDim int

	a, b   []float32
	global *kernels.Region
	kernel *kernels.Descriptor
}

// NewBenchmark creates a vector add benchmark.
func NewBenchmark() *Benchmark {
	return &Benchmark{
		Width:    1024,
		BlockDim: 64,
	}
}

// Name returns "vectoradd".
func (b *Benchmark) Name() string {
	return "vectoradd"
}

// Kernel allocates the vectors and returns the launch descriptor.
func (b *Benchmark) Kernel() *kernels.Descriptor {
	n := b.Width
	b.a = make([]float32, n)
	b.b = make([]float32, n)
	b.global = kernels.NewGlobalRegion("global", 1, 3*4*n)

	for i := 0; i < n; i++ {
		b.a[i] = rand.Float32()
		b.b[i] = rand.Float32()
		b.global.SetFloat32(uint64(4*i), b.a[i])
		b.global.SetFloat32(uint64(4*(n+i)), b.b[i])
	}

	numBlocks := (n + b.BlockDim - 1) / b.BlockDim
	b.kernel = &kernels.Descriptor{
		Name:     "vector_add",
		PID:      1,
		GridDim:  kernels.D3(numBlocks, 1, 1),
		BlockDim: kernels.D3(b.BlockDim, 1, 1),
		Parameters: []kernels.Parameter{
			benchmarks.Uint32Param("a", 0, 0),
			benchmarks.Uint32Param("b", 4, uint32(4*n)),
			benchmarks.Uint32Param("c", 8, uint32(8*n)),
			benchmarks.Uint32Param("n", 12, uint32(n)),
		},
		NumEntries: 1,
	}

	return b.kernel
}

// Program returns the single hyperblock of the kernel.
func (b *Benchmark) Program() *translation.Program {
	d := b.kernel
	aOff := benchmarks.ParamOffset(d, "a")
	bOff := benchmarks.ParamOffset(d, "b")
	cOff := benchmarks.ParamOffset(d, "c")
	nOff := benchmarks.ParamOffset(d, "n")

	p := translation.NewProgram("vector_add")
	p.Add(translation.Hyperblock{
		Entry:  0,
		Name:   "add",
		LiveIn: 4,
		Thread: func(ctx *kernels.ThreadContext) {
			i := uint64(ctx.GlobalLinearID())
			if i < uint64(ctx.Parameter.Uint32(nOff)) {
				x := b.global.Float32(uint64(ctx.Parameter.Uint32(aOff)) + 4*i)
				y := b.global.Float32(uint64(ctx.Parameter.Uint32(bOff)) + 4*i)
				b.global.SetFloat32(uint64(ctx.Parameter.Uint32(cOff))+4*i, x+y)
			}
			ctx.Exit()
		},
	})

	return p
}

// Verify checks every element of c.
func (b *Benchmark) Verify() error {
	n := b.Width
	for i := 0; i < n; i++ {
		got := b.global.Float32(uint64(4 * (2*n + i)))
		if want := b.a[i] + b.b[i]; got != want {
			return errors.Errorf("vectoradd: c[%d] = %f, expected %f",
				i, got, want)
		}
	}
	return nil
}
