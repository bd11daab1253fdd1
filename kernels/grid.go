package kernels

import "github.com/rs/xid"

// A Grid is one launch of a kernel: the kernel descriptor together with the
// extent of blocks it runs over.
type Grid struct {
	UID     string
	Kernel  *Descriptor
	GridDim Dim3
}

// NewGrid creates a grid over the launch extent of the given kernel.
func NewGrid(kernel *Descriptor) *Grid {
	g := new(Grid)
	g.UID = xid.New().String()
	g.Kernel = kernel
	g.GridDim = kernel.GridDim
	return g
}

// NumBlocks returns how many CTAs the grid launches.
func (g *Grid) NumBlocks() int {
	return g.GridDim.Size()
}

// BlockIDs lists every block id of the grid in flattened order.
func (g *Grid) BlockIDs() []Dim3 {
	ids := make([]Dim3, 0, g.NumBlocks())
	for i := 0; i < g.NumBlocks(); i++ {
		ids = append(ids, g.GridDim.Unflatten(i))
	}
	return ids
}

// Partition distributes the blocks round-robin over numProcessors
// processors. Processor p receives blocks p, p+n, p+2n, ...
func (g *Grid) Partition(numProcessors int) [][]Dim3 {
	if numProcessors <= 0 {
		numProcessors = 1
	}

	parts := make([][]Dim3, numProcessors)
	for i, id := range g.BlockIDs() {
		p := i % numProcessors
		parts[p] = append(parts[p], id)
	}

	return parts
}
