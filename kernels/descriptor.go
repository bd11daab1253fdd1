package kernels

import (
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// DefaultWarpSize is used when a descriptor does not name a warp width.
const DefaultWarpSize = 32

// A Parameter is one kernel parameter, laid out in the parameter region.
type Parameter struct {
	Name   string
	Offset int
	Size   int
	Value  []byte
}

// A TextureBinding names a texture reference bound to the kernel.
type TextureBinding struct {
	Name   string
	Handle uint64
}

// A Descriptor describes a partitioned kernel as handed over by the analysis
// layer: its static memory requirements, its parameters and how many
// hyperblock entries the partitioning pass produced.
type Descriptor struct {
	Name string
	PID  vm.PID

	GridDim  Dim3
	BlockDim Dim3
	WarpSize int

	SharedSize   int
	LocalSize    int
	ConstantSize int
	ArgumentSize int

	Parameters []Parameter
	Textures   []TextureBinding
	Constants  []byte

	NumEntries int
}

// Parameter returns the parameter with the given name, or nil.
func (d *Descriptor) Parameter(name string) *Parameter {
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i]
		}
	}
	return nil
}

// ParameterSize returns the number of bytes the parameter region needs.
func (d *Descriptor) ParameterSize() int {
	size := 0
	for _, p := range d.Parameters {
		if end := p.Offset + p.Size; end > size {
			size = end
		}
	}
	return size
}

// Validate checks that the descriptor can be launched.
func (d *Descriptor) Validate() error {
	if d.BlockDim.Size() <= 0 {
		return errors.Errorf("kernel %s: empty block dimension %s",
			d.Name, d.BlockDim)
	}

	if d.GridDim.Size() <= 0 {
		return errors.Errorf("kernel %s: empty grid dimension %s",
			d.Name, d.GridDim)
	}

	if d.WarpSize < 0 {
		return errors.Errorf("kernel %s: negative warp size %d",
			d.Name, d.WarpSize)
	}

	sizes := []struct {
		name string
		size int
	}{
		{"shared", d.SharedSize},
		{"local", d.LocalSize},
		{"constant", d.ConstantSize},
		{"argument", d.ArgumentSize},
	}
	for _, r := range sizes {
		if r.size < 0 {
			return errors.Errorf("kernel %s: negative %s memory size %d",
				d.Name, r.name, r.size)
		}
	}

	if len(d.Constants) > d.ConstantSize {
		return errors.Errorf("kernel %s: %d constant bytes exceed region of %d",
			d.Name, len(d.Constants), d.ConstantSize)
	}

	for _, p := range d.Parameters {
		if p.Offset < 0 || p.Size < 0 || len(p.Value) > p.Size {
			return errors.Errorf("kernel %s: malformed parameter %q",
				d.Name, p.Name)
		}
	}

	return nil
}
