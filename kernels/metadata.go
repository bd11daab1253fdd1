package kernels

// Metadata is the per-launch description the executive works from. It is
// built once when the executive is constructed and never changes afterwards.
type Metadata struct {
	SharedSize    int
	LocalSize     int
	ParameterSize int
	ArgumentSize  int
	ConstantSize  int
	WarpSize      int

	Textures []TextureBinding
	Kernel   *Descriptor

	// NextEntryID is the first entry id not assigned by the partitioning pass.
	NextEntryID EntryID
}

// NewMetadata derives the launch metadata from a kernel descriptor. Dynamic
// shared memory is added on top of the statically declared shared size.
func NewMetadata(d *Descriptor, dynamicSharedMem int) Metadata {
	warpSize := d.WarpSize
	if warpSize == 0 {
		warpSize = DefaultWarpSize
	}

	return Metadata{
		SharedSize:    d.SharedSize + dynamicSharedMem,
		LocalSize:     d.LocalSize,
		ParameterSize: d.ParameterSize(),
		ArgumentSize:  d.ArgumentSize,
		ConstantSize:  d.ConstantSize,
		WarpSize:      warpSize,
		Textures:      d.Textures,
		Kernel:        d,
		NextEntryID:   EntryID(d.NumEntries),
	}
}

// ThreadsPerCTA returns the number of thread contexts each CTA holds.
func (m Metadata) ThreadsPerCTA() int {
	return m.Kernel.BlockDim.Size()
}
