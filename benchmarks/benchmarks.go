// Package benchmarks defines the kernels the sample runner can launch.
package benchmarks

import (
	"encoding/binary"

	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// A Benchmark is a kernel launch together with the hyperblocks that
// implement it and a way to check the result.
type Benchmark interface {
	// Name identifies the benchmark in reports.
	Name() string

	// Kernel returns the descriptor of the launch. Each call may allocate
	// fresh inputs.
	Kernel() *kernels.Descriptor

	// Program returns the hyperblocks of the kernel.
	Program() *translation.Program

	// Verify compares the output against a host computation.
	Verify() error
}

// Uint32Param creates a 4-byte parameter at offset.
func Uint32Param(name string, offset int, v uint32) kernels.Parameter {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)

	return kernels.Parameter{
		Name:   name,
		Offset: offset,
		Size:   4,
		Value:  buf,
	}
}

// ParamOffset returns where parameter name lives in the parameter region.
// Asking for an unknown parameter is a kernel defect and panics.
func ParamOffset(d *kernels.Descriptor, name string) uint64 {
	p := d.Parameter(name)
	if p == nil {
		panic("no kernel parameter " + name)
	}
	return uint64(p.Offset)
}
