package emu

import (
	"github.com/sirupsen/logrus"

	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

// Builder configures and creates DynamicExecutives.
type Builder struct {
	descriptor       *kernels.Descriptor
	processor        int
	cache            translation.Cache
	dynamicSharedMem int
	mode             SchedulingMode
	warpSize         int
	logger           *logrus.Logger
}

// MakeBuilder returns a builder with thread-level scheduling.
func MakeBuilder() Builder {
	return Builder{
		mode:   ThreadLevel,
		logger: logrus.StandardLogger(),
	}
}

// WithDescriptor sets the kernel to execute.
func (b Builder) WithDescriptor(d *kernels.Descriptor) Builder {
	b.descriptor = d
	return b
}

// WithProcessor sets the id of the simulated processor.
func (b Builder) WithProcessor(id int) Builder {
	b.processor = id
	return b
}

// WithTranslationCache sets where translations come from.
func (b Builder) WithTranslationCache(c translation.Cache) Builder {
	b.cache = c
	return b
}

// WithDynamicSharedMemory adds bytes of shared memory to every CTA.
func (b Builder) WithDynamicSharedMemory(bytes int) Builder {
	b.dynamicSharedMem = bytes
	return b
}

// WithSchedulingMode selects thread-level or warp-level scheduling.
func (b Builder) WithSchedulingMode(m SchedulingMode) Builder {
	b.mode = m
	return b
}

// WithWarpSize overrides the warp width of the kernel descriptor.
func (b Builder) WithWarpSize(n int) Builder {
	b.warpSize = n
	return b
}

// WithLogger sets the logger the executive writes to.
func (b Builder) WithLogger(l *logrus.Logger) Builder {
	b.logger = l
	return b
}

// Build creates the executive. A missing kernel or translation cache is a
// configuration defect and panics.
func (b Builder) Build(name string) *DynamicExecutive {
	if b.descriptor == nil {
		logrus.Panicf("executive %s: no kernel descriptor", name)
	}

	if b.cache == nil {
		logrus.Panicf("executive %s: no translation cache", name)
	}

	if err := b.descriptor.Validate(); err != nil {
		logrus.Panicf("executive %s: %v", name, err)
	}

	if b.dynamicSharedMem < 0 {
		logrus.Panicf("executive %s: negative dynamic shared memory %d",
			name, b.dynamicSharedMem)
	}

	meta := kernels.NewMetadata(b.descriptor, b.dynamicSharedMem)
	if b.warpSize > 0 {
		meta.WarpSize = b.warpSize
	}

	return newDynamicExecutive(name, meta, b.processor, b.cache, b.mode,
		b.logger)
}

// NewDynamicExecutive creates a thread-level executive for one processor.
func NewDynamicExecutive(
	kernel *kernels.Descriptor,
	processor int,
	cache translation.Cache,
	dynamicSharedMem int,
) *DynamicExecutive {
	return MakeBuilder().
		WithDescriptor(kernel).
		WithProcessor(processor).
		WithTranslationCache(cache).
		WithDynamicSharedMemory(dynamicSharedMem).
		Build(kernel.Name)
}
