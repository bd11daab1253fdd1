package kernels

import (
	"encoding/binary"
	"log"
	"math"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/mem/mem"
	"github.com/sarchlab/akita/v4/mem/vm"
)

// A Region is a byte-addressable memory segment. Several regions may share
// one backing storage, each covering its own [base, base+size) window.
type Region struct {
	Name string

	pid     vm.PID
	storage *mem.Storage
	base    uint64
	size    uint64

	// mu is only set on regions shared between processors.
	mu *sync.Mutex
}

// NewRegion allocates a region of size bytes.
func NewRegion(name string, pid vm.PID, size int) *Region {
	r := &Region{
		Name: name,
		pid:  pid,
		size: uint64(size),
	}

	if size > 0 {
		r.storage = mem.NewStorage(uint64(size))
	}

	return r
}

// NewGlobalRegion allocates a region that the executives of several
// processors may access concurrently.
func NewGlobalRegion(name string, pid vm.PID, size int) *Region {
	r := NewRegion(name, pid, size)
	r.mu = &sync.Mutex{}
	return r
}

// Window returns a sub-region that shares storage with r.
func (r *Region) Window(name string, offset, size int) *Region {
	if offset < 0 || size < 0 || uint64(offset+size) > r.size {
		log.Panicf("window [%d, %d) outside region %s of %d bytes",
			offset, offset+size, r.Name, r.size)
	}

	return &Region{
		Name:    name,
		pid:     r.pid,
		storage: r.storage,
		base:    r.base + uint64(offset),
		size:    uint64(size),
		mu:      r.mu,
	}
}

// Size returns the number of addressable bytes.
func (r *Region) Size() int {
	return int(r.size)
}

func (r *Region) check(offset uint64, n uint64) error {
	if offset+n > r.size || offset+n < offset {
		return errors.Errorf("pid %d: access [%d, %d) outside region %s of %d bytes",
			r.pid, offset, offset+n, r.Name, r.size)
	}
	return nil
}

// Read returns n bytes starting at offset.
func (r *Region) Read(offset, n uint64) ([]byte, error) {
	if err := r.check(offset, n); err != nil {
		return nil, err
	}

	if n == 0 {
		return []byte{}, nil
	}

	if r.mu != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	return r.storage.Read(r.base+offset, n)
}

// Write stores data starting at offset.
func (r *Region) Write(offset uint64, data []byte) error {
	if err := r.check(offset, uint64(len(data))); err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if r.mu != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	return r.storage.Write(r.base+offset, data)
}

// Uint32 reads a little-endian word. Out-of-range access is a translation
// defect and panics.
func (r *Region) Uint32(offset uint64) uint32 {
	buf, err := r.Read(offset, 4)
	if err != nil {
		log.Panic(err)
	}
	return binary.LittleEndian.Uint32(buf)
}

// SetUint32 writes a little-endian word.
func (r *Region) SetUint32(offset uint64, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	if err := r.Write(offset, buf); err != nil {
		log.Panic(err)
	}
}

// Float32 reads a little-endian float.
func (r *Region) Float32(offset uint64) float32 {
	return math.Float32frombits(r.Uint32(offset))
}

// SetFloat32 writes a little-endian float.
func (r *Region) SetFloat32(offset uint64, v float32) {
	r.SetUint32(offset, math.Float32bits(v))
}

// CTAMemory holds the memory regions owned by one CTA.
type CTAMemory struct {
	Local     *Region
	Shared    *Region
	Constant  *Region
	Parameter *Region
	Argument  *Region

	localSize int
}

// NewCTAMemory allocates the regions of a CTA with the given number of
// threads and fills the constant and parameter regions from the kernel.
func NewCTAMemory(meta Metadata, threads int) (*CTAMemory, error) {
	pid := meta.Kernel.PID
	m := &CTAMemory{
		Local:     NewRegion("local", pid, meta.LocalSize*threads),
		Shared:    NewRegion("shared", pid, meta.SharedSize),
		Constant:  NewRegion("constant", pid, meta.ConstantSize),
		Parameter: NewRegion("parameter", pid, meta.ParameterSize),
		Argument:  NewRegion("argument", pid, meta.ArgumentSize),
		localSize: meta.LocalSize,
	}

	if err := m.Constant.Write(0, meta.Kernel.Constants); err != nil {
		return nil, errors.Wrap(err, "initializing constant memory")
	}

	for _, p := range meta.Kernel.Parameters {
		err := m.Parameter.Write(uint64(p.Offset), p.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "initializing parameter %s", p.Name)
		}
	}

	return m, nil
}

// LocalFor returns the local memory window of one thread.
func (m *CTAMemory) LocalFor(thread int) *Region {
	return m.Local.Window("local", thread*m.localSize, m.localSize)
}

// Release drops the backing storage. The regions must not be used again.
func (m *CTAMemory) Release() {
	for _, r := range []*Region{m.Local, m.Shared, m.Constant, m.Parameter, m.Argument} {
		r.storage = nil
		r.size = 0
	}
}
