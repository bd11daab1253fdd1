package emu

import (
	"log"

	"gitlab.com/akita/simtexec/kernels"
)

// slotArray is the fixed-capacity per-warp storage of context pointers and
// the exit codes they reported in their last dispatch.
type slotArray struct {
	contexts  []*kernels.ThreadContext
	exitCodes []kernels.ExitCode
	active    int
}

func newSlotArray(capacity int) slotArray {
	return slotArray{
		contexts:  make([]*kernels.ThreadContext, capacity),
		exitCodes: make([]kernels.ExitCode, capacity),
	}
}

func (s *slotArray) capacity() int {
	return len(s.contexts)
}

func (s *slotArray) push(ctx *kernels.ThreadContext) {
	if s.active >= len(s.contexts) {
		log.Panicf("warp slot overflow: capacity %d", len(s.contexts))
	}

	s.contexts[s.active] = ctx
	s.exitCodes[s.active] = kernels.ExitFallthrough
	s.active++
}

func (s *slotArray) at(i int) *kernels.ThreadContext {
	if i < 0 || i >= s.active {
		log.Panicf("warp slot %d out of range [0, %d)", i, s.active)
	}
	return s.contexts[i]
}

func (s *slotArray) record(i int) kernels.ExitCode {
	s.exitCodes[i] = s.at(i).ExitCode
	return s.exitCodes[i]
}

// prepend places threads ahead of the current contents.
func (s *slotArray) prepend(threads []*kernels.ThreadContext) {
	n := len(threads)
	if s.active+n > len(s.contexts) {
		log.Panicf("warp slot overflow: capacity %d", len(s.contexts))
	}

	copy(s.contexts[n:], s.contexts[:s.active])
	copy(s.exitCodes[n:], s.exitCodes[:s.active])
	copy(s.contexts, threads)
	for i := 0; i < n; i++ {
		s.exitCodes[i] = kernels.ExitFallthrough
	}
	s.active += n
}

func (s *slotArray) truncate(n int) {
	for i := n; i < s.active; i++ {
		s.contexts[i] = nil
	}
	s.active = n
}

func (s *slotArray) threads() []*kernels.ThreadContext {
	return s.contexts[:s.active]
}

// vectorWarp is one entry of a CTA's warp vector. seq orders warps by when
// their threads were enqueued; lower is earlier.
type vectorWarp struct {
	base    int
	seq     uint64
	entry   kernels.EntryID
	waiting bool
	slots   slotArray
}

func newVectorWarp(
	base int,
	seq uint64,
	entry kernels.EntryID,
	waiting bool,
	capacity int,
) *vectorWarp {
	return &vectorWarp{
		base:    base,
		seq:     seq,
		entry:   entry,
		waiting: waiting,
		slots:   newSlotArray(capacity),
	}
}

func (w *vectorWarp) ready() bool {
	return !w.waiting && w.slots.active > 0
}

type warpVector struct {
	warps     []*vectorWarp
	active    int
	next      int
	atBarrier int
	lastSeq   uint64
}

func (v *warpVector) stamp() uint64 {
	v.lastSeq++
	return v.lastSeq
}

type warpLevelScheduler struct {
	warpSize int
}

func (s *warpLevelScheduler) vector(cta *CTA) *warpVector {
	return cta.queues.(*warpVector)
}

func (s *warpLevelScheduler) Init(cta *CTA) {
	v := &warpVector{}

	for i, ctx := range cta.Contexts {
		if i%s.warpSize == 0 {
			v.warps = append(v.warps, newVectorWarp(
				i, v.stamp(), ctx.ResumePoint, false, s.warpSize))
		}
		v.warps[len(v.warps)-1].slots.push(ctx)
	}

	cta.queues = v
}

func (s *warpLevelScheduler) NextEntry(cta *CTA) (
	kernels.EntryID, int, bool,
) {
	v := s.vector(cta)
	n := len(v.warps)

	for k := 0; k < n; k++ {
		i := (v.active + k) % n
		w := v.warps[i]
		if w.ready() {
			v.next = i
			return w.entry, w.slots.active, true
		}
	}

	return 0, 0, false
}

func (s *warpLevelScheduler) FormWarp(
	cta *CTA,
	entry kernels.EntryID,
	width int,
) *Warp {
	v := s.vector(cta)

	if v.next >= len(v.warps) ||
		!v.warps[v.next].ready() || v.warps[v.next].entry != entry {
		if e, _, ok := s.NextEntry(cta); !ok || e != entry {
			log.Panicf("CTA %s has no ready warp at entry %d",
				cta.BlockID, entry)
		}
	}

	i := v.next
	w := v.warps[i]

	if width < w.slots.active {
		tail := newVectorWarp(w.slots.at(width).LinearID, w.seq, w.entry,
			false, s.warpSize)
		for j := width; j < w.slots.active; j++ {
			tail.slots.push(w.slots.at(j))
		}
		w.slots.truncate(width)
		v.insert(i+1, tail)
	}

	v.active = i + 1

	return &Warp{
		Entry:    w.entry,
		Threads:  w.slots.threads(),
		capacity: w.slots.capacity(),
		vector:   w,
	}
}

func (s *warpLevelScheduler) Reconcile(cta *CTA, warp *Warp) error {
	v := s.vector(cta)
	w := warp.vector

	idx := v.indexOf(w)
	if idx < 0 {
		log.Panicf("CTA %s: executed warp not in warp vector", cta.BlockID)
	}

	seq := v.stamp()

	var groups []*vectorWarp
	for i := 0; i < w.slots.active; i++ {
		w.slots.record(i)
		ctx := w.slots.at(i)

		d, err := classify(cta, w.entry, ctx)
		if err != nil {
			return err
		}

		if d == toExited {
			continue
		}

		waiting := d == toWaiting
		if waiting {
			v.atBarrier++
		}

		g := findGroup(groups, ctx.ResumePoint, waiting)
		if g == nil {
			g = newVectorWarp(ctx.LinearID, seq, ctx.ResumePoint, waiting,
				s.warpSize)
			groups = append(groups, g)
		}
		g.slots.push(ctx)
	}

	v.replace(idx, groups)
	v.active = idx + len(groups)
	v.merge()

	return nil
}

func findGroup(
	groups []*vectorWarp,
	entry kernels.EntryID,
	waiting bool,
) *vectorWarp {
	for _, g := range groups {
		if g.entry == entry && g.waiting == waiting {
			return g
		}
	}
	return nil
}

func (s *warpLevelScheduler) TestBarrier(cta *CTA) bool {
	v := s.vector(cta)
	if v.atBarrier == 0 {
		return false
	}

	if v.atBarrier+cta.exited != len(cta.Contexts) {
		return false
	}

	for _, w := range v.warps {
		w.waiting = false
	}
	v.atBarrier = 0
	v.merge()

	return true
}

func (s *warpLevelScheduler) NumReady(cta *CTA) int {
	n := 0
	for _, w := range s.vector(cta).warps {
		if !w.waiting {
			n += w.slots.active
		}
	}
	return n
}

func (s *warpLevelScheduler) NumWaiting(cta *CTA) int {
	return s.vector(cta).atBarrier
}

func (v *warpVector) indexOf(w *vectorWarp) int {
	for i, x := range v.warps {
		if x == w {
			return i
		}
	}
	return -1
}

func (v *warpVector) insert(i int, w *vectorWarp) {
	v.warps = append(v.warps, nil)
	copy(v.warps[i+1:], v.warps[i:])
	v.warps[i] = w
}

func (v *warpVector) replace(i int, ws []*vectorWarp) {
	rest := append([]*vectorWarp{}, v.warps[i+1:]...)
	v.warps = append(append(v.warps[:i], ws...), rest...)
}

// merge folds warps that wait for the same thing at the same entry into the
// earliest of them, as long as the result fits in one warp. Threads enqueued
// earlier stay ahead of threads enqueued later.
func (v *warpVector) merge() {
	for i := 0; i < len(v.warps); i++ {
		dst := v.warps[i]

		for j := i + 1; j < len(v.warps); {
			src := v.warps[j]
			if src.entry != dst.entry || src.waiting != dst.waiting ||
				dst.slots.active+src.slots.active > dst.slots.capacity() {
				j++
				continue
			}

			if src.seq < dst.seq {
				dst.slots.prepend(src.slots.threads())
				dst.base = src.base
				dst.seq = src.seq
			} else {
				for k := 0; k < src.slots.active; k++ {
					dst.slots.push(src.slots.at(k))
				}
			}

			v.warps = append(v.warps[:j], v.warps[j+1:]...)
			if j < v.active {
				v.active--
			}
		}
	}

	if v.active >= len(v.warps) {
		v.active = 0
	}
}
