// Package emu implements the dynamic executive, the scheduler that runs the
// CTAs assigned to one simulated processor through translated hyperblocks.
package emu

import (
	"fmt"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"
	"github.com/sirupsen/logrus"

	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/profiler"
	"gitlab.com/akita/simtexec/translation"
)

// Hook positions invoked by the executive. The item of the hook context is
// the Warp, or the CTA for HookPosBarrierRelease. The lifetime of a CTA is
// reported as a tracing task of kind "cta" identified by the CTA's UID.
var (
	HookPosWarpDispatch   = &sim.HookPos{Name: "WarpDispatch"}
	HookPosWarpReconciled = &sim.HookPos{Name: "WarpReconciled"}
	HookPosBarrierRelease = &sim.HookPos{Name: "BarrierRelease"}
)

// CTATaskKind is the kind of the tracing tasks that cover CTA lifetimes.
const CTATaskKind = "cta"

// CTATaskDetail is the detail of a CTA tracing task.
type CTATaskDetail struct {
	Processor int
	CTA       *CTA
}

// WarpDispatch is the detail of HookPosWarpDispatch.
type WarpDispatch struct {
	CTA  *CTA
	Warp *Warp
}

// Counters are the statistics an executive collected.
type Counters struct {
	Entries         *profiler.EntryCounter
	Liveness        *profiler.LivenessEntryCounter
	Warps           uint64
	BarrierReleases uint64
	RetiredCTAs     int
}

// A DynamicExecutive runs the CTAs of one simulated processor to completion.
// It is driven by a single goroutine and must not be shared.
type DynamicExecutive struct {
	*sim.HookableBase

	name      string
	processor int
	meta      kernels.Metadata
	mode      SchedulingMode
	scheduler CTAScheduler

	cache        translation.Cache
	translations map[kernels.EntryID]translation.Translation

	ctas    *btree.BTree
	retired map[int]bool

	entries         *profiler.EntryCounter
	liveness        *profiler.LivenessEntryCounter
	numWarps        uint64
	numBarrierReles uint64

	running bool
	log     *logrus.Entry
}

func newDynamicExecutive(
	name string,
	meta kernels.Metadata,
	processor int,
	cache translation.Cache,
	mode SchedulingMode,
	logger *logrus.Logger,
) *DynamicExecutive {
	e := &DynamicExecutive{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		processor:    processor,
		meta:         meta,
		mode:         mode,
		scheduler:    NewCTAScheduler(mode, meta.WarpSize),
		cache:        cache,
		translations: make(map[kernels.EntryID]translation.Translation),
		ctas:         btree.New(2),
		retired:      make(map[int]bool),
		entries:      profiler.NewEntryCounter(),
		liveness:     profiler.NewLivenessEntryCounter(),
	}

	e.log = logger.WithFields(logrus.Fields{
		"processor": processor,
		"kernel":    meta.Kernel.Name,
	})

	return e
}

// Name returns the name of the executive.
func (e *DynamicExecutive) Name() string {
	return e.name
}

// Processor returns the id of the simulated processor.
func (e *DynamicExecutive) Processor() int {
	return e.processor
}

// Metadata returns the launch metadata.
func (e *DynamicExecutive) Metadata() kernels.Metadata {
	return e.meta
}

// Mode returns the scheduling mode of the executive.
func (e *DynamicExecutive) Mode() SchedulingMode {
	return e.mode
}

// AddCta creates the CTA for blockID with all of its threads ready at entry
// 0.
func (e *DynamicExecutive) AddCta(blockID kernels.Dim3) error {
	gridDim := e.meta.Kernel.GridDim
	if !gridDim.Contains(blockID) {
		return errors.Wrapf(ErrBlockOutOfGrid,
			"processor %d: block %s, grid %s", e.processor, blockID, gridDim)
	}

	key := gridDim.Flatten(blockID)
	if e.retired[key] {
		return errors.Wrapf(ErrRetiredCTA,
			"processor %d: block %s", e.processor, blockID)
	}

	if e.ctas.Has(&CTA{Key: key}) {
		return errors.Wrapf(ErrDuplicateCTA,
			"processor %d: block %s", e.processor, blockID)
	}

	cta, err := e.newCTA(blockID, key)
	if err != nil {
		return err
	}

	e.scheduler.Init(cta)
	cta.State = CTAActive
	e.ctas.ReplaceOrInsert(cta)

	e.log.WithField("block", blockID.String()).
		Debugf("CTA added with %d threads", cta.NumThreads())
	tracing.StartTask(cta.UID, "", e, CTATaskKind, blockID.String(),
		CTATaskDetail{Processor: e.processor, CTA: cta})

	return nil
}

func (e *DynamicExecutive) newCTA(blockID kernels.Dim3, key int) (*CTA, error) {
	blockDim := e.meta.Kernel.BlockDim
	n := blockDim.Size()

	memory, err := kernels.NewCTAMemory(e.meta, n)
	if err != nil {
		return nil, errors.Wrapf(err, "processor %d: block %s",
			e.processor, blockID)
	}

	cta := &CTA{
		UID:      xid.New().String(),
		BlockID:  blockID,
		Key:      key,
		BlockDim: blockDim,
		State:    CTAUninitialized,
		Memory:   memory,
		Contexts: make([]*kernels.ThreadContext, n),
	}

	for i := 0; i < n; i++ {
		cta.Contexts[i] = kernels.NewThreadContext(
			blockID, blockDim, e.meta.Kernel.GridDim, i, memory)
	}

	return cta, nil
}

// Execute runs every active CTA until all of its threads exited. It returns
// the first fatal error; CTAs retired before the error stay retired.
func (e *DynamicExecutive) Execute() error {
	if e.running {
		e.log.Panic("Execute re-entered while running")
	}

	if e.ctas.Len() == 0 {
		return errors.Wrapf(ErrNoActiveCTA, "processor %d", e.processor)
	}

	e.running = true
	defer func() { e.running = false }()

	for e.ctas.Len() > 0 {
		cta := e.ctas.Min().(*CTA)

		if err := e.runCTA(cta); err != nil {
			e.log.WithField("block", cta.BlockID.String()).Error(err)
			return err
		}

		e.retire(cta)
	}

	return nil
}

func (e *DynamicExecutive) runCTA(cta *CTA) error {
	for !cta.Done() {
		entry, available, ok := e.scheduler.NextEntry(cta)
		if !ok {
			if e.testBarrier(cta) {
				continue
			}

			cta.State = CTADraining
			return e.deadlock(cta)
		}

		warp, err := e.formWarp(cta, entry, available)
		if err != nil {
			return err
		}

		if err := e.executeWarp(cta, warp); err != nil {
			return err
		}

		e.testBarrier(cta)
	}

	return nil
}

func (e *DynamicExecutive) formWarp(
	cta *CTA,
	entry kernels.EntryID,
	available int,
) (*Warp, error) {
	t, err := e.lookup(entry, e.meta.WarpSize)
	if err != nil {
		return nil, err
	}

	width := available
	if t.Width() < width {
		width = t.Width()
	}

	if width <= 0 {
		return nil, errors.WithStack(&translation.CompilationError{
			Entry: entry,
			Width: t.Width(),
			Err:   errors.New("translation supports no threads"),
		})
	}

	warp := e.scheduler.FormWarp(cta, entry, width)
	warp.translation = t

	return warp, nil
}

func (e *DynamicExecutive) lookup(
	entry kernels.EntryID,
	width int,
) (translation.Translation, error) {
	if t, found := e.translations[entry]; found {
		return t, nil
	}

	t, err := e.cache.LookupOrCompile(entry, width)
	if err != nil {
		return nil, errors.Wrapf(err, "processor %d: translating entry %d",
			e.processor, entry)
	}

	e.translations[entry] = t
	return t, nil
}

func (e *DynamicExecutive) executeWarp(cta *CTA, warp *Warp) error {
	t := warp.translation

	e.invokeHook(HookPosWarpDispatch, warp, WarpDispatch{CTA: cta, Warp: warp})
	tracing.AddTaskStep(cta.UID, e, fmt.Sprintf("entry %d", warp.Entry))

	t.Execute(warp.Threads)

	e.numWarps++
	e.entries.Count(warp.Entry, warp.Size())
	if r, ok := t.(translation.LivenessReporter); ok {
		e.liveness.Count(warp.Entry, r.LiveValues())
	}

	if err := e.scheduler.Reconcile(cta, warp); err != nil {
		return errors.Wrapf(err, "processor %d", e.processor)
	}

	e.invokeHook(HookPosWarpReconciled, warp, WarpDispatch{CTA: cta, Warp: warp})

	return nil
}

func (e *DynamicExecutive) testBarrier(cta *CTA) bool {
	waiting := e.scheduler.NumWaiting(cta)
	if !e.scheduler.TestBarrier(cta) {
		return false
	}

	e.numBarrierReles++
	e.log.WithField("block", cta.BlockID.String()).
		Debugf("barrier released %d threads", waiting)
	e.invokeHook(HookPosBarrierRelease, cta, waiting)

	return true
}

func (e *DynamicExecutive) deadlock(cta *CTA) error {
	waiting := e.scheduler.NumWaiting(cta)
	ready := e.scheduler.NumReady(cta)
	total := cta.NumThreads()

	return errors.WithStack(&DeadlockError{
		Processor:   e.processor,
		BlockID:     cta.BlockID,
		Waiting:     waiting,
		Exited:      cta.exited,
		Total:       total,
		Unaccounted: total - cta.exited - waiting - ready,
	})
}

func (e *DynamicExecutive) retire(cta *CTA) {
	if cta.State == CTARetired {
		e.log.Panicf("CTA %s retired twice", cta.BlockID)
	}

	cta.State = CTARetired
	cta.Memory.Release()
	e.ctas.Delete(cta)
	e.retired[cta.Key] = true

	e.log.WithField("block", cta.BlockID.String()).Debug("CTA retired")
	tracing.EndTask(cta.UID, e)
}

func (e *DynamicExecutive) invokeHook(
	pos *sim.HookPos,
	item interface{},
	detail interface{},
) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(sim.HookCtx{
		Domain: e,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}

// ActiveCTAs lists the block ids of CTAs that have not retired, ordered by
// flattened block id.
func (e *DynamicExecutive) ActiveCTAs() []kernels.Dim3 {
	ids := make([]kernels.Dim3, 0, e.ctas.Len())
	e.ctas.Ascend(func(i btree.Item) bool {
		ids = append(ids, i.(*CTA).BlockID)
		return true
	})
	return ids
}

// NumRetiredCTAs returns how many CTAs completed on this executive.
func (e *DynamicExecutive) NumRetiredCTAs() int {
	return len(e.retired)
}

// Status reports the scheduling sets of an active CTA.
func (e *DynamicExecutive) Status(blockID kernels.Dim3) (CTAStatus, bool) {
	key := e.meta.Kernel.GridDim.Flatten(blockID)
	item := e.ctas.Get(&CTA{Key: key})
	if item == nil {
		return CTAStatus{}, false
	}

	return e.status(item.(*CTA)), true
}

func (e *DynamicExecutive) status(cta *CTA) CTAStatus {
	return CTAStatus{
		BlockID: cta.BlockID,
		State:   cta.State,
		Ready:   e.scheduler.NumReady(cta),
		Waiting: e.scheduler.NumWaiting(cta),
		Exited:  cta.exited,
		Total:   cta.NumThreads(),
	}
}

// Counters returns the statistics collected so far.
func (e *DynamicExecutive) Counters() Counters {
	return Counters{
		Entries:         e.entries,
		Liveness:        e.liveness,
		Warps:           e.numWarps,
		BarrierReleases: e.numBarrierReles,
		RetiredCTAs:     len(e.retired),
	}
}
