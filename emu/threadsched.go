package emu

import "gitlab.com/akita/simtexec/kernels"

type threadQueues struct {
	ready   []*kernels.ThreadContext
	waiting []*kernels.ThreadContext
}

type threadLevelScheduler struct{}

func (s *threadLevelScheduler) queues(cta *CTA) *threadQueues {
	return cta.queues.(*threadQueues)
}

func (s *threadLevelScheduler) Init(cta *CTA) {
	q := &threadQueues{
		ready: make([]*kernels.ThreadContext, 0, len(cta.Contexts)),
	}
	q.ready = append(q.ready, cta.Contexts...)
	cta.queues = q
}

func (s *threadLevelScheduler) NextEntry(cta *CTA) (
	kernels.EntryID, int, bool,
) {
	q := s.queues(cta)
	if len(q.ready) == 0 {
		return 0, 0, false
	}

	entry := q.ready[0].ResumePoint
	count := 0
	for _, ctx := range q.ready {
		if ctx.ResumePoint == entry {
			count++
		}
	}

	return entry, count, true
}

func (s *threadLevelScheduler) FormWarp(
	cta *CTA,
	entry kernels.EntryID,
	width int,
) *Warp {
	q := s.queues(cta)
	warp := NewWarp(entry, width)

	remaining := q.ready[:0]
	for _, ctx := range q.ready {
		if !warp.Full() && ctx.ResumePoint == entry {
			warp.Add(ctx)
			continue
		}
		remaining = append(remaining, ctx)
	}

	for i := len(remaining); i < len(q.ready); i++ {
		q.ready[i] = nil
	}
	q.ready = remaining

	return warp
}

func (s *threadLevelScheduler) Reconcile(cta *CTA, warp *Warp) error {
	q := s.queues(cta)

	for _, ctx := range warp.Threads {
		d, err := classify(cta, warp.Entry, ctx)
		if err != nil {
			return err
		}

		switch d {
		case toReady:
			q.ready = append(q.ready, ctx)
		case toWaiting:
			q.waiting = append(q.waiting, ctx)
		}
	}

	return nil
}

func (s *threadLevelScheduler) TestBarrier(cta *CTA) bool {
	q := s.queues(cta)
	if len(q.waiting) == 0 {
		return false
	}

	if len(q.waiting)+cta.exited != len(cta.Contexts) {
		return false
	}

	q.ready = append(q.ready, q.waiting...)
	q.waiting = nil

	return true
}

func (s *threadLevelScheduler) NumReady(cta *CTA) int {
	return len(s.queues(cta).ready)
}

func (s *threadLevelScheduler) NumWaiting(cta *CTA) int {
	return len(s.queues(cta).waiting)
}
