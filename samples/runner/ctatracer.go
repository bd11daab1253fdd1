package runner

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/tracing"

	"gitlab.com/akita/simtexec/emu"
	"gitlab.com/akita/simtexec/kernels"
)

// CTARecord is the lifetime of one CTA.
type CTARecord struct {
	UID       string
	Processor int
	Block     kernels.Dim3
	Threads   int
	Warps     uint64
	Start     time.Time
	End       time.Time
}

// Duration returns how long the CTA was resident.
func (r CTARecord) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// CTATracer is a tracing.Tracer that records when CTAs start and retire and
// how many warps they dispatched. It can collect the traces of the
// executives of several processors.
type CTATracer struct {
	sync.Mutex

	inflight map[string]*CTARecord
	records  []CTARecord
}

// NewCTATracer creates an empty tracer.
func NewCTATracer() *CTATracer {
	return &CTATracer{
		inflight: make(map[string]*CTARecord),
	}
}

// StartTask opens the record of a CTA.
func (t *CTATracer) StartTask(task tracing.Task) {
	if task.Kind != emu.CTATaskKind {
		return
	}

	detail := task.Detail.(emu.CTATaskDetail)

	t.Lock()
	defer t.Unlock()

	t.inflight[task.ID] = &CTARecord{
		UID:       task.ID,
		Processor: detail.Processor,
		Block:     detail.CTA.BlockID,
		Threads:   detail.CTA.NumThreads(),
		Start:     time.Now(),
	}
}

// StepTask counts one warp dispatch.
func (t *CTATracer) StepTask(task tracing.Task) {
	t.Lock()
	defer t.Unlock()

	record, found := t.inflight[task.ID]
	if !found {
		return
	}
	record.Warps++
}

// EndTask closes the record of a retired CTA.
func (t *CTATracer) EndTask(task tracing.Task) {
	t.Lock()
	defer t.Unlock()

	record, found := t.inflight[task.ID]
	if !found {
		return
	}
	delete(t.inflight, task.ID)

	record.End = time.Now()
	t.records = append(t.records, *record)
}

// Records returns the retired CTAs ordered by processor and block.
func (t *CTATracer) Records() []CTARecord {
	t.Lock()
	defer t.Unlock()

	records := append([]CTARecord{}, t.records...)
	sort.Slice(records, func(i, j int) bool {
		if records[i].Processor != records[j].Processor {
			return records[i].Processor < records[j].Processor
		}
		return records[i].Start.Before(records[j].Start)
	})

	return records
}

// NumInflight returns how many CTAs started but did not retire.
func (t *CTATracer) NumInflight() int {
	t.Lock()
	defer t.Unlock()
	return len(t.inflight)
}

// Reset forgets all records.
func (t *CTATracer) Reset() {
	t.Lock()
	defer t.Unlock()

	t.inflight = make(map[string]*CTARecord)
	t.records = nil
}

// Print writes one line per retired CTA.
func (t *CTATracer) Print(w io.Writer) {
	fmt.Fprintf(w, "%-10s %-16s %8s %8s %12s\n",
		"processor", "block", "threads", "warps", "time")
	for _, r := range t.Records() {
		fmt.Fprintf(w, "%-10d %-16s %8d %8d %12s\n",
			r.Processor, r.Block, r.Threads, r.Warps, r.Duration())
	}
}
