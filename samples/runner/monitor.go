package runner

import (
	"encoding/json"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"

	"gitlab.com/akita/simtexec/emu"
	"gitlab.com/akita/simtexec/profiler"
)

// ProcessorStatus is what the monitor shows about one executive.
type ProcessorStatus struct {
	Processor       int      `json:"processor"`
	Kernel          string   `json:"kernel"`
	Mode            string   `json:"mode"`
	ActiveCTAs      []string `json:"active_ctas"`
	RetiredCTAs     int      `json:"retired_ctas"`
	Warps           uint64   `json:"warps"`
	BarrierReleases uint64   `json:"barrier_releases"`

	entries []profiler.EntryStat
}

// Monitor keeps a snapshot of every executive it is attached to and serves
// the snapshots over HTTP. The snapshots are taken on the executives'
// goroutines at CTA boundaries and barrier releases.
type Monitor struct {
	sync.Mutex

	processors map[int]*ProcessorStatus
}

// NewMonitor creates a monitor without any processor.
func NewMonitor() *Monitor {
	return &Monitor{
		processors: make(map[int]*ProcessorStatus),
	}
}

// Func implements sim.Hook.
func (m *Monitor) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case tracing.HookPosTaskStart, tracing.HookPosTaskEnd,
		emu.HookPosBarrierRelease:
	default:
		return
	}

	e, ok := ctx.Domain.(*emu.DynamicExecutive)
	if !ok {
		return
	}

	m.snapshot(e)
}

func (m *Monitor) snapshot(e *emu.DynamicExecutive) {
	c := e.Counters()
	s := &ProcessorStatus{
		Processor:       e.Processor(),
		Kernel:          e.Metadata().Kernel.Name,
		Mode:            e.Mode().String(),
		RetiredCTAs:     c.RetiredCTAs,
		Warps:           c.Warps,
		BarrierReleases: c.BarrierReleases,
		entries:         c.Entries.Entries(),
	}

	for _, id := range e.ActiveCTAs() {
		s.ActiveCTAs = append(s.ActiveCTAs, id.String())
	}

	m.Lock()
	m.processors[s.Processor] = s
	m.Unlock()
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/processors", m.listProcessors).Methods("GET")
	r.HandleFunc("/api/entries/{processor:[0-9]+}", m.listEntries).
		Methods("GET")
	return r
}

// StartServer serves the monitor on addr in the background and returns the
// address it listens on.
func (m *Monitor) StartServer(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "monitor cannot listen on %s", addr)
	}

	go func() {
		_ = http.Serve(listener, m.Router())
	}()

	return listener.Addr().String(), nil
}

func (m *Monitor) listProcessors(w http.ResponseWriter, _ *http.Request) {
	m.Lock()
	list := make([]ProcessorStatus, 0, len(m.processors))
	for _, s := range m.processors {
		list = append(list, *s)
	}
	m.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Processor < list[j].Processor
	})

	writeJSON(w, list)
}

func (m *Monitor) listEntries(w http.ResponseWriter, r *http.Request) {
	p, err := strconv.Atoi(mux.Vars(r)["processor"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.Lock()
	s, found := m.processors[p]
	m.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, s.entries)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	rsp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(rsp)
}
