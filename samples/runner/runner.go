// Package runner launches benchmarks on a set of simulated processors and
// reports what the executives observed.
package runner

import (
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/tracing"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"gitlab.com/akita/simtexec/benchmarks"
	"gitlab.com/akita/simtexec/emu"
	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/profiler"
	"gitlab.com/akita/simtexec/translation"
)

var processorsFlag = flag.Int("processors", 4,
	"The number of simulated processors the grid is partitioned over.")
var modeFlag = flag.String("mode", "thread",
	"Scheduling mode of the executives, thread or warp.")
var warpSizeFlag = flag.Int("warp-size", 0,
	"Overrides the warp width of the kernels if positive.")
var reportFlag = flag.String("report", "",
	"Writes a JSON report of every launch to this file.")
var monitorFlag = flag.String("monitor", "",
	"Serves the progress of the launches on this address, e.g. :8080.")
var traceCTAsFlag = flag.Bool("trace-ctas", false,
	"Prints the lifetime of every CTA after each launch.")
var verifyFlag = flag.Bool("verify", false, "Verify the benchmark results.")
var verboseFlag = flag.Bool("verbose", false,
	"Logs every scheduling decision of the executives.")

// Runner is a class that helps running the benchmarks in the official samples.
type Runner struct {
	NumProcessors int
	Mode          emu.SchedulingMode
	WarpSize      int
	ReportPath    string
	MonitorAddr   string
	TraceCTAs     bool
	Verify        bool
	Logger        *logrus.Logger

	benchmarks []benchmarks.Benchmark
	reports    []*profiler.Report
	tracer     *CTATracer
	monitor    *Monitor
}

// ParseFlag applies the runner flag to runner object
func (r *Runner) ParseFlag() *Runner {
	mode, err := emu.ParseSchedulingMode(*modeFlag)
	if err != nil {
		r.fail(err)
	}

	r.NumProcessors = *processorsFlag
	r.Mode = mode
	r.WarpSize = *warpSizeFlag
	r.ReportPath = *reportFlag
	r.MonitorAddr = *monitorFlag
	r.TraceCTAs = *traceCTAsFlag
	r.Verify = *verifyFlag

	r.Logger = logrus.New()
	r.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verboseFlag {
		r.Logger.SetLevel(logrus.DebugLevel)
	}

	return r
}

// Init creates the tracer and starts the monitor if one is requested.
func (r *Runner) Init() *Runner {
	if r.NumProcessors <= 0 {
		r.NumProcessors = 1
	}

	if r.Logger == nil {
		r.Logger = logrus.StandardLogger()
	}

	r.tracer = NewCTATracer()
	r.monitor = NewMonitor()

	if r.MonitorAddr != "" {
		addr, err := r.monitor.StartServer(r.MonitorAddr)
		if err != nil {
			r.fail(err)
		}
		color.Cyan("Monitoring launches at http://%s/api/processors\n", addr)
	}

	return r
}

// AddBenchmark adds a benchmark that the runner should run.
func (r *Runner) AddBenchmark(b benchmarks.Benchmark) {
	r.benchmarks = append(r.benchmarks, b)
}

// Run runs all the benchmarks and terminates the program.
func (r *Runner) Run() {
	if err := r.RunBenchmarks(); err != nil {
		r.fail(err)
	}

	atexit.Exit(0)
}

// RunBenchmarks launches every benchmark in order, verifies the results if
// requested and writes the report.
func (r *Runner) RunBenchmarks() error {
	for _, b := range r.benchmarks {
		report, err := r.Launch(b)
		if err != nil {
			return errors.Wrapf(err, "benchmark %s", b.Name())
		}
		r.reports = append(r.reports, report)

		if r.TraceCTAs {
			r.tracer.Print(os.Stdout)
			r.tracer.Reset()
		}

		if r.Verify {
			if err := b.Verify(); err != nil {
				return err
			}
			color.Green("%s: Passed!\n", b.Name())
		}
	}

	if r.ReportPath != "" {
		return r.writeReports()
	}

	return nil
}

// Reports returns the reports of the launches so far.
func (r *Runner) Reports() []*profiler.Report {
	return r.reports
}

// Launch runs one benchmark on all processors. Each processor executes its
// share of the grid in its own goroutine with its own translation cache.
func (r *Runner) Launch(b benchmarks.Benchmark) (*profiler.Report, error) {
	d := b.Kernel()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	grid := kernels.NewGrid(d)
	program := b.Program()
	parts := grid.Partition(r.NumProcessors)

	report := &profiler.Report{
		Kernel:     d.Name,
		Launch:     grid.UID,
		Mode:       r.Mode.String(),
		Processors: make([]profiler.ProcessorReport, len(parts)),
	}
	counters := make([]*profiler.EntryCounter, len(parts))
	errs := make([]error, len(parts))

	r.Logger.WithFields(logrus.Fields{
		"kernel": d.Name,
		"launch": grid.UID,
		"blocks": grid.NumBlocks(),
	}).Info("launching")

	wall := profiler.NewWallTime()
	wall.Start("launch")

	var wg sync.WaitGroup
	for p, blocks := range parts {
		wg.Add(1)
		go func(p int, blocks []kernels.Dim3) {
			defer wg.Done()
			report.Processors[p], counters[p], errs[p] =
				r.runProcessor(d, program, p, blocks)
		}(p, blocks)
	}
	wg.Wait()

	report.Walltime = wall.Stop("launch")

	entries := profiler.NewEntryCounter()
	for _, c := range counters {
		entries.Merge(c)
	}
	report.Entries = entries.Entries()

	for _, err := range errs {
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (r *Runner) runProcessor(
	d *kernels.Descriptor,
	program *translation.Program,
	p int,
	blocks []kernels.Dim3,
) (profiler.ProcessorReport, *profiler.EntryCounter, error) {
	rep := profiler.ProcessorReport{Processor: p}
	cache := translation.NewFuncCache(program)

	e := emu.MakeBuilder().
		WithDescriptor(d).
		WithProcessor(p).
		WithTranslationCache(cache).
		WithSchedulingMode(r.Mode).
		WithWarpSize(r.WarpSize).
		WithLogger(r.Logger).
		Build(fmt.Sprintf("Processor[%d]", p))

	if r.tracer != nil {
		tracing.CollectTrace(e, r.tracer)
	}

	if r.monitor != nil {
		e.AcceptHook(r.monitor)
	}

	if len(blocks) == 0 {
		rep.Successful = true
		return rep, e.Counters().Entries, nil
	}

	wall := profiler.NewWallTime()
	wall.Start("execute")

	var err error
	for _, id := range blocks {
		if err = e.AddCta(id); err != nil {
			break
		}
	}

	if err == nil {
		err = e.Execute()
	}

	rep.Walltime = wall.Stop("execute")

	c := e.Counters()
	rep.CTAs = c.RetiredCTAs
	rep.Warps = c.Warps
	rep.Barriers = c.BarrierReleases
	rep.Compilations = cache.Compilations()
	rep.Entries = c.Entries.Entries()
	rep.Liveness = c.Liveness.Entries()
	rep.Successful = err == nil

	return rep, c.Entries, err
}

func (r *Runner) writeReports() error {
	for i, report := range r.reports {
		path := r.ReportPath
		if len(r.reports) > 1 {
			path = fmt.Sprintf("%s.%d", r.ReportPath, i)
		}

		if err := report.Write(path); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) fail(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	atexit.Exit(1)
}
