package profiler_test

import (
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"gitlab.com/akita/simtexec/profiler"
)

var _ = Describe("EntryCounter", func() {
	It("should count and merge visits", func() {
		a := profiler.NewEntryCounter()
		a.Count(3, 2)
		a.Count(0, 4)

		b := profiler.NewEntryCounter()
		b.Count(3, 1)

		a.Merge(b)

		Expect(a.Visits(3)).To(Equal(uint64(3)))
		Expect(a.Total()).To(Equal(uint64(7)))
		Expect(a.Entries()).To(Equal([]profiler.EntryStat{
			{Entry: 0, Visits: 4},
			{Entry: 3, Visits: 3},
		}))
	})
})

var _ = Describe("LivenessEntryCounter", func() {
	It("should average live values per dispatch", func() {
		c := profiler.NewLivenessEntryCounter()
		c.Count(1, 4)
		c.Count(1, 2)

		s := c.Stat(1)
		Expect(s.Dispatches).To(Equal(uint64(2)))
		Expect(s.Average()).To(Equal(3.0))
		Expect(c.Stat(9).Average()).To(Equal(0.0))
	})

	It("should merge records", func() {
		a := profiler.NewLivenessEntryCounter()
		b := profiler.NewLivenessEntryCounter()
		b.Count(2, 5)

		a.Merge(b)

		Expect(a.Entries()).To(HaveLen(1))
		Expect(a.Stat(2).LiveValues).To(Equal(uint64(5)))
	})
})

var _ = Describe("WallTime", func() {
	It("should refuse to reopen an interval", func() {
		w := profiler.NewWallTime()
		w.Start("launch")
		Expect(func() { w.Start("launch") }).To(Panic())
		Expect(w.Stop("launch")).To(BeNumerically(">=", 0))
		Expect(func() { w.Stop("launch") }).To(Panic())
	})
})

var _ = Describe("Report", func() {
	It("should write indented JSON", func() {
		path := filepath.Join(GinkgoT().TempDir(), "report.json")
		r := &profiler.Report{
			Kernel: "vectoradd",
			Mode:   "thread",
			Processors: []profiler.ProcessorReport{
				{Processor: 0, CTAs: 2, Compilations: 3, Successful: true},
			},
		}

		Expect(r.Write(path)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		var back profiler.Report
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(back.Kernel).To(Equal("vectoradd"))
		Expect(back.Processors[0].CTAs).To(Equal(2))
		Expect(back.Processors[0].Compilations).To(Equal(3))
	})
})
