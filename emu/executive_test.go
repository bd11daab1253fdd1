package emu

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/tracing"
	"github.com/sirupsen/logrus"

	"gitlab.com/akita/simtexec/kernels"
	"gitlab.com/akita/simtexec/translation"
)

type hookFunc func(ctx sim.HookCtx)

func (f hookFunc) Func(ctx sim.HookCtx) {
	f(ctx)
}

type ctaTaskRecorder struct {
	started []string
	ended   []string
	blocks  map[string]kernels.Dim3
	steps   map[string]int
}

func newCTATaskRecorder() *ctaTaskRecorder {
	return &ctaTaskRecorder{
		blocks: make(map[string]kernels.Dim3),
		steps:  make(map[string]int),
	}
}

func (r *ctaTaskRecorder) StartTask(task tracing.Task) {
	Expect(task.Kind).To(Equal(CTATaskKind))
	detail := task.Detail.(CTATaskDetail)
	Expect(detail.CTA.UID).To(Equal(task.ID))

	r.started = append(r.started, task.ID)
	r.blocks[task.ID] = detail.CTA.BlockID
}

func (r *ctaTaskRecorder) StepTask(task tracing.Task) {
	r.steps[task.ID]++
}

func (r *ctaTaskRecorder) EndTask(task tracing.Task) {
	r.ended = append(r.ended, task.ID)
}

func (r *ctaTaskRecorder) retired() []kernels.Dim3 {
	blocks := make([]kernels.Dim3, 0, len(r.ended))
	for _, id := range r.ended {
		blocks = append(blocks, r.blocks[id])
	}
	return blocks
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = GinkgoWriter
	return l
}

func testDescriptor(threads, gridX int) *kernels.Descriptor {
	return &kernels.Descriptor{
		Name:       "test",
		GridDim:    kernels.D3(gridX, 1, 1),
		BlockDim:   kernels.D3(threads, 1, 1),
		WarpSize:   4,
		SharedSize: 64,
		LocalSize:  8,
	}
}

func buildExecutive(
	desc *kernels.Descriptor,
	cache translation.Cache,
	mode SchedulingMode,
) *DynamicExecutive {
	return MakeBuilder().
		WithDescriptor(desc).
		WithTranslationCache(cache).
		WithSchedulingMode(mode).
		WithLogger(quietLogger()).
		Build("executive")
}

func warpIDs(warp []*kernels.ThreadContext) []int {
	ids := make([]int, len(warp))
	for i, ctx := range warp {
		ids[i] = ctx.LinearID
	}
	return ids
}

func dropThread(e *DynamicExecutive, blockID kernels.Dim3, keep int) {
	key := e.meta.Kernel.GridDim.Flatten(blockID)
	cta := e.ctas.Get(&CTA{Key: key}).(*CTA)

	switch q := cta.queues.(type) {
	case *threadQueues:
		q.ready = q.ready[:keep]
	case *warpVector:
		q.warps[0].slots.truncate(keep)
	}
}

var _ = Describe("DynamicExecutive", func() {
	for _, m := range []SchedulingMode{ThreadLevel, WarpLevel} {
		mode := m

		Context("with "+mode.String()+"-level scheduling", func() {
			var (
				desc    *kernels.Descriptor
				program *translation.Program
			)

			build := func() *DynamicExecutive {
				return buildExecutive(desc, translation.NewFuncCache(program), mode)
			}

			BeforeEach(func() {
				desc = testDescriptor(4, 1)
				program = translation.NewProgram("test")
			})

			It("should retire a CTA whose threads exit directly", func() {
				program.AddThreadFunc(0, "exit", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(e.ActiveCTAs()).To(BeEmpty())
				Expect(e.NumRetiredCTAs()).To(Equal(1))
				Expect(e.Counters().Warps).To(Equal(uint64(1)))
			})

			It("should hold barrier threads until all arrived", func() {
				program.AddThreadFunc(0, "sync", func(ctx *kernels.ThreadContext) {
					ctx.Barrier(1)
				})
				program.AddThreadFunc(1, "exit", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()

				var afterRound, afterRelease CTAStatus
				var resumePoints []kernels.EntryID
				e.AcceptHook(hookFunc(func(ctx sim.HookCtx) {
					switch ctx.Pos {
					case HookPosWarpReconciled:
						if ctx.Item.(*Warp).Entry == 0 {
							afterRound, _ = e.Status(kernels.D3(0, 0, 0))
						}
					case HookPosBarrierRelease:
						cta := ctx.Item.(*CTA)
						afterRelease = e.status(cta)
						for _, t := range cta.Contexts {
							resumePoints = append(resumePoints, t.ResumePoint)
						}
					}
				}))

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(afterRound.Waiting).To(Equal(4))
				Expect(afterRound.Ready).To(Equal(0))
				Expect(afterRelease.Ready).To(Equal(4))
				Expect(afterRelease.Waiting).To(Equal(0))
				Expect(resumePoints).To(Equal([]kernels.EntryID{1, 1, 1, 1}))
				Expect(e.Counters().BarrierReleases).To(Equal(uint64(1)))
			})

			It("should retire two CTAs independently", func() {
				desc = testDescriptor(4, 2)
				program.AddThreadFunc(0, "sync", func(ctx *kernels.ThreadContext) {
					ctx.Barrier(1)
				})
				program.AddThreadFunc(1, "exit", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()

				tasks := newCTATaskRecorder()
				tracing.CollectTrace(e, tasks)
				e.AcceptHook(hookFunc(func(ctx sim.HookCtx) {
					if ctx.Pos == HookPosBarrierRelease {
						other := kernels.D3(1, 0, 0)
						if ctx.Item.(*CTA).BlockID == other {
							return
						}
						s, found := e.Status(other)
						Expect(found).To(BeTrue())
						Expect(s.Ready).To(Equal(4))
						Expect(s.Exited).To(Equal(0))
					}
				}))

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.AddCta(kernels.D3(1, 0, 0))).To(Succeed())
				Expect(e.ActiveCTAs()).To(HaveLen(2))
				Expect(e.Execute()).To(Succeed())

				Expect(tasks.retired()).To(Equal(
					[]kernels.Dim3{kernels.D3(0, 0, 0), kernels.D3(1, 0, 0)}))
				Expect(e.ActiveCTAs()).To(BeEmpty())

				err := e.AddCta(kernels.D3(0, 0, 0))
				Expect(errors.Is(err, ErrRetiredCTA)).To(BeTrue())
			})

			It("should trace every CTA as a task", func() {
				desc = testDescriptor(8, 2)
				program.AddThreadFunc(0, "exit", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()
				tasks := newCTATaskRecorder()
				tracing.CollectTrace(e, tasks)

				Expect(e.AddCta(kernels.D3(1, 0, 0))).To(Succeed())
				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(tasks.started).To(HaveLen(2))
				Expect(e.Execute()).To(Succeed())

				Expect(tasks.retired()).To(Equal(
					[]kernels.Dim3{kernels.D3(0, 0, 0), kernels.D3(1, 0, 0)}))
				for _, id := range tasks.started {
					Expect(tasks.steps[id]).To(Equal(2))
				}
				Expect(tasks.started[0]).NotTo(Equal(tasks.started[1]))
			})

			It("should resume a branching thread at the branch target", func() {
				program.AddThreadFunc(0, "entry", func(ctx *kernels.ThreadContext) {
					ctx.Branch(7)
				})
				program.AddThreadFunc(7, "target", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				entries := e.Counters().Entries
				Expect(entries.Visits(0)).To(Equal(uint64(4)))
				Expect(entries.Visits(7)).To(Equal(uint64(4)))
			})

			It("should split ready threads into warps earliest first", func() {
				desc.WarpSize = 2
				var dispatched [][]int
				program.AddThreadFunc(0, "entry", func(ctx *kernels.ThreadContext) {
					ctx.Branch(3)
				})
				program.Add(translation.Hyperblock{
					Entry: 3,
					Warp: func(warp []*kernels.ThreadContext) {
						dispatched = append(dispatched, warpIDs(warp))
						for _, ctx := range warp {
							ctx.Exit()
						}
					},
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(dispatched).To(Equal([][]int{{0, 1}, {2, 3}}))
			})

			It("should run re-enqueued threads after those already waiting", func() {
				var order []int
				program.Add(translation.Hyperblock{
					Entry:    0,
					MaxWidth: 1,
					Warp: func(warp []*kernels.ThreadContext) {
						for _, ctx := range warp {
							order = append(order, ctx.LinearID)
							if ctx.Local.Uint32(0) == 0 {
								ctx.Local.SetUint32(0, 1)
								ctx.Branch(0)
								continue
							}
							ctx.Exit()
						}
					},
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(order).To(Equal([]int{0, 1, 2, 3, 0, 1, 2, 3}))
			})

			It("should report a deadlock instead of hanging", func() {
				desc = testDescriptor(3, 1)
				program.AddThreadFunc(0, "exit", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()
				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())

				dropThread(e, kernels.D3(0, 0, 0), 2)
				err := e.Execute()

				var deadlock *DeadlockError
				Expect(errors.As(err, &deadlock)).To(BeTrue())
				Expect(deadlock.BlockID).To(Equal(kernels.D3(0, 0, 0)))
				Expect(deadlock.Exited).To(Equal(2))
				Expect(deadlock.Unaccounted).To(Equal(1))
				Expect(e.ActiveCTAs()).To(HaveLen(1))
			})

			It("should keep every thread accounted for while diverging", func() {
				desc = testDescriptor(8, 1)
				program.AddThreadFunc(0, "split", func(ctx *kernels.ThreadContext) {
					if ctx.LinearID%3 == 0 {
						ctx.Exit()
						return
					}
					ctx.Branch(kernels.EntryID(1 + ctx.LinearID%2))
				})
				program.AddThreadFunc(1, "left", func(ctx *kernels.ThreadContext) {
					ctx.Barrier(3)
				})
				program.AddThreadFunc(2, "right", func(ctx *kernels.ThreadContext) {
					ctx.Fallthrough(1)
				})
				program.AddThreadFunc(3, "tail", func(ctx *kernels.ThreadContext) {
					ctx.Exit()
				})
				e := build()

				lastWaiting := 0
				e.AcceptHook(hookFunc(func(ctx sim.HookCtx) {
					switch ctx.Pos {
					case HookPosWarpDispatch:
						w := ctx.Item.(*Warp)
						Expect(w.Size()).To(BeNumerically("<=", 4))
						for _, t := range w.Threads {
							Expect(t.ResumePoint).To(Equal(w.Entry))
						}
					case HookPosWarpReconciled:
						s, _ := e.Status(kernels.D3(0, 0, 0))
						Expect(s.Accounted()).To(BeTrue())
						Expect(s.Waiting).To(BeNumerically(">=", lastWaiting))
						lastWaiting = s.Waiting
					case HookPosBarrierRelease:
						s := e.status(ctx.Item.(*CTA))
						Expect(s.Waiting).To(Equal(0))
						Expect(ctx.Detail).To(Equal(s.Total - s.Exited))
						lastWaiting = 0
					}
				}))

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())
				Expect(e.Counters().Entries.Visits(3)).To(Equal(uint64(5)))
			})

			It("should reconverge diverged threads", func() {
				var sizes []int
				program.AddThreadFunc(0, "split", func(ctx *kernels.ThreadContext) {
					ctx.Branch(kernels.EntryID(1 + ctx.LinearID%2))
				})
				program.AddThreadFunc(1, "a", func(ctx *kernels.ThreadContext) {
					ctx.Branch(3)
				})
				program.AddThreadFunc(2, "b", func(ctx *kernels.ThreadContext) {
					ctx.Branch(3)
				})
				program.Add(translation.Hyperblock{
					Entry: 3,
					Warp: func(warp []*kernels.ThreadContext) {
						sizes = append(sizes, len(warp))
						for _, ctx := range warp {
							ctx.Exit()
						}
					},
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(sizes).To(Equal([]int{4}))
			})

			It("should return from calls to the continuation", func() {
				depth := map[int]int{}
				program.AddThreadFunc(0, "caller", func(ctx *kernels.ThreadContext) {
					ctx.Call(10, 1)
				})
				program.AddThreadFunc(10, "callee", func(ctx *kernels.ThreadContext) {
					depth[ctx.LinearID] = ctx.CallDepth()
					ctx.Return()
				})
				program.AddThreadFunc(1, "after", func(ctx *kernels.ThreadContext) {
					Expect(ctx.CallDepth()).To(Equal(0))
					ctx.Return()
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(depth).To(HaveLen(4))
				for _, d := range depth {
					Expect(d).To(Equal(1))
				}
				Expect(e.Counters().Entries.Visits(1)).To(Equal(uint64(4)))
			})

			It("should honor the width a translation supports", func() {
				var sizes []int
				program.Add(translation.Hyperblock{
					Entry:    0,
					MaxWidth: 1,
					LiveIn:   2,
					Warp: func(warp []*kernels.ThreadContext) {
						sizes = append(sizes, len(warp))
						for _, ctx := range warp {
							ctx.Exit()
						}
					},
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(sizes).To(Equal([]int{1, 1, 1, 1}))
				Expect(e.Counters().Liveness.Stat(0).Dispatches).To(Equal(uint64(4)))
				Expect(e.Counters().Liveness.Stat(0).Average()).To(Equal(2.0))
			})

			It("should share memory and barriers inside a CTA", func() {
				var sum uint32
				program.AddThreadFunc(0, "store", func(ctx *kernels.ThreadContext) {
					ctx.Shared.SetUint32(uint64(4*ctx.LinearID), uint32(ctx.LinearID+1))
					ctx.Barrier(1)
				})
				program.AddThreadFunc(1, "reduce", func(ctx *kernels.ThreadContext) {
					if ctx.LinearID == 0 {
						for i := 0; i < 4; i++ {
							sum += ctx.Shared.Uint32(uint64(4 * i))
						}
					}
					ctx.Exit()
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				Expect(e.Execute()).To(Succeed())

				Expect(sum).To(Equal(uint32(10)))
			})

			It("should reject a malformed exit code", func() {
				program.AddThreadFunc(0, "broken", func(ctx *kernels.ThreadContext) {
					ctx.ExitCode = kernels.ExitCode(2)
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				err := e.Execute()

				var codeErr *ExitCodeError
				Expect(errors.As(err, &codeErr)).To(BeTrue())
				Expect(codeErr.Code).To(Equal(kernels.ExitCode(2)))
				Expect(codeErr.Entry).To(Equal(kernels.EntryID(0)))
			})

			It("should fail the launch when an entry cannot be compiled", func() {
				program.AddThreadFunc(0, "entry", func(ctx *kernels.ThreadContext) {
					ctx.Branch(5)
				})
				e := build()

				Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
				err := e.Execute()

				var compErr *translation.CompilationError
				Expect(errors.As(err, &compErr)).To(BeTrue())
				Expect(compErr.Entry).To(Equal(kernels.EntryID(5)))
				Expect(err.Error()).To(ContainSubstring("entry 5"))
			})
		})
	}

	Context("preconditions", func() {
		var e *DynamicExecutive

		BeforeEach(func() {
			program := translation.NewProgram("test")
			program.AddThreadFunc(0, "exit", func(ctx *kernels.ThreadContext) {
				ctx.Exit()
			})
			e = buildExecutive(testDescriptor(2, 2),
				translation.NewFuncCache(program), ThreadLevel)
		})

		It("should refuse to execute without CTAs", func() {
			Expect(errors.Is(e.Execute(), ErrNoActiveCTA)).To(BeTrue())
		})

		It("should refuse a duplicate CTA", func() {
			Expect(e.AddCta(kernels.D3(1, 0, 0))).To(Succeed())
			err := e.AddCta(kernels.D3(1, 0, 0))
			Expect(errors.Is(err, ErrDuplicateCTA)).To(BeTrue())
		})

		It("should refuse a block outside the grid", func() {
			err := e.AddCta(kernels.D3(2, 0, 0))
			Expect(errors.Is(err, ErrBlockOutOfGrid)).To(BeTrue())
		})

		It("should panic when Execute is re-entered", func() {
			program := translation.NewProgram("reentrant")
			var inner *DynamicExecutive
			program.AddThreadFunc(0, "again", func(ctx *kernels.ThreadContext) {
				_ = inner.Execute()
			})
			inner = buildExecutive(testDescriptor(1, 1),
				translation.NewFuncCache(program), ThreadLevel)
			Expect(inner.AddCta(kernels.D3(0, 0, 0))).To(Succeed())

			Expect(func() { _ = inner.Execute() }).To(Panic())
		})

		It("should be constructible through the launch signature", func() {
			program := translation.NewProgram("plain")
			program.AddThreadFunc(0, "exit", func(ctx *kernels.ThreadContext) {
				ctx.Exit()
			})
			d := testDescriptor(2, 1)

			x := NewDynamicExecutive(d, 3, translation.NewFuncCache(program), 32)

			Expect(x.Processor()).To(Equal(3))
			Expect(x.Mode()).To(Equal(ThreadLevel))
			Expect(x.Metadata().SharedSize).To(Equal(96))
		})

		It("should refuse negative memory sizes", func() {
			program := translation.NewProgram("plain")
			d := testDescriptor(2, 1)
			b := MakeBuilder().
				WithDescriptor(d).
				WithTranslationCache(translation.NewFuncCache(program)).
				WithLogger(quietLogger())

			Expect(func() {
				b.WithDynamicSharedMemory(-4).Build("negative")
			}).To(Panic())

			d.LocalSize = -1
			Expect(func() { b.Build("negative") }).To(Panic())
		})
	})

	Context("with a mocked translation cache", func() {
		var (
			mockCtrl *gomock.Controller
			cache    *MockCache
			tr       *MockTranslation
			e        *DynamicExecutive
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			cache = NewMockCache(mockCtrl)
			tr = NewMockTranslation(mockCtrl)
			e = buildExecutive(testDescriptor(4, 2), cache, ThreadLevel)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should look each entry up only once", func() {
			cache.EXPECT().
				LookupOrCompile(kernels.EntryID(0), 4).
				Return(tr, nil).
				Times(1)
			tr.EXPECT().Width().Return(4).AnyTimes()
			tr.EXPECT().
				Execute(gomock.Any()).
				Do(func(warp []*kernels.ThreadContext) {
					Expect(warp).To(HaveLen(4))
					for _, ctx := range warp {
						ctx.Exit()
					}
				}).
				Times(2)

			Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
			Expect(e.AddCta(kernels.D3(1, 0, 0))).To(Succeed())
			Expect(e.Execute()).To(Succeed())
		})

		It("should name the entry when compilation fails", func() {
			cache.EXPECT().
				LookupOrCompile(kernels.EntryID(0), 4).
				Return(nil, errors.New("backend unavailable"))

			Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
			err := e.Execute()

			Expect(err).To(MatchError(ContainSubstring("entry 0")))
			Expect(err).To(MatchError(ContainSubstring("backend unavailable")))
		})

		It("should fail for a translation that runs no threads", func() {
			cache.EXPECT().LookupOrCompile(gomock.Any(), gomock.Any()).Return(tr, nil)
			tr.EXPECT().Width().Return(0).AnyTimes()

			Expect(e.AddCta(kernels.D3(0, 0, 0))).To(Succeed())
			err := e.Execute()

			var compErr *translation.CompilationError
			Expect(errors.As(err, &compErr)).To(BeTrue())
		})
	})
})
