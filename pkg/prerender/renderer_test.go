package prerender

import (
	"bytes"
	"errors"
	"testing"

	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/decker502/seqanim/pkg/systems"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

var errAllocFailed = errors.New("allocation failed")

// testAllocator 基于软件光栅的分配器，可在第 failAt 次分配时失败
type testAllocator struct {
	device *render.RasterDevice
	stats  *render.Stats
	count  int
	failAt int
}

func newTestAllocator() *testAllocator {
	stats := &render.Stats{}
	return &testAllocator{device: render.NewRasterDevice(stats), stats: stats}
}

func (a *testAllocator) AllocateSurface(w, h int) (render.Surface, error) {
	a.count++
	if a.failAt > 0 && a.count >= a.failAt {
		return nil, errAllocFailed
	}
	return a.device.NewSurface(w, h)
}

func motion(kind types.MotionType, from, to types.Location, startRot, endRot float64, dir types.RotationDirection) sequence.Motion {
	return sequence.Motion{Type: kind, StartLoc: from, EndLoc: to, StartRot: startRot, EndRot: endRot, Direction: dir}
}

func newTestSequence(id string) *sequence.Sequence {
	return &sequence.Sequence{
		ID: id,
		StartPosition: sequence.Beat{
			Blue: motion(types.MotionStatic, types.LocationS, types.LocationS, 0, 0, types.NoRotation),
			Red:  motion(types.MotionStatic, types.LocationN, types.LocationN, 180, 180, types.NoRotation),
		},
		Beats: []sequence.Beat{
			{
				Letter:   "A",
				Duration: 1,
				Blue:     motion(types.MotionRotational, types.LocationS, types.LocationW, 0, 90, types.Clockwise),
				Red:      motion(types.MotionRotational, types.LocationN, types.LocationE, 180, 90, types.CounterClockwise),
			},
			{
				Letter:   "B",
				Duration: 2,
				Blue:     motion(types.MotionLinear, types.LocationW, types.LocationE, 90, 270, types.Clockwise),
				Red:      motion(types.MotionStatic, types.LocationE, types.LocationE, 90, 0, types.CounterClockwise),
			},
		},
	}
}

type fixture struct {
	alloc  *testAllocator
	paths  *pathcache.Cache
	mapper *utils.GridMapper
	fr     *systems.FrameRenderer
	cfg    Config
	r      *Renderer
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		alloc:  newTestAllocator(),
		paths:  pathcache.New(),
		mapper: utils.NewGridMapper(64, 64, 0.1),
		fr:     systems.NewFrameRenderer(systems.DefaultStyle()),
		cfg:    cfg.normalized(),
	}
	f.r = NewRenderer(f.alloc, f.fr, f.paths, f.mapper, nil, cfg)
	return f
}

func defaultInputs(seq *sequence.Sequence, policy trail.Policy) Inputs {
	return Inputs{
		Sequence: seq,
		Flags:    settings.DefaultFlags(),
		Policy:   policy,
		Ends:     [types.ObjectCount]int{2, 1},
	}
}

func runToCompletion(t *testing.T, r *Renderer) {
	t.Helper()
	for i := 0; r.Tick(); i++ {
		if i > 10000 {
			t.Fatal("pre-render job never completed")
		}
	}
}

func TestRenderer_CompletesWithThrottledProgress(t *testing.T) {
	f := newFixture(Config{StepsPerTick: 3, ProgressEvery: 4})
	var reports []Progress

	job, err := f.r.Start(defaultInputs(newTestSequence("s1"), trail.Fade(400)), 10, func(p Progress) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if !f.r.Running() || f.r.Ready() {
		t.Fatal("job should be running and not ready")
	}

	ticks := 0
	for f.r.Tick() {
		ticks++
	}
	ticks++
	if ticks != 4 {
		t.Errorf("ticks = %d, want 4 (3 steps per tick)", ticks)
	}

	want := []int{0, 4, 8, 10}
	if len(reports) != len(want) {
		t.Fatalf("reports = %v, want completed steps %v", reports, want)
	}
	for i, p := range reports {
		if p.CompletedSteps != want[i] || p.TotalSteps != 10 {
			t.Errorf("report %d = %+v, want {%d 10}", i, p, want[i])
		}
	}

	if !job.Done() || job.Err() != nil {
		t.Errorf("Done() = %v, Err() = %v", job.Done(), job.Err())
	}
	if !f.r.Ready() || f.r.Cache().Len() != 10 {
		t.Errorf("Ready() = %v, frames = %d", f.r.Ready(), f.r.Cache().Len())
	}
	if got := f.alloc.stats.Live(); got != 10 {
		t.Errorf("live surfaces = %d, want 10", got)
	}
	if got := job.Progress().Fraction(); got != 1 {
		t.Errorf("Fraction() = %v, want 1", got)
	}
}

// TestRenderer_MatchesLiveDraw 预渲染第 i 帧与实时绘制同一进度逐像素一致
func TestRenderer_MatchesLiveDraw(t *testing.T) {
	policies := []struct {
		name   string
		policy trail.Policy
	}{
		{"关闭轨迹", trail.Off()},
		{"渐隐", trail.Fade(700)},
		{"永久", trail.Persistent()},
	}
	const steps = 6

	for _, tt := range policies {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(DefaultConfig())
			seq := newTestSequence("roundtrip")
			in := defaultInputs(seq, tt.policy)
			if _, err := f.r.Start(in, steps, nil); err != nil {
				t.Fatalf("Start error: %v", err)
			}
			runToCompletion(t, f.r)

			for i := 0; i < steps; i++ {
				// 实时路径：同一个进度序列写入轨迹后绘制
				buf := trail.NewBuffer(f.cfg.TrailCapacity, f.cfg.TrailMaxPoints, tt.policy)
				var tm float64
				for k := 0; k <= i; k++ {
					tm = f.paths.TimeAt(seq, float64(k)/float64(steps-1))
					if tt.policy.Enabled() {
						for _, obj := range types.Objects {
							systems.RecordPose(buf, f.mapper, obj, in.Ends[obj], f.paths.Sample(seq, tm, obj),
								f.cfg.PropHalfLength, tm*f.cfg.MsPerBeat)
						}
					}
				}
				live, _ := render.NewRasterDevice(nil).NewSurface(64, 64)
				req := systems.NewRequestBuilder(f.paths, f.mapper, nil).Build(systems.FrameInput{
					Sequence: seq, Time: tm, Flags: in.Flags, Trails: buf, NowMs: tm * f.cfg.MsPerBeat,
				})
				f.fr.Draw(live, req)

				frame := f.r.Cache().At(i)
				got := frame.Surface.(render.Readable).Pixels().Pix
				want := live.(render.Readable).Pixels().Pix
				if !bytes.Equal(got, want) {
					t.Errorf("frame %d differs from live draw", i)
				}
			}
		})
	}
}

func TestRenderer_CancelReleasesFrames(t *testing.T) {
	f := newFixture(Config{StepsPerTick: 2, ProgressEvery: 1})
	calls := 0
	job, _ := f.r.Start(defaultInputs(newTestSequence("c"), trail.Persistent()), 10, func(Progress) { calls++ })

	f.r.Tick()
	if got := f.alloc.stats.Live(); got != 2 {
		t.Fatalf("live surfaces after one tick = %d, want 2", got)
	}
	callsBefore := calls

	job.Cancel()
	job.Cancel()
	if got := f.alloc.stats.Live(); got != 0 {
		t.Errorf("live surfaces after Cancel = %d, want 0", got)
	}
	if f.r.Running() || f.r.Ready() {
		t.Error("cancelled job still running or produced frames")
	}
	if !job.Step(5) {
		t.Error("Step on cancelled job should report finished")
	}
	f.r.Tick()
	if calls != callsBefore {
		t.Errorf("progress fired %d times after Cancel", calls-callsBefore)
	}
	if !job.Cancelled() || job.Done() {
		t.Errorf("Cancelled() = %v, Done() = %v", job.Cancelled(), job.Done())
	}
}

// TestRenderer_SequenceChangeMidJob 序列中途变化：旧任务不再回调，新任务从 0 开始
func TestRenderer_SequenceChangeMidJob(t *testing.T) {
	f := newFixture(Config{StepsPerTick: 1, ProgressEvery: 1})

	var oldReports, newReports []Progress
	oldJob, _ := f.r.Start(defaultInputs(newTestSequence("old"), trail.Off()), 8, func(p Progress) {
		oldReports = append(oldReports, p)
	})
	f.r.Tick()
	f.r.Tick()
	oldCount := len(oldReports)

	f.r.Invalidate("sequence changed")
	newJob, _ := f.r.Start(defaultInputs(newTestSequence("new"), trail.Off()), 4, func(p Progress) {
		newReports = append(newReports, p)
	})
	runToCompletion(t, f.r)

	if len(oldReports) != oldCount {
		t.Errorf("old job reported %d times after invalidation", len(oldReports)-oldCount)
	}
	if !oldJob.Cancelled() {
		t.Error("old job not cancelled")
	}
	if len(newReports) == 0 || newReports[0].CompletedSteps != 0 {
		t.Fatalf("new job reports = %v, want first CompletedSteps = 0", newReports)
	}
	if !newJob.Done() || f.r.Cache().Identity() != "new" {
		t.Errorf("new job done = %v, cache identity = %q", newJob.Done(), f.r.Cache().Identity())
	}
	if got := f.alloc.stats.Live(); got != 4 {
		t.Errorf("live surfaces = %d, want only the new job's 4 frames", got)
	}
}

func TestRenderer_StartCancelsPrevious(t *testing.T) {
	f := newFixture(Config{StepsPerTick: 1})
	first, _ := f.r.Start(defaultInputs(newTestSequence("a"), trail.Off()), 5, nil)
	f.r.Tick()
	second, _ := f.r.Start(defaultInputs(newTestSequence("a"), trail.Off()), 5, nil)

	if !first.Cancelled() {
		t.Error("previous job not cancelled by Start")
	}
	if f.r.Job() != second {
		t.Error("Job() does not return the latest job")
	}
}

func TestRenderer_InvalidateAfterCompletion(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.r.Start(defaultInputs(newTestSequence("inv"), trail.Off()), 5, nil)
	runToCompletion(t, f.r)
	if f.r.FrameAt(0.5) == nil {
		t.Fatal("FrameAt returned nil on a complete cache")
	}

	f.r.Invalidate("flags changed")
	if f.r.FrameAt(0.5) != nil || f.r.Ready() {
		t.Error("stale frames visible after Invalidate")
	}
	if got := f.alloc.stats.Live(); got != 0 {
		t.Errorf("live surfaces = %d, want 0", got)
	}
	if f.r.Invalidations() != 1 {
		t.Errorf("Invalidations() = %d, want 1", f.r.Invalidations())
	}
	f.r.Dispose()
	f.r.Dispose()
}

func TestFrameCache_Nearest(t *testing.T) {
	f := newFixture(DefaultConfig())
	f.r.Start(defaultInputs(newTestSequence("near"), trail.Off()), 5, nil)
	runToCompletion(t, f.r)
	c := f.r.Cache()

	tests := []struct {
		progress float64
		want     int
	}{
		{-1, 0},
		{0, 0},
		{0.3, 1},
		{0.4, 2},
		{0.99, 4},
		{2, 4},
	}
	for _, tt := range tests {
		if got := c.Index(tt.progress); got != tt.want {
			t.Errorf("Index(%v) = %d, want %d", tt.progress, got, tt.want)
		}
	}
	if fr := c.Nearest(0.5); fr == nil || fr.Progress != 0.5 {
		t.Errorf("Nearest(0.5) = %+v", fr)
	}
	if total := f.paths.TotalDuration(newTestSequence("near")); c.At(4).Time != total {
		t.Errorf("last frame time = %v, want %v", c.At(4).Time, total)
	}

	var empty *FrameCache
	if empty.Nearest(0.5) != nil || empty.Len() != 0 || empty.Index(0.5) != -1 {
		t.Error("nil cache should be empty")
	}
}

func TestRenderer_AllocationFailure(t *testing.T) {
	f := newFixture(Config{StepsPerTick: 10})
	f.alloc.failAt = 3

	job, _ := f.r.Start(defaultInputs(newTestSequence("fail"), trail.Off()), 6, nil)
	f.r.Tick()

	if !errors.Is(job.Err(), errAllocFailed) {
		t.Errorf("Err() = %v, want wrapped allocation error", job.Err())
	}
	if f.r.Ready() || f.r.Running() {
		t.Error("failed job left frames or kept running")
	}
	if got := f.alloc.stats.Live(); got != 0 {
		t.Errorf("live surfaces = %d, want 0", got)
	}
}

func TestRenderer_StartWithoutSequence(t *testing.T) {
	f := newFixture(DefaultConfig())
	if _, err := f.r.Start(Inputs{}, 5, nil); !errors.Is(err, ErrNoSequence) {
		t.Errorf("Start(nil) error = %v, want ErrNoSequence", err)
	}
}
