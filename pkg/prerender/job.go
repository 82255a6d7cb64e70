package prerender

import (
	"context"
	"fmt"
	"log"

	"github.com/decker502/seqanim/pkg/systems"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Progress 预渲染进度
type Progress struct {
	CompletedSteps int `json:"completedSteps"`
	TotalSteps     int `json:"totalSteps"`
}

// Fraction 返回 0..1 的完成比例
func (p Progress) Fraction() float64 {
	if p.TotalSteps <= 0 {
		return 0
	}
	return float64(p.CompletedSteps) / float64(p.TotalSteps)
}

// ProgressFunc 进度回调
type ProgressFunc func(Progress)

// Job 一次可取消的预渲染任务
//
// 任务不使用 goroutine：宿主每帧调用 Step 推进一小段，
// 因此永远不会阻塞渲染循环超过一帧的工作量，也不需要加锁。
type Job struct {
	r          *Renderer
	in         Inputs
	steps      int
	onProgress ProgressFunc

	completed    int
	lastReported int
	frames       []Frame
	buf          *trail.Buffer
	builder      *systems.RequestBuilder

	done      bool
	cancelled bool
	err       error

	span trace.Span
}

func newJob(ctx context.Context, r *Renderer, in Inputs, steps int, onProgress ProgressFunc) *Job {
	j := &Job{
		r:            r,
		in:           in,
		steps:        steps,
		onProgress:   onProgress,
		lastReported: -1,
		frames:       make([]Frame, 0, steps),
		buf:          trail.NewBuffer(r.cfg.TrailCapacity, r.cfg.TrailMaxPoints, in.Policy),
		builder:      systems.NewRequestBuilder(r.paths, r.mapper, r.textures),
	}
	seqID := ""
	if in.Sequence != nil {
		seqID = in.Sequence.ID
	}
	_, j.span = r.tracer.Start(ctx, "prerender.job", trace.WithAttributes(
		attribute.String("sequence.id", seqID),
		attribute.Int("steps.total", steps),
		attribute.String("trail.policy", in.Policy.String()),
	))
	return j
}

// Step 推进最多 n 个时间步，返回任务是否已结束
func (j *Job) Step(n int) bool {
	if j.done || j.cancelled {
		return true
	}
	for i := 0; i < n && j.completed < j.steps; i++ {
		if err := j.renderStep(j.completed); err != nil {
			j.fail(err)
			return true
		}
		j.completed++
		if j.completed%j.r.cfg.ProgressEvery == 0 {
			j.report()
		}
	}
	if j.completed >= j.steps {
		j.finish()
	}
	return j.done
}

func (j *Job) renderStep(i int) error {
	progress := 0.0
	if j.steps > 1 {
		progress = float64(i) / float64(j.steps-1)
	}
	seq := j.in.Sequence
	tm := j.r.paths.TimeAt(seq, progress)
	nowMs := tm * j.r.cfg.MsPerBeat

	// 轨迹按播放顺序回放到私有缓冲区，帧只依赖输入参数
	if j.in.Policy.Enabled() {
		for _, obj := range types.Objects {
			pose := j.r.paths.Sample(seq, tm, obj)
			systems.RecordPose(j.buf, j.r.mapper, obj, j.in.Ends[obj], pose, j.r.cfg.PropHalfLength, nowMs)
		}
	}

	w, h := j.r.mapper.Size()
	surface, err := j.r.alloc.AllocateSurface(w, h)
	if err != nil {
		return fmt.Errorf("allocate frame %d: %w", i, err)
	}
	req := j.builder.Build(systems.FrameInput{
		Sequence: seq,
		Time:     tm,
		Flags:    j.in.Flags,
		Trails:   j.buf,
		NowMs:    nowMs,
	})
	j.r.frameRenderer.Draw(surface, req)
	j.frames = append(j.frames, Frame{Surface: surface, Progress: progress, Time: tm})
	return nil
}

func (j *Job) report() {
	if j.onProgress == nil || j.cancelled || j.lastReported == j.completed {
		return
	}
	j.lastReported = j.completed
	j.onProgress(Progress{CompletedSteps: j.completed, TotalSteps: j.steps})
}

func (j *Job) finish() {
	j.done = true
	j.report()
	j.span.SetAttributes(attribute.Int("steps.completed", j.completed))
	j.span.End()
	j.r.complete(j)
}

func (j *Job) fail(err error) {
	j.err = err
	j.done = true
	log.Printf("[PreRenderer] job failed after %d/%d steps: %v", j.completed, j.steps, err)
	disposeFrames(j.frames)
	j.frames = nil
	j.span.RecordError(err)
	j.span.SetStatus(codes.Error, err.Error())
	j.span.End()
	j.r.detach(j)
}

// Cancel 取消任务并立即释放已生成的帧，之后不再回调进度
// 已完成的任务调用无效果
func (j *Job) Cancel() {
	if j.done || j.cancelled {
		return
	}
	j.cancelled = true
	j.onProgress = nil
	disposeFrames(j.frames)
	j.frames = nil
	j.span.AddEvent("cancelled", trace.WithAttributes(attribute.Int("steps.completed", j.completed)))
	j.span.End()
	j.r.detach(j)
}

// Done 任务是否已结束（完成或失败）
func (j *Job) Done() bool { return j.done }

// Cancelled 任务是否已取消
func (j *Job) Cancelled() bool { return j.cancelled }

// Err 返回失败原因
func (j *Job) Err() error { return j.err }

// Progress 返回当前进度
func (j *Job) Progress() Progress {
	return Progress{CompletedSteps: j.completed, TotalSteps: j.steps}
}

// Inputs 返回任务开始时捕获的输入
func (j *Job) Inputs() Inputs { return j.in }
