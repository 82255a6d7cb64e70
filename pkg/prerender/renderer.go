// Package prerender 实现帧预渲染
//
// 预渲染器沿路径缓存提前采样整段序列，把每个量化时间步完整绘制成一帧，
// 之后拖动和循环播放直接按时间取帧，而不是重新计算路径与轨迹。
//
// 任何影响画面的输入变化（序列 ID、轨迹策略、对象纹理、可见性开关、画布尺寸）
// 都必须调用 Invalidate 丢弃整组帧，旧帧永远不会被显示。
package prerender

import (
	"context"
	"errors"
	"log"

	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/decker502/seqanim/pkg/systems"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoSequence 没有可预渲染的序列
var ErrNoSequence = errors.New("prerender: no sequence")

// SurfaceAllocator 帧表面的分配器（由资源管理器提供）
type SurfaceAllocator interface {
	AllocateSurface(width, height int) (render.Surface, error)
}

// Inputs 预渲染使用的全部输入，在 Start 时捕获
type Inputs struct {
	Sequence *sequence.Sequence
	Flags    settings.Flags
	Policy   trail.Policy
	Ends     [types.ObjectCount]int
}

// Config 预渲染参数
type Config struct {
	StepsPerTick   int     // 每帧推进的时间步
	ProgressEvery  int     // 进度回调间隔（步）
	MsPerBeat      float64 // 轨迹回放使用的时间尺度
	PropHalfLength float64 // 道具半长（网格单位）
	TrailCapacity  int
	TrailMaxPoints int
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		StepsPerTick:   4,
		ProgressEvery:  8,
		MsPerBeat:      1000,
		PropHalfLength: 0.35,
		TrailCapacity:  256,
		TrailMaxPoints: 8192,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.StepsPerTick <= 0 {
		c.StepsPerTick = d.StepsPerTick
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = d.ProgressEvery
	}
	if c.MsPerBeat <= 0 {
		c.MsPerBeat = d.MsPerBeat
	}
	if c.PropHalfLength <= 0 {
		c.PropHalfLength = d.PropHalfLength
	}
	if c.TrailCapacity <= 0 {
		c.TrailCapacity = d.TrailCapacity
	}
	if c.TrailMaxPoints < c.TrailCapacity {
		c.TrailMaxPoints = c.TrailCapacity
	}
	return c
}

// Renderer 帧预渲染器
// 同一时刻最多一个任务；完成的任务成为当前帧缓存
type Renderer struct {
	alloc         SurfaceAllocator
	frameRenderer *systems.FrameRenderer
	paths         *pathcache.Cache
	mapper        *utils.GridMapper
	textures      systems.TextureAccessor
	cfg           Config
	tracer        trace.Tracer

	job           *Job
	cache         *FrameCache
	invalidations int
}

// NewRenderer 创建预渲染器
// paths 与实时渲染共享；textures 可为 nil（只绘制占位图形）
func NewRenderer(alloc SurfaceAllocator, fr *systems.FrameRenderer, paths *pathcache.Cache,
	mapper *utils.GridMapper, textures systems.TextureAccessor, cfg Config) *Renderer {
	return &Renderer{
		alloc:         alloc,
		frameRenderer: fr,
		paths:         paths,
		mapper:        mapper,
		textures:      textures,
		cfg:           cfg.normalized(),
		tracer:        otel.Tracer("github.com/decker502/seqanim/prerender"),
	}
}

// Start 开始新的预渲染任务，取消之前的任务并丢弃旧帧
// 立即以 CompletedSteps = 0 回调一次进度
func (r *Renderer) Start(in Inputs, steps int, onProgress ProgressFunc) (*Job, error) {
	if in.Sequence == nil {
		return nil, ErrNoSequence
	}
	if steps < 1 {
		steps = 1
	}
	r.Invalidate("restart")

	for i := range in.Ends {
		if in.Ends[i] <= 0 {
			in.Ends[i] = types.MaxEnds
		}
	}
	r.job = newJob(context.Background(), r, in, steps, onProgress)
	log.Printf("[PreRenderer] started job for sequence %s: %d steps, policy %s",
		in.Sequence.ID, steps, in.Policy)
	r.job.report()
	return r.job, nil
}

// Tick 推进当前任务一个分块，返回是否仍在运行
func (r *Renderer) Tick() bool {
	if r.job == nil {
		return false
	}
	r.job.Step(r.cfg.StepsPerTick)
	return r.job != nil
}

// complete 由任务在完成时调用
func (r *Renderer) complete(j *Job) {
	if r.job != j {
		disposeFrames(j.frames)
		j.frames = nil
		return
	}
	r.cache.Dispose()
	r.cache = newFrameCache(j.in.Sequence.ID, j.frames)
	j.frames = nil
	r.job = nil
	log.Printf("[PreRenderer] job for sequence %s completed: %d frames", r.cache.Identity(), r.cache.Len())
}

func (r *Renderer) detach(j *Job) {
	if r.job == j {
		r.job = nil
	}
}

// Invalidate 取消当前任务并释放全部帧
func (r *Renderer) Invalidate(reason string) {
	hadWork := r.job != nil || r.cache.Len() > 0
	if r.job != nil {
		r.job.Cancel()
		r.job = nil
	}
	r.cache.Dispose()
	r.cache = nil
	if hadWork {
		r.invalidations++
		log.Printf("[PreRenderer] invalidated: %s", reason)
	}
}

// Job 返回正在运行的任务
func (r *Renderer) Job() *Job {
	return r.job
}

// Running 是否有任务在运行
func (r *Renderer) Running() bool {
	return r.job != nil
}

// Ready 是否有完整的帧缓存
func (r *Renderer) Ready() bool {
	return r.cache.Len() > 0
}

// Cache 返回当前帧缓存（可能为 nil）
func (r *Renderer) Cache() *FrameCache {
	return r.cache
}

// FrameAt 返回最接近 progress 的预渲染帧，没有可用帧时返回 nil
func (r *Renderer) FrameAt(progress float64) render.Surface {
	f := r.cache.Nearest(progress)
	if f == nil {
		return nil
	}
	return f.Surface
}

// Invalidations 返回累计失效次数
func (r *Renderer) Invalidations() int {
	return r.invalidations
}

// Dispose 停止任务并释放全部帧，可重复调用
func (r *Renderer) Dispose() {
	r.Invalidate("dispose")
}
