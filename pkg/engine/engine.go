// Package engine 序列动画引擎（编排层）
//
// Engine 持有路径缓存、轨迹缓冲、渲染调度器、预渲染器和资源管理器，
// 对外只暴露一个 Update(props) 入口和一个只读的 State 快照。
//
// 全部方法都在渲染线程上调用，引擎内部不加锁：
//
//	eng := engine.New(cfg, engine.Deps{Settings: store})
//	eng.Initialize(container, engine.Callbacks{})
//	// 每帧：
//	eng.Update(props)
//	eng.Tick()
//	// 退出：
//	eng.Dispose()
package engine

import (
	"errors"
	"fmt"
	"image/color"
	"log"
	"runtime/debug"
	"time"

	"github.com/decker502/seqanim/pkg/config"
	"github.com/decker502/seqanim/pkg/metrics"
	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/prerender"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/resources"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/decker502/seqanim/pkg/systems"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
)

// ErrNoContainer 未提供宿主容器
var ErrNoContainer = errors.New("engine: nil container")

// Container 宿主容器，提供绘图设备和初始尺寸
type Container interface {
	NewDevice() (render.Device, error)
	Size() (width, height int)
}

// Callbacks 引擎向宿主的通知，字段均可为 nil
type Callbacks struct {
	OnCanvasReady         func(canvas render.Surface)
	OnTrailSettingsChange func(ts settings.TrailSettings)
	OnCanvasSizeChange    func(width, height int)
}

// Deps 注入的协作者，字段均可为 nil
type Deps struct {
	Settings    *settings.Store
	Source      resources.TextureSource // nil 时使用 ProceduralSource
	Timer       systems.FrameTimer      // nil 时使用 TickTimer，由 Tick 驱动
	Clock       func() float64          // 毫秒；nil 时使用单调时钟
	Stats       *metrics.Stats
	RenderStats *render.Stats
}

// Props 每个响应周期传入的完整属性集
//
// Update 对上一次的 Props 做差异比较，只重新触发变化的部分。
type Props struct {
	Sequence *sequence.Sequence
	// BlueType/RedType 覆盖序列中的对象类型，空字符串表示使用序列的
	BlueType string
	RedType  string

	Time  float64 // 播放位置（拍）
	NowMs float64 // 轨迹时间戳，0 表示使用引擎时钟
	// Loops 宿主播放时钟的回绕计数；增加即表示从结尾回到了开头（loopClear 据此清空）
	// 向后拖动只改变 Time，不改变 Loops
	Loops int

	// Flags/Trail 非 nil 时覆盖设置存储中的值（没有设置存储的宿主使用）
	Flags *settings.Flags
	Trail *settings.TrailSettings

	PreRender      bool
	PreRenderSteps int // 0 表示使用配置
}

// Engine 动画引擎
type Engine struct {
	cfg  *config.EngineConfig
	deps Deps

	paths         *pathcache.Cache
	trails        *trail.Buffer
	mapper        *utils.GridMapper
	resources     *resources.Manager
	frameRenderer *systems.FrameRenderer
	builder       *systems.RequestBuilder
	scheduler     *systems.RenderScheduler
	tickTimer     *systems.TickTimer
	prerenderer   *prerender.Renderer
	subscription  *settings.Subscription
	callbacks     Callbacks
	clock         func() float64

	// 当前输入
	seq           *sequence.Sequence
	seqID         string
	objectTypes   [types.ObjectCount]string
	ends          [types.ObjectCount]int
	flags         settings.Flags
	trailSettings settings.TrailSettings
	time          float64
	nowMs         float64
	loops         int
	hasProps      bool

	prerenderWanted bool
	prerenderSteps  int
	progress        prerender.Progress

	initialized    bool
	disposed       bool
	rendererError  error
	displayedLabel string
	lastLoad       *resources.LoadHandle
	panics         int
}

// New 创建引擎，cfg 为 nil 时使用默认配置
func New(cfg *config.EngineConfig, deps Deps) *Engine {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	e := &Engine{
		cfg:           cfg,
		deps:          deps,
		flags:         settings.DefaultFlags(),
		trailSettings: cfg.TrailSettings(),
		clock:         deps.Clock,
	}
	if deps.Settings != nil {
		v := deps.Settings.Values()
		e.flags = v.Flags
		e.trailSettings = v.Trail
	}
	if e.clock == nil {
		start := time.Now()
		e.clock = func() float64 { return float64(time.Since(start)) / float64(time.Millisecond) }
	}

	policy, err := e.trailSettings.Policy()
	if err != nil {
		log.Printf("[Engine] Warning: invalid trail settings %+v: %v (trails off)", e.trailSettings, err)
	}

	e.paths = pathcache.New(pathcache.WithEasing(cfg.EasingFunc()))
	e.trails = trail.NewBuffer(cfg.Trail.Capacity, cfg.Trail.MaxPoints, policy)
	e.mapper = utils.NewGridMapper(cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.Margin)
	for _, obj := range types.Objects {
		e.trails.SetObjectVisible(obj, e.flags.ObjectVisible(obj))
	}

	source := deps.Source
	if source == nil {
		source = resources.NewProceduralSource(0, 0)
	}
	glyphs, err := resources.NewGlyphRasterizer(cfg.Textures.GlyphSize, color.White)
	if err != nil {
		log.Printf("[Engine] Warning: glyph rasterizer unavailable: %v", err)
		glyphs = nil
	}
	e.resources = resources.NewManager(source, glyphs)
	e.resources.AddResizeListener(resources.ResizeFunc(e.onCanvasResize))

	style := systems.DefaultStyle()
	style.PropHalfLength = cfg.Props.HalfLength
	e.frameRenderer = systems.NewFrameRenderer(style)
	e.builder = systems.NewRequestBuilder(e.paths, e.mapper, e.resources)

	timer := deps.Timer
	if timer == nil {
		e.tickTimer = systems.NewTickTimer()
		timer = e.tickTimer
	}
	e.scheduler = systems.NewRenderScheduler(timer, e.draw)
	e.prerenderer = prerender.NewRenderer(e.resources, e.frameRenderer, e.paths, e.mapper,
		e.resources, cfg.PrerenderSettings())
	return e
}

// Initialize 绑定宿主容器并创建绘图资源
//
// 失败不会 panic：错误记录在 State().RendererError，引擎保持不可用。
// 重复调用是空操作。
func (e *Engine) Initialize(container Container, callbacks Callbacks) {
	if e.disposed || e.initialized {
		return
	}
	e.callbacks = callbacks
	if err := e.initialize(container); err != nil {
		e.rendererError = err
		log.Printf("[Engine] Initialization failed: %v", err)
		return
	}
	e.rendererError = nil
	e.initialized = true

	if e.deps.Settings != nil {
		e.subscription = e.deps.Settings.Subscribe(settings.ObserverFunc[settings.Values](e.onSettings))
	}
	w, h := e.mapper.Size()
	log.Printf("[Engine] Initialized on %s device, canvas %dx%d", e.resources.Device().Name(), w, h)

	if e.callbacks.OnCanvasReady != nil {
		e.callbacks.OnCanvasReady(e.resources.Canvas())
	}
	if e.callbacks.OnTrailSettingsChange != nil {
		e.callbacks.OnTrailSettingsChange(e.trailSettings)
	}
	if e.hasProps {
		e.ensurePrerender()
		e.requestRender()
	}
}

func (e *Engine) initialize(container Container) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()
	if container == nil {
		return ErrNoContainer
	}
	device, err := container.NewDevice()
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	if device == nil {
		return fmt.Errorf("failed to create device: container returned nil")
	}

	w, h := container.Size()
	if w <= 0 || h <= 0 {
		w, h = e.cfg.Canvas.Width, e.cfg.Canvas.Height
	}
	if err := e.resources.SetCanvasSize(w, h); err != nil {
		return err
	}
	return e.resources.Initialize(device)
}

// Update 应用一次完整的属性集
// 幂等：与上一次相同的 Props 不会触发任何工作。从不 panic。
func (e *Engine) Update(props Props) {
	if e.disposed {
		return
	}
	defer e.recoverPanic("Update")

	first := !e.hasProps
	changed := first
	e.hasProps = true

	if props.Flags != nil && e.setFlags(*props.Flags) {
		changed = true
	}
	if props.Trail != nil && e.setTrailSettings(*props.Trail) {
		changed = true
	}
	seqChanged := e.setSequence(props.Sequence)
	if seqChanged {
		changed = true
	}
	if e.setObjectTypes(props) {
		changed = true
	}

	nowMs := props.NowMs
	if nowMs <= 0 {
		nowMs = e.clock()
	}
	// 新序列本身已清空轨迹，不算回绕
	wrapped := !first && !seqChanged && props.Loops > e.loops
	e.loops = props.Loops
	switch {
	case first || seqChanged || wrapped || props.Time != e.time:
		e.advance(props.Time, nowMs, wrapped)
		changed = true
	case nowMs != e.nowMs:
		// 位置不变，但渐隐轨迹随时间变化
		e.nowMs = nowMs
		if e.trails.Policy().Mode == trail.ModeFade && e.flags.Trails {
			changed = true
		}
	}

	steps := props.PreRenderSteps
	if steps <= 0 {
		steps = e.cfg.Prerender.Steps
	}
	if props.PreRender != e.prerenderWanted || steps != e.prerenderSteps {
		e.prerenderWanted = props.PreRender
		e.prerenderSteps = steps
		e.prerenderer.Invalidate("prerender settings changed")
		e.progress = prerender.Progress{}
		changed = true
	}
	e.ensurePrerender()

	if changed {
		e.requestRender()
	}
}

// setSequence 序列 ID 是唯一的失效信号
func (e *Engine) setSequence(seq *sequence.Sequence) bool {
	id := ""
	if seq != nil {
		id = seq.ID
	}
	e.seq = seq
	if id == e.seqID {
		return false
	}
	log.Printf("[Engine] Sequence %q → %q", e.seqID, id)
	e.seqID = id
	e.trails.Clear()
	e.prerenderer.Invalidate("sequence changed")
	e.progress = prerender.Progress{}
	if seq != nil {
		// 预先构建路径，让退化节拍的警告尽早出现
		e.paths.TotalDuration(seq)
		for _, w := range e.paths.Warnings() {
			log.Printf("[Engine] Warning: beat %d %s: %s", w.BeatIndex, w.Object, w.Reason)
		}
	}
	return true
}

func (e *Engine) setObjectTypes(props Props) bool {
	next := [types.ObjectCount]string{props.BlueType, props.RedType}
	for _, obj := range types.Objects {
		if next[obj] == "" {
			next[obj] = e.seq.ObjectType(obj)
		}
	}
	for _, obj := range types.Objects {
		e.ends[obj] = e.seq.EndsFor(obj, e.cfg.TrackedEnds(next[obj]))
	}
	if next == e.objectTypes {
		return false
	}
	e.objectTypes = next
	e.lastLoad = e.resources.LoadObjectTextures(next[types.Blue], next[types.Red])
	return true
}

func (e *Engine) setFlags(f settings.Flags) bool {
	if f == e.flags {
		return false
	}
	e.flags = f
	for _, obj := range types.Objects {
		e.trails.SetObjectVisible(obj, f.ObjectVisible(obj))
	}
	e.prerenderer.Invalidate("visibility flags changed")
	return true
}

func (e *Engine) setTrailSettings(ts settings.TrailSettings) bool {
	if ts == e.trailSettings {
		return false
	}
	policy, err := ts.Policy()
	if err != nil {
		log.Printf("[Engine] Ignoring trail settings %+v: %v", ts, err)
		return false
	}
	e.trailSettings = ts
	e.trails.SetPolicy(policy)
	e.prerenderer.Invalidate("trail policy changed")
	if e.callbacks.OnTrailSettingsChange != nil {
		e.callbacks.OnTrailSettingsChange(ts)
	}
	return true
}

// advance 移动播放位置并记录实时轨迹点
func (e *Engine) advance(tm, nowMs float64, wrapped bool) {
	e.time = tm
	e.nowMs = nowMs
	if e.seq == nil {
		return
	}
	if wrapped && e.trails.ObserveWrap() {
		// 回绕帧从空轨迹开始
		return
	}
	for _, obj := range types.Objects {
		pose := e.paths.Sample(e.seq, tm, obj)
		systems.RecordPose(e.trails, e.mapper, obj, e.ends[obj], pose, e.cfg.Props.HalfLength, nowMs)
	}
}

// ensurePrerender 预渲染被请求但没有可用帧也没有任务时，启动新任务
func (e *Engine) ensurePrerender() {
	if !e.prerenderWanted || !e.initialized || e.seq == nil || e.prerenderer.Running() {
		return
	}
	if e.prerenderer.Ready() && e.prerenderer.Cache().Identity() == e.seqID {
		return
	}
	policy, err := e.trailSettings.Policy()
	if err != nil {
		policy = trail.Off()
	}
	in := prerender.Inputs{
		Sequence: e.seq,
		Flags:    e.flags,
		Policy:   policy,
		Ends:     e.ends,
	}
	if _, err := e.prerenderer.Start(in, e.prerenderSteps, e.onProgress); err != nil {
		log.Printf("[Engine] Failed to start prerender: %v", err)
	}
}

func (e *Engine) onProgress(p prerender.Progress) {
	e.progress = p
}

// onSettings 设置存储的观察者回调
func (e *Engine) onSettings(v settings.Values) {
	if e.disposed {
		return
	}
	defer e.recoverPanic("settings")
	changed := e.setFlags(v.Flags)
	if e.setTrailSettings(v.Trail) {
		changed = true
	}
	if changed {
		e.ensurePrerender()
		e.requestRender()
	}
}

// onCanvasResize 画布尺寸变化：轨迹、映射器、预渲染帧都依赖像素几何
func (e *Engine) onCanvasResize(oldW, oldH, newW, newH int) {
	e.trails.Resize(oldW, oldH, newW, newH)
	e.mapper.Resize(newW, newH)
	e.prerenderer.Invalidate("canvas resized")
	e.progress = prerender.Progress{}
	if e.callbacks.OnCanvasSizeChange != nil {
		e.callbacks.OnCanvasSizeChange(newW, newH)
	}
}

// Resize 宿主布局变化时调用
func (e *Engine) Resize(width, height int) error {
	if e.disposed {
		return resources.ErrDisposed
	}
	w, h := e.resources.CanvasSize()
	if err := e.resources.SetCanvasSize(width, height); err != nil {
		return err
	}
	if w != width || h != height {
		e.ensurePrerender()
		e.requestRender()
		if e.callbacks.OnCanvasReady != nil && e.initialized {
			e.callbacks.OnCanvasReady(e.resources.Canvas())
		}
	}
	return nil
}

// Tick 每帧调用一次：上传纹理 → 推进预渲染 → 执行排队的绘制
func (e *Engine) Tick() {
	if e.disposed || !e.initialized {
		return
	}
	defer e.recoverPanic("Tick")

	if e.resources.Poll() > 0 {
		// 纹理变化后旧的预渲染帧已过期
		e.prerenderer.Invalidate("object texture changed")
		e.progress = prerender.Progress{}
		e.ensurePrerender()
		e.requestRender()
	}

	if e.prerenderer.Running() {
		e.prerenderer.Tick()
		if !e.prerenderer.Running() && e.prerenderer.Ready() {
			e.requestRender()
		}
	}

	if e.tickTimer != nil {
		e.tickTimer.Flush()
	}
	if e.deps.Stats != nil {
		e.deps.Stats.Observe(e.Snapshot())
	}
}

func (e *Engine) requestRender() {
	if !e.initialized {
		return
	}
	e.scheduler.TriggerRender(e.buildRequest)
}

// buildRequest 在绘制时才读取状态，保证看到最新的修改
func (e *Engine) buildRequest() *systems.RenderRequest {
	e.trails.BeginFrame()
	return e.builder.Build(systems.FrameInput{
		Sequence: e.seq,
		Time:     e.time,
		Flags:    e.flags,
		Trails:   e.trails,
		NowMs:    e.nowMs,
	})
}

func (e *Engine) draw(req *systems.RenderRequest) {
	canvas := e.resources.Canvas()
	if canvas == nil || req == nil {
		return
	}
	e.displayedLabel = req.Label

	if e.prerenderer.Ready() && e.prerenderer.Cache().Identity() == e.seqID {
		if frame := e.prerenderer.FrameAt(req.Progress); frame != nil {
			canvas.DrawSurface(frame)
			return
		}
	}
	e.frameRenderer.Draw(canvas, req)
}

func (e *Engine) recoverPanic(where string) {
	if r := recover(); r != nil {
		e.panics++
		log.Printf("[Engine] Recovered panic in %s: %v\n%s", where, r, debug.Stack())
	}
}

// Canvas 返回主画布，未初始化或已销毁时为 nil
func (e *Engine) Canvas() render.Surface {
	if e.disposed {
		return nil
	}
	return e.resources.Canvas()
}

// LastLoad 返回最近一次纹理加载请求的句柄
func (e *Engine) LastLoad() *resources.LoadHandle {
	return e.lastLoad
}

// Trails 返回轨迹缓冲区（只读使用）
func (e *Engine) Trails() *trail.Buffer {
	return e.trails
}

// Resources 返回资源管理器
func (e *Engine) Resources() *resources.Manager {
	return e.resources
}

// Prerenderer 返回预渲染器
func (e *Engine) Prerenderer() *prerender.Renderer {
	return e.prerenderer
}

// Scheduler 返回渲染调度器
func (e *Engine) Scheduler() *systems.RenderScheduler {
	return e.scheduler
}

// Dispose 同步停止渲染循环和预渲染任务，释放全部资源
// 可重复调用
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.scheduler.Dispose()
	e.prerenderer.Dispose()
	e.subscription.Unsubscribe()
	e.subscription = nil
	e.resources.Dispose()
	e.paths.Dispose()
	e.trails.Clear()
	e.initialized = false
	log.Printf("[Engine] Disposed")
}
