package systems

import (
	"log"
	"runtime/debug"
)

// SchedulerState 渲染调度器状态
type SchedulerState int

const (
	StateIdle SchedulerState = iota
	StateRenderRequested
	StateRendering
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRenderRequested:
		return "requested"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// ParamsFactory 在绘制时才被调用，构建本次绘制所需的请求
// 返回 nil 表示本帧无需绘制
type ParamsFactory func() *RenderRequest

// DrawFunc 执行一次绘制
type DrawFunc func(req *RenderRequest)

// RenderScheduler 渲染循环调度器
//
// 状态机：Idle → RenderRequested → Rendering → Idle
//
//   - 同一时刻最多一个绘制在进行
//   - 重复请求合并，只保留最新的 ParamsFactory（绘制最新状态，而不是每个请求的状态）
//   - 绘制过程中到达的请求合并为恰好一次后续绘制
//   - 工厂在绘制时求值，因此总能观察到请求之前的状态修改
//
// 所有方法只能在渲染线程调用。
type RenderScheduler struct {
	timer FrameTimer
	draw  DrawFunc

	state     SchedulerState
	factory   ParamsFactory
	handle    FrameHandle
	hasHandle bool
	drawing   bool
	disposed  bool

	rendered  int
	coalesced int
	failures  int
}

// NewRenderScheduler 创建调度器
func NewRenderScheduler(timer FrameTimer, draw DrawFunc) *RenderScheduler {
	return &RenderScheduler{timer: timer, draw: draw}
}

// TriggerRender 请求一次绘制
// 永远不会 panic；释放后调用无效果
func (s *RenderScheduler) TriggerRender(factory ParamsFactory) {
	if s.disposed || factory == nil {
		return
	}
	s.factory = factory

	switch s.state {
	case StateIdle:
		s.state = StateRenderRequested
		s.handle = s.timer.RequestFrame(s.onFrame)
		s.hasHandle = true
	case StateRendering:
		// 当前绘制结束后补一次
		s.state = StateRenderRequested
	case StateRenderRequested:
		s.coalesced++
	}
}

func (s *RenderScheduler) onFrame() {
	s.hasHandle = false
	if s.disposed {
		return
	}

	factory := s.factory
	s.factory = nil
	s.state = StateRendering
	s.drawing = true
	s.runDraw(factory)
	s.drawing = false

	if s.disposed {
		return
	}
	if s.state == StateRenderRequested {
		s.handle = s.timer.RequestFrame(s.onFrame)
		s.hasHandle = true
		return
	}
	s.state = StateIdle
}

func (s *RenderScheduler) runDraw(factory ParamsFactory) {
	defer func() {
		if r := recover(); r != nil {
			s.failures++
			log.Printf("[RenderScheduler] draw panic recovered: %v\n%s", r, debug.Stack())
		}
	}()
	if factory == nil || s.draw == nil {
		return
	}
	req := factory()
	if req == nil {
		return
	}
	s.draw(req)
	s.rendered++
}

// State 返回当前状态
func (s *RenderScheduler) State() SchedulerState {
	return s.state
}

// Drawing 是否正在绘制
func (s *RenderScheduler) Drawing() bool {
	return s.drawing
}

// Rendered 返回完成的绘制次数
func (s *RenderScheduler) Rendered() int {
	return s.rendered
}

// Coalesced 返回被合并掉的请求次数
func (s *RenderScheduler) Coalesced() int {
	return s.coalesced
}

// Failures 返回绘制中 panic 的次数
func (s *RenderScheduler) Failures() int {
	return s.failures
}

// Dispose 取消挂起的请求并释放帧定时句柄，可重复调用
func (s *RenderScheduler) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.hasHandle {
		s.timer.CancelFrame(s.handle)
		s.hasHandle = false
	}
	s.factory = nil
	s.state = StateIdle
}

// Disposed 是否已释放
func (s *RenderScheduler) Disposed() bool {
	return s.disposed
}
