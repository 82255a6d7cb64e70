// Package metrics 把引擎运行状态导出为 Prometheus 指标
//
// 引擎只在渲染线程上运行，因此指标不直接挂在引擎内部：
// 宿主每帧调用 Observe 发布一份快照，抓取端从快照读取，两边互不加锁。
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seqanim"

// Snapshot 引擎状态快照（累计值单调递增）
type Snapshot struct {
	Rendered       uint64
	Coalesced      uint64
	RenderFailures uint64

	PrerenderFraction float64
	PrerenderReady    bool
	Invalidations     uint64

	LiveTextures   int64
	TexturesLoaded uint64
	LoadFailures   uint64

	TrailPoints [2]int
	LoopClears  uint64
}

// Stats 持有独立的 registry，不污染全局默认 registry
type Stats struct {
	registry *prometheus.Registry
	current  atomic.Pointer[Snapshot]
	observed atomic.Uint64
	requests *prometheus.CounterVec
}

// NewStats 创建并注册全部指标
func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debug_http_requests_total",
			Help:      "Requests served by the viewer debug server.",
		}, []string{"code", "method"}),
	}
	s.current.Store(&Snapshot{})

	counter := func(name, help string, read func(*Snapshot) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return read(s.current.Load()) })
	}
	gauge := func(name, help string, labels prometheus.Labels, read func(*Snapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return read(s.current.Load()) })
	}

	s.registry.MustRegister(
		s.requests,
		counter("renders_total", "Frames drawn by the render scheduler.",
			func(v *Snapshot) float64 { return float64(v.Rendered) }),
		counter("render_coalesced_total", "Render triggers merged into an already pending frame.",
			func(v *Snapshot) float64 { return float64(v.Coalesced) }),
		counter("render_failures_total", "Draw callbacks that panicked.",
			func(v *Snapshot) float64 { return float64(v.RenderFailures) }),
		counter("prerender_invalidations_total", "Pre-rendered frame sets discarded because inputs changed.",
			func(v *Snapshot) float64 { return float64(v.Invalidations) }),
		counter("textures_loaded_total", "Object textures uploaded to the device.",
			func(v *Snapshot) float64 { return float64(v.TexturesLoaded) }),
		counter("texture_load_failures_total", "Object texture loads that fell back to the placeholder.",
			func(v *Snapshot) float64 { return float64(v.LoadFailures) }),
		counter("trail_loop_clears_total", "Trail clears caused by playback wrapping around.",
			func(v *Snapshot) float64 { return float64(v.LoopClears) }),
		gauge("prerender_progress_ratio", "Completed fraction of the running pre-render job.", nil,
			func(v *Snapshot) float64 { return v.PrerenderFraction }),
		gauge("prerender_ready", "1 when a complete pre-rendered frame set is installed.", nil,
			func(v *Snapshot) float64 {
				if v.PrerenderReady {
					return 1
				}
				return 0
			}),
		gauge("textures_live", "Device textures and surfaces currently allocated.", nil,
			func(v *Snapshot) float64 { return float64(v.LiveTextures) }),
		gauge("trail_points", "Trail points held in the capture buffer.", prometheus.Labels{"object": "blue"},
			func(v *Snapshot) float64 { return float64(v.TrailPoints[0]) }),
		gauge("trail_points", "Trail points held in the capture buffer.", prometheus.Labels{"object": "red"},
			func(v *Snapshot) float64 { return float64(v.TrailPoints[1]) }),
	)
	return s
}

// Observe 发布最新快照，可在任意 goroutine 调用
func (s *Stats) Observe(v Snapshot) {
	s.current.Store(&v)
	s.observed.Add(1)
}

// RecordRequest 记录一次调试服务器请求
func (s *Stats) RecordRequest(code, method string) {
	s.requests.WithLabelValues(code, method).Inc()
}

// Current 返回最近一次发布的快照
func (s *Stats) Current() Snapshot {
	return *s.current.Load()
}

// Observations 返回 Observe 的调用次数
func (s *Stats) Observations() uint64 {
	return s.observed.Load()
}

// Registry 返回内部 registry
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// Handler 返回 /metrics 处理器
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
