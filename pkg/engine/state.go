package engine

import (
	"fmt"

	"github.com/decker502/seqanim/pkg/metrics"
	"github.com/decker502/seqanim/pkg/prerender"
	"github.com/decker502/seqanim/pkg/types"
)

// State 引擎只读状态快照
type State struct {
	IsInitialized     bool               `json:"isInitialized"`
	RendererError     string             `json:"rendererError,omitempty"`
	IsPreRendering    bool               `json:"isPreRendering"`
	PreRenderProgress prerender.Progress `json:"preRenderProgress"`
	PreRenderReady    bool               `json:"preRenderReady"`
	DisplayedLabel    string             `json:"displayedLabel"`
	CanvasWidth       int                `json:"canvasWidth"`
	CanvasHeight      int                `json:"canvasHeight"`
	SequenceID        string             `json:"sequenceId"`
	ObjectTypes       [2]string          `json:"objectTypes"`
	TrailPolicy       string             `json:"trailPolicy"`
	Scheduler         string             `json:"scheduler"`
	Warnings          []string           `json:"warnings,omitempty"`
}

// State 返回当前状态快照
func (e *Engine) State() State {
	s := State{
		IsInitialized:     e.initialized,
		IsPreRendering:    e.prerenderer.Running(),
		PreRenderProgress: e.progress,
		PreRenderReady:    e.prerenderer.Ready(),
		DisplayedLabel:    e.displayedLabel,
		SequenceID:        e.seqID,
		ObjectTypes:       e.objectTypes,
		TrailPolicy:       e.trails.Policy().String(),
		Scheduler:         e.scheduler.State().String(),
	}
	if e.rendererError != nil {
		s.RendererError = e.rendererError.Error()
	}
	s.CanvasWidth, s.CanvasHeight = e.resources.CanvasSize()
	if e.seq != nil && !e.disposed {
		for _, w := range e.paths.Warnings() {
			s.Warnings = append(s.Warnings, fmt.Sprintf("beat %d %s: %s", w.BeatIndex, w.Object, w.Reason))
		}
	}
	return s
}

// RendererError 返回初始化错误
func (e *Engine) RendererError() error {
	return e.rendererError
}

// Snapshot 返回供指标导出的统计快照
func (e *Engine) Snapshot() metrics.Snapshot {
	c := e.resources.Counters()
	s := metrics.Snapshot{
		Rendered:          uint64(e.scheduler.Rendered()),
		Coalesced:         uint64(e.scheduler.Coalesced()),
		RenderFailures:    uint64(e.scheduler.Failures() + e.panics),
		PrerenderFraction: e.progress.Fraction(),
		PrerenderReady:    e.prerenderer.Ready(),
		Invalidations:     uint64(e.prerenderer.Invalidations()),
		TexturesLoaded:    uint64(c.TexturesLoaded),
		LoadFailures:      uint64(c.LoadFailures),
		LoopClears:        uint64(e.trails.LoopClears()),
	}
	if e.deps.RenderStats != nil {
		s.LiveTextures = e.deps.RenderStats.Live()
	}
	for _, obj := range types.Objects {
		s.TrailPoints[obj] = e.trails.Len(obj)
	}
	return s
}
