package app

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/decker502/seqanim/pkg/config"
	"github.com/decker502/seqanim/pkg/embedded"
	"github.com/decker502/seqanim/pkg/engine"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/settings"
)

const embeddedSequence = `id: embedded-seq
beats:
  - letter: A
    blue: {type: static, start: n, end: n}
    red:  {type: static, start: s, end: s}
  - letter: B
    duration: 2
    blue: {type: static, start: n, end: n}
    red:  {type: static, start: s, end: s}
`

func newTestApp() *App {
	return &App{
		cfg:      config.DefaultEngineConfig(),
		store:    settings.NewStore(nil),
		commands: make(chan func(), 1),
	}
}

func TestLoadSequenceFromEmbedded(t *testing.T) {
	embedded.Init(fstest.MapFS{
		"data/sequences/test.yaml": {Data: []byte(embeddedSequence)},
	})

	seq, err := LoadSequence("data/sequences/test.yaml")
	if err != nil {
		t.Fatalf("LoadSequence failed: %v", err)
	}
	if seq.ID != "embedded-seq" || seq.Len() != 2 {
		t.Errorf("got id=%q len=%d", seq.ID, seq.Len())
	}
	if d := seqDuration(seq); d != 3 {
		t.Errorf("seqDuration = %v, want 3", d)
	}

	if _, err := LoadSequence("data/sequences/missing.yaml"); err == nil {
		t.Error("missing sequence should fail")
	}
}

func TestEnqueueToggle(t *testing.T) {
	a := newTestApp()
	before := a.store.Values().Flags.Grid

	if err := a.enqueueToggle("grid"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := a.enqueueToggle("grid"); !errors.Is(err, ErrBusy) {
		t.Errorf("full queue: got %v, want ErrBusy", err)
	}
	// 命令只在渲染线程执行
	if a.store.Values().Flags.Grid != before {
		t.Fatal("toggle applied before drain")
	}

	a.drainCommands()
	if a.store.Values().Flags.Grid == before {
		t.Error("toggle not applied after drain")
	}
	if err := a.enqueueToggle("grid"); err != nil {
		t.Errorf("queue should accept after drain: %v", err)
	}
}

func TestCycleTrailMode(t *testing.T) {
	a := newTestApp()
	if err := a.store.SetTrail(settings.TrailSettings{Mode: "off"}); err != nil {
		t.Fatal(err)
	}

	want := []string{"fade", "loopClear", "persistent", "off"}
	for _, mode := range want {
		a.cycleTrailMode()
		if got := a.store.Values().Trail.Mode; got != mode {
			t.Fatalf("mode = %q, want %q", got, mode)
		}
	}
	if a.store.Values().Trail.FadeDurationMs <= 0 {
		t.Error("fade duration should be seeded from config")
	}
}

func TestLayoutResizesCanvas(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.Canvas.Width, cfg.Canvas.Height = 64, 64
	cfg.Textures.GlyphSize = 12
	stats := &render.Stats{}
	a := newTestApp()
	a.cfg = cfg
	a.engine = engine.New(cfg, engine.Deps{Settings: a.store, RenderStats: stats})
	a.container = &hostContainer{
		newDevice: func() (render.Device, error) { return render.NewRasterDevice(stats), nil },
		width:     cfg.Canvas.Width,
		height:    cfg.Canvas.Height,
	}
	t.Cleanup(a.engine.Dispose)

	a.ensureInitialized()
	if err := a.engine.RendererError(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	tests := []struct {
		name         string
		outW, outH   int
		wantW, wantH int
	}{
		{"窗口放大", 120, 90, 120, 90},
		{"无效尺寸保持不变", 0, 0, 120, 90},
		{"窗口缩小", 48, 32, 48, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := a.Layout(tt.outW, tt.outH)
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("Layout = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			a.syncCanvasSize()
			st := a.engine.State()
			if st.CanvasWidth != tt.wantW || st.CanvasHeight != tt.wantH {
				t.Errorf("engine canvas = %dx%d, want %dx%d", st.CanvasWidth, st.CanvasHeight, tt.wantW, tt.wantH)
			}
			if c := a.engine.Canvas(); c == nil {
				t.Error("canvas missing after resize")
			} else if cw, ch := c.Size(); cw != tt.wantW || ch != tt.wantH {
				t.Errorf("canvas surface = %dx%d", cw, ch)
			}
		})
	}
}
