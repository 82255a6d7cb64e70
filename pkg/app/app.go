// Package app 提供序列查看器的核心包装器
//
// 该包将查看器初始化逻辑从 main 包提取出来，使其可以被桌面端和移动端共用。
// 桌面端通过 main.go 调用 NewApp()，移动端通过 mobile/mobile.go 调用。
package app

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/decker502/seqanim/pkg/config"
	"github.com/decker502/seqanim/pkg/embedded"
	"github.com/decker502/seqanim/pkg/engine"
	"github.com/decker502/seqanim/pkg/metrics"
	"github.com/decker502/seqanim/pkg/pathcache"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/resources"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/gdata/v2"
)

// DefaultSequencePath 嵌入的示例序列
const DefaultSequencePath = "data/sequences/demo.yaml"

// Config 定义应用启动配置
type Config struct {
	// Verbose 启用详细日志输出
	Verbose bool
	// ConfigPath 引擎配置文件，为空时使用嵌入的 data/engine.yaml
	ConfigPath string
	// SequencePath 序列文件，为空时使用嵌入的示例序列
	SequencePath string
	// DebugAddr 调试服务器监听地址，为空时不启动
	DebugAddr string
	// PreRender 启动时开启预渲染
	PreRender bool
	// Speed 播放速度（拍/秒），0 表示 1
	Speed float64
}

// trailModes M 键循环切换的轨迹模式
var trailModes = []string{"off", "fade", "loopClear", "persistent"}

const helpText = `Space 暂停  ←/→ 拖动  Home 回到开头
G 网格  T 轨迹  B 蓝色  R 红色  L 标签
M 轨迹模式  P 预渲染  F11 全屏  H 帮助`

// App 是查看器的核心包装器，实现 ebiten.Game 接口
type App struct {
	cfg       *config.EngineConfig
	engine    *engine.Engine
	store     *settings.Store
	stats     *metrics.Stats
	debug     *DebugServer
	container *hostContainer

	seq       *sequence.Sequence
	playback  Playback
	preRender bool
	showHelp  bool
	verbose   bool

	initialized bool
	closed      bool

	// 调试服务器投递到渲染线程的命令
	commands chan func()
	state    atomic.Pointer[engine.State]
}

// NewApp 创建并初始化查看器
//
// 调用此函数前，必须先调用 embedded.Init() 初始化嵌入数据。
func NewApp(cfg Config) (*App, error) {
	// 配置日志输出
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = config.DefaultEnginePath
	}
	engineCfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("引擎配置加载失败: %w", err)
	}

	seqPath := cfg.SequencePath
	if seqPath == "" {
		seqPath = DefaultSequencePath
	}
	seq, err := LoadSequence(seqPath)
	if err != nil {
		return nil, fmt.Errorf("序列加载失败: %w", err)
	}
	log.Printf("[App] Loaded sequence %s (%d beats)", seq.ID, seq.Len())

	// 设置持久化：gdata 不可用时降级为纯内存设置
	gdataManager, err := gdata.Open(gdata.Config{AppName: "seqanim"})
	if err != nil {
		log.Printf("[App] Warning: gdata unavailable: %v (settings will not persist)", err)
		gdataManager = nil
	}
	store := settings.NewStore(gdataManager)
	if !store.HasSaved() {
		if err := store.SetTrail(engineCfg.TrailSettings()); err != nil {
			log.Printf("[App] Warning: config trail settings rejected: %v", err)
		}
	}

	stats := metrics.NewStats()
	renderStats := &render.Stats{}
	eng := engine.New(engineCfg, engine.Deps{
		Settings:    store,
		Source:      newTextureSource(engineCfg),
		Stats:       stats,
		RenderStats: renderStats,
	})

	speed := cfg.Speed
	if speed <= 0 {
		speed = 1
	}
	a := &App{
		cfg:       engineCfg,
		engine:    eng,
		store:     store,
		stats:     stats,
		container: newEbitenContainer(renderStats, engineCfg.Canvas.Width, engineCfg.Canvas.Height),
		seq:       seq,
		playback:  Playback{Speed: speed, Loop: true},
		preRender: cfg.PreRender,
		verbose:   cfg.Verbose,
		commands:  make(chan func(), 16),
	}
	a.playback.Reset(seqDuration(seq))
	a.publishState()

	if cfg.DebugAddr != "" {
		a.debug = NewDebugServer(cfg.DebugAddr, stats, a.State, a.enqueueToggle)
		a.debug.Start()
	}
	return a, nil
}

// LoadSequence 读取序列文件；以 "data/" 开头且存在于嵌入数据中时从嵌入数据读取
func LoadSequence(path string) (*sequence.Sequence, error) {
	if strings.HasPrefix(path, "data/") && embedded.IsInitialized() && embedded.Exists(path) {
		data, err := embedded.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return sequence.Parse(data)
	}
	return sequence.Load(path)
}

// newTextureSource 优先使用嵌入的道具图片，找不到时生成程序化纹理
func newTextureSource(cfg *config.EngineConfig) resources.TextureSource {
	procedural := resources.NewProceduralSource(0, 0)
	dataFS, err := embedded.FS()
	if err != nil {
		log.Printf("[App] Embedded data unavailable, using procedural textures: %v", err)
		return procedural
	}
	return &resources.FallbackSource{
		Primary:  resources.NewFSSource(dataFS, cfg.Textures.Pattern),
		Fallback: procedural,
	}
}

// seqDuration 与引擎使用同一套时间线规则
func seqDuration(seq *sequence.Sequence) float64 {
	return pathcache.New().TotalDuration(seq)
}

// enqueueToggle 由调试服务器调用（任意 goroutine）
func (a *App) enqueueToggle(name string) error {
	select {
	case a.commands <- func() {
		if err := a.store.ToggleFlag(name); err != nil {
			log.Printf("[App] Toggle %q failed: %v", name, err)
		}
	}:
		return nil
	default:
		return ErrBusy
	}
}

// State 返回最近发布的引擎状态，可在任意 goroutine 调用
func (a *App) State() engine.State {
	if s := a.state.Load(); s != nil {
		return *s
	}
	return engine.State{}
}

func (a *App) publishState() {
	s := a.engine.State()
	a.state.Store(&s)
}

// Update 更新查看器逻辑
// 每个 tick 调用一次（通常每秒 60 次）
func (a *App) Update() error {
	if ebiten.IsWindowBeingClosed() {
		a.Close()
		return ebiten.Termination
	}

	a.ensureInitialized()
	a.syncCanvasSize()
	a.drainCommands()
	a.handleInput()

	a.playback.Advance(1.0 / float64(ebiten.TPS()))
	a.engine.Update(engine.Props{
		Sequence:  a.seq,
		Time:      a.playback.Time,
		Loops:     a.playback.Loops,
		PreRender: a.preRender,
	})
	a.engine.Tick()
	a.publishState()
	return nil
}

// ensureInitialized 延迟初始化：第一次 Update 前的纹理请求已经进入队列
func (a *App) ensureInitialized() {
	if a.initialized {
		return
	}
	a.initialized = true
	a.engine.Initialize(a.container, engine.Callbacks{
		OnTrailSettingsChange: func(ts settings.TrailSettings) {
			log.Printf("[App] Trail settings: %s %.0fms", ts.Mode, ts.FadeDurationMs)
		},
		OnCanvasSizeChange: func(w, h int) {
			log.Printf("[App] Canvas size: %dx%d", w, h)
		},
	})
}

// syncCanvasSize 把 Layout 记录的窗口尺寸同步给引擎
func (a *App) syncCanvasSize() {
	if a.engine.RendererError() != nil {
		return
	}
	w, h := a.container.Size()
	cw, ch := a.engine.Resources().CanvasSize()
	if w == cw && h == ch {
		return
	}
	if err := a.engine.Resize(w, h); err != nil {
		log.Printf("[App] Resize to %dx%d failed: %v", w, h, err)
	}
}

func (a *App) drainCommands() {
	for {
		select {
		case cmd := <-a.commands:
			cmd()
		default:
			return
		}
	}
}

func (a *App) handleInput() {
	toggles := map[ebiten.Key]string{
		ebiten.KeyG: "grid",
		ebiten.KeyT: "trails",
		ebiten.KeyB: "blue",
		ebiten.KeyR: "red",
		ebiten.KeyL: "glyph",
	}
	for key, name := range toggles {
		if inpututil.IsKeyJustPressed(key) {
			if err := a.store.ToggleFlag(name); err != nil {
				log.Printf("[App] Toggle %q failed: %v", name, err)
			}
		}
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		a.playback.Paused = !a.playback.Paused
	case inpututil.IsKeyJustPressed(ebiten.KeyHome):
		a.playback.Restart()
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		a.cycleTrailMode()
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		a.preRender = !a.preRender
		log.Printf("[App] PreRender: %v", a.preRender)
	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		a.showHelp = !a.showHelp
	case inpututil.IsKeyJustPressed(ebiten.KeyF11):
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}

	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		a.playback.Scrub(-a.playback.Speed / float64(ebiten.TPS()))
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		a.playback.Scrub(a.playback.Speed / float64(ebiten.TPS()))
	}
}

func (a *App) cycleTrailMode() {
	ts := a.store.Values().Trail
	next := trailModes[0]
	for i, m := range trailModes {
		if strings.EqualFold(m, ts.Mode) {
			next = trailModes[(i+1)%len(trailModes)]
			break
		}
	}
	ts.Mode = next
	if ts.FadeDurationMs <= 0 {
		ts.FadeDurationMs = a.cfg.Trail.FadeDurationMs
	}
	if err := a.store.SetTrail(ts); err != nil {
		log.Printf("[App] Trail mode %q rejected: %v", next, err)
	}
}

// Draw 绘制画面
// 每帧调用一次
func (a *App) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	if img := render.EbitenImage(a.engine.Canvas()); img != nil {
		screen.DrawImage(img, nil)
	}

	st := a.State()
	if st.RendererError != "" {
		ebitenutil.DebugPrint(screen, "renderer error: "+st.RendererError)
		return
	}
	if a.showHelp {
		ebitenutil.DebugPrintAt(screen, helpText, 8, 8)
	}
	if st.IsPreRendering {
		p := st.PreRenderProgress
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("prerender %d/%d", p.CompletedSteps, p.TotalSteps),
			8, a.container.height-20)
	}
}

// Layout 返回逻辑屏幕尺寸
// 画布跟随窗口尺寸，下一次 Update 时同步给引擎；外部尺寸无效时保持当前尺寸
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		a.container.width, a.container.height = outsideWidth, outsideHeight
	}
	return a.container.Size()
}

// Close 保存设置并释放全部资源，可重复调用
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if err := a.store.Save(); err != nil {
		log.Printf("[App] Warning: failed to save settings: %v", err)
	}
	a.engine.Dispose()
	if a.debug != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.debug.Shutdown(ctx); err != nil {
			log.Printf("[App] Debug server shutdown: %v", err)
		}
	}
}

// IsVerbose 返回是否启用了详细日志
func (a *App) IsVerbose() bool {
	return a.verbose
}
