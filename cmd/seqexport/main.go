// cmd/seqexport/main.go
// 无窗口导出程序 - 把序列预渲染成一组 PNG 帧
//
// 使用软件光栅设备驱动与查看器相同的引擎，等待纹理上传和预渲染完成后，
// 按时间步顺序写出 frame_0000.png ... frame_NNNN.png。
//
// 用法：
//
//	go run ./cmd/seqexport -sequence data/sequences/demo.yaml -out build/frames -steps 120
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/decker502/seqanim/pkg/config"
	"github.com/decker502/seqanim/pkg/engine"
	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/resources"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/settings"
)

// errTimeout 预渲染在限定时间内没有完成
var errTimeout = errors.New("seqexport: timed out waiting for prerender")

type options struct {
	ConfigPath   string
	SequencePath string
	DataDir      string
	OutDir       string
	Steps        int
	Timeout      time.Duration
}

// rasterContainer 软件光栅宿主
type rasterContainer struct {
	stats         *render.Stats
	width, height int
}

func (c *rasterContainer) NewDevice() (render.Device, error) {
	return render.NewRasterDevice(c.stats), nil
}

func (c *rasterContainer) Size() (int, int) { return c.width, c.height }

func main() {
	opts := options{}
	flag.StringVar(&opts.ConfigPath, "config", config.DefaultEnginePath, "引擎配置文件")
	flag.StringVar(&opts.SequencePath, "sequence", "data/sequences/demo.yaml", "序列 YAML 文件")
	flag.StringVar(&opts.DataDir, "data", "data", "道具纹理所在的数据目录")
	flag.StringVar(&opts.OutDir, "out", "build/frames", "输出目录")
	flag.IntVar(&opts.Steps, "steps", 0, "时间步数（0 使用配置值）")
	flag.DurationVar(&opts.Timeout, "timeout", time.Minute, "等待预渲染的最长时间")
	flag.Parse()

	n, err := export(opts, os.Stdout)
	if err != nil {
		log.Fatalf("导出失败: %v", err)
	}
	log.Printf("✓ 导出 %d 帧到 %s", n, opts.OutDir)
}

// export 预渲染整段序列并写出 PNG，返回写出的帧数
func export(opts options, out io.Writer) (int, error) {
	cfg, err := config.LoadEngineConfig(opts.ConfigPath)
	if err != nil {
		return 0, err
	}
	seq, err := sequence.Load(opts.SequencePath)
	if err != nil {
		return 0, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}

	var source resources.TextureSource = resources.NewProceduralSource(0, 0)
	if opts.DataDir != "" {
		source = &resources.FallbackSource{
			Primary:  resources.NewFSSource(os.DirFS(opts.DataDir), cfg.Textures.Pattern),
			Fallback: source,
		}
	}

	store := settings.NewStore(nil)
	if err := store.SetTrail(cfg.TrailSettings()); err != nil {
		return 0, err
	}
	stats := &render.Stats{}
	eng := engine.New(cfg, engine.Deps{Settings: store, Source: source, RenderStats: stats})
	defer eng.Dispose()

	eng.Initialize(&rasterContainer{stats: stats, width: cfg.Canvas.Width, height: cfg.Canvas.Height}, engine.Callbacks{})
	if err := eng.RendererError(); err != nil {
		return 0, err
	}
	eng.Update(engine.Props{Sequence: seq, PreRender: true, PreRenderSteps: opts.Steps})

	deadline := time.Now().Add(opts.Timeout)
	for !exportReady(eng) {
		if time.Now().After(deadline) {
			return 0, errTimeout
		}
		eng.Tick()
		time.Sleep(time.Millisecond)
	}
	if h := eng.LastLoad(); h != nil && h.Err() != nil {
		fmt.Fprintf(out, "警告: 纹理加载失败，使用占位图形: %v\n", h.Err())
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return 0, fmt.Errorf("创建输出目录失败: %w", err)
	}
	cache := eng.Prerenderer().Cache()
	for i := 0; i < cache.Len(); i++ {
		frame := cache.At(i)
		path := filepath.Join(opts.OutDir, fmt.Sprintf("frame_%04d.png", i))
		if err := writeFrame(path, frame.Surface); err != nil {
			return i, err
		}
		fmt.Fprintf(out, "%s t=%.3f\n", path, frame.Time)
	}
	return cache.Len(), nil
}

// exportReady 纹理已上传且预渲染完成
func exportReady(eng *engine.Engine) bool {
	if h := eng.LastLoad(); h != nil && !h.Resolved() {
		return false
	}
	p := eng.Prerenderer()
	return p.Ready() && !p.Running()
}

func writeFrame(path string, s render.Surface) error {
	readable, ok := s.(render.Readable)
	if !ok {
		return fmt.Errorf("frame surface %T is not readable", s)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, readable.Pixels()); err != nil {
		f.Close()
		return fmt.Errorf("编码 %s 失败: %w", path, err)
	}
	return f.Close()
}
