package main

import (
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/seqanim/pkg/app"
	"github.com/decker502/seqanim/pkg/embedded"
)

func main() {
	verbose := flag.Bool("verbose", false, "启用详细日志输出")
	configPath := flag.String("config", "", "引擎配置文件（默认使用嵌入的 data/engine.yaml）")
	sequencePath := flag.String("sequence", "", "序列 YAML 文件（默认使用嵌入的示例序列）")
	debugAddr := flag.String("debug-addr", "", "调试服务器地址，例如 127.0.0.1:6061")
	preRender := flag.Bool("prerender", false, "启动时开启预渲染")
	speed := flag.Float64("speed", 1, "播放速度（拍/秒）")
	flag.Parse()

	embedded.Init(dataFS)

	viewer, err := app.NewApp(app.Config{
		Verbose:      *verbose,
		ConfigPath:   *configPath,
		SequencePath: *sequencePath,
		DebugAddr:    *debugAddr,
		PreRender:    *preRender,
		Speed:        *speed,
	})
	if err != nil {
		log.Fatalf("查看器初始化失败: %v", err)
	}
	defer viewer.Close()

	w, h := viewer.Layout(0, 0)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowTitle("Sequence Animation Viewer")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)

	if err := ebiten.RunGame(viewer); err != nil {
		log.Fatal(err)
	}
}
