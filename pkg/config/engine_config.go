package config

import (
	"fmt"
	"os"

	"github.com/decker502/seqanim/pkg/embedded"
	"github.com/decker502/seqanim/pkg/prerender"
	"github.com/decker502/seqanim/pkg/settings"
	"github.com/decker502/seqanim/pkg/types"
	"github.com/decker502/seqanim/pkg/utils"
	"gopkg.in/yaml.v3"
)

// DefaultEnginePath 嵌入的默认引擎配置
const DefaultEnginePath = "data/engine.yaml"

// EngineConfig 引擎配置
//
// 配置文件位置: data/engine.yaml
// 所有字段都有默认值，配置文件只需要写需要覆盖的部分。
type EngineConfig struct {
	Canvas    CanvasConfig    `yaml:"canvas"`
	Easing    string          `yaml:"easing"`
	Trail     TrailConfig     `yaml:"trail"`
	Prerender PrerenderConfig `yaml:"prerender"`
	Props     PropsConfig     `yaml:"props"`
	Textures  TexturesConfig  `yaml:"textures"`
}

// CanvasConfig 画布配置
type CanvasConfig struct {
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	Margin float64 `yaml:"margin"` // 网格外圈到画布边缘的留白比例
}

// TrailConfig 轨迹缓冲配置
type TrailConfig struct {
	Capacity       int     `yaml:"capacity"`  // 每端初始容量
	MaxPoints      int     `yaml:"maxPoints"` // 每端硬上限
	Mode           string  `yaml:"mode"`      // off / fade / loopClear / persistent
	FadeDurationMs float64 `yaml:"fadeDurationMs"`
}

// PrerenderConfig 预渲染配置
type PrerenderConfig struct {
	Steps         int     `yaml:"steps"`
	StepsPerTick  int     `yaml:"stepsPerTick"`
	ProgressEvery int     `yaml:"progressEvery"`
	MsPerBeat     float64 `yaml:"msPerBeat"` // 预渲染时把拍换算成轨迹时间戳
}

// PropsConfig 道具几何配置
type PropsConfig struct {
	HalfLength float64 `yaml:"halfLength"` // 网格单位

	// TrackedEnds 按道具类型给出追踪端点数，"default" 为兜底
	TrackedEnds map[string]int `yaml:"trackedEnds"`
}

// TexturesConfig 纹理配置
type TexturesConfig struct {
	Pattern   string  `yaml:"pattern"` // 含 {type} 占位符，相对于 data/
	GlyphSize float64 `yaml:"glyphSize"`
}

// DefaultEngineConfig 返回默认配置
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Canvas: CanvasConfig{Width: 640, Height: 640, Margin: 0.2},
		Easing: "linear",
		Trail: TrailConfig{
			Capacity:       256,
			MaxPoints:      8192,
			Mode:           "fade",
			FadeDurationMs: 800,
		},
		Prerender: PrerenderConfig{
			Steps:         120,
			StepsPerTick:  4,
			ProgressEvery: 8,
			MsPerBeat:     1000,
		},
		Props: PropsConfig{
			HalfLength:  0.35,
			TrackedEnds: map[string]int{"default": 2},
		},
		Textures: TexturesConfig{
			Pattern:   "props/{type}.png",
			GlyphSize: 48,
		},
	}
}

// ParseEngineConfig 解析 YAML，未出现的字段保留默认值
func ParseEngineConfig(data []byte) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

// LoadEngineConfig 从文件加载引擎配置
//
// 参数:
//   - path: 配置文件路径；以 "data/" 开头且 embedded 已初始化时从嵌入数据读取
func LoadEngineConfig(path string) (*EngineConfig, error) {
	var (
		data []byte
		err  error
	)
	if embedded.IsInitialized() && embedded.Exists(path) {
		data, err = embedded.ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	return ParseEngineConfig(data)
}

// Validate 验证配置有效性
func (c *EngineConfig) Validate() error {
	if c.Canvas.Width < 0 || c.Canvas.Height < 0 {
		return fmt.Errorf("canvas size must not be negative, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.Margin < 0 || c.Canvas.Margin >= 1 {
		return fmt.Errorf("canvas margin must be in [0,1), got %v", c.Canvas.Margin)
	}
	if _, ok := utils.EasingByName(c.Easing); !ok {
		return fmt.Errorf("unknown easing %q", c.Easing)
	}
	if c.Trail.Capacity <= 0 {
		return fmt.Errorf("trail capacity must be positive, got %d", c.Trail.Capacity)
	}
	if c.Trail.MaxPoints < c.Trail.Capacity {
		return fmt.Errorf("trail maxPoints (%d) must be >= capacity (%d)", c.Trail.MaxPoints, c.Trail.Capacity)
	}
	if _, err := c.TrailSettings().Policy(); err != nil {
		return err
	}
	if c.Prerender.Steps < 2 {
		return fmt.Errorf("prerender steps must be >= 2, got %d", c.Prerender.Steps)
	}
	if c.Prerender.StepsPerTick <= 0 || c.Prerender.ProgressEvery <= 0 {
		return fmt.Errorf("prerender stepsPerTick and progressEvery must be positive")
	}
	if c.Prerender.MsPerBeat <= 0 {
		return fmt.Errorf("prerender msPerBeat must be positive, got %v", c.Prerender.MsPerBeat)
	}
	if c.Props.HalfLength <= 0 {
		return fmt.Errorf("props halfLength must be positive, got %v", c.Props.HalfLength)
	}
	for typ, n := range c.Props.TrackedEnds {
		if n < 1 || n > types.MaxEnds {
			return fmt.Errorf("trackedEnds for '%s' must be 1..%d, got %d", typ, types.MaxEnds, n)
		}
	}
	if c.Textures.GlyphSize <= 0 {
		return fmt.Errorf("glyphSize must be positive, got %v", c.Textures.GlyphSize)
	}
	return nil
}

// EasingFunc 返回配置的缓动函数
func (c *EngineConfig) EasingFunc() utils.EasingFunc {
	fn, _ := utils.EasingByName(c.Easing)
	return fn
}

// TrailSettings 返回配置中的默认轨迹设置
func (c *EngineConfig) TrailSettings() settings.TrailSettings {
	return settings.TrailSettings{Mode: c.Trail.Mode, FadeDurationMs: c.Trail.FadeDurationMs}
}

// TrackedEnds 返回道具类型的追踪端点数
// 未配置的类型使用 "default"，都没有时为 MaxEnds
func (c *EngineConfig) TrackedEnds(propType string) int {
	if n, ok := c.Props.TrackedEnds[propType]; ok {
		return n
	}
	if n, ok := c.Props.TrackedEnds["default"]; ok {
		return n
	}
	return types.MaxEnds
}

// PrerenderSettings 转换为预渲染器配置
func (c *EngineConfig) PrerenderSettings() prerender.Config {
	return prerender.Config{
		StepsPerTick:   c.Prerender.StepsPerTick,
		ProgressEvery:  c.Prerender.ProgressEvery,
		MsPerBeat:      c.Prerender.MsPerBeat,
		PropHalfLength: c.Props.HalfLength,
		TrailCapacity:  c.Trail.Capacity,
		TrailMaxPoints: c.Trail.MaxPoints,
	}
}
