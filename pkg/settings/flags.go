package settings

import (
	"fmt"

	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
)

// Flags 可见性开关
type Flags struct {
	Grid        bool `yaml:"grid"`
	Trails      bool `yaml:"trails"`
	BlueVisible bool `yaml:"blueVisible"`
	RedVisible  bool `yaml:"redVisible"`
	Glyph       bool `yaml:"glyph"`
}

// DefaultFlags 默认全部打开
func DefaultFlags() Flags {
	return Flags{Grid: true, Trails: true, BlueVisible: true, RedVisible: true, Glyph: true}
}

// ObjectVisible 返回对象是否可见
func (f Flags) ObjectVisible(obj types.ObjectID) bool {
	switch obj {
	case types.Blue:
		return f.BlueVisible
	case types.Red:
		return f.RedVisible
	default:
		return false
	}
}

// FlagNames 可按名称切换的开关
var FlagNames = []string{"grid", "trails", "blue", "red", "glyph"}

// Toggle 按名称翻转一个开关
func (f Flags) Toggle(name string) (Flags, error) {
	switch name {
	case "grid":
		f.Grid = !f.Grid
	case "trails":
		f.Trails = !f.Trails
	case "blue":
		f.BlueVisible = !f.BlueVisible
	case "red":
		f.RedVisible = !f.RedVisible
	case "glyph":
		f.Glyph = !f.Glyph
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
	}
	return f, nil
}

// TrailSettings 轨迹策略设置
type TrailSettings struct {
	Mode           string  `yaml:"mode"`
	FadeDurationMs float64 `yaml:"fadeDurationMs"`
}

// DefaultTrailSettings 默认 800ms 渐隐
func DefaultTrailSettings() TrailSettings {
	return TrailSettings{Mode: "fade", FadeDurationMs: 800}
}

// Policy 转换为轨迹策略
func (t TrailSettings) Policy() (trail.Policy, error) {
	return trail.ParsePolicy(t.Mode, t.FadeDurationMs)
}
