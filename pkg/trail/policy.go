// Package trail 记录被追踪对象最近的位置，并按衰减策略输出可绘制的点集
//
// 每个 (对象, 端点) 拥有一个有界、按时间排序的环形缓冲区。
// 所有操作都在单线程渲染路径上调用，内部不加锁；
// 策略切换先暂存，在下一次 Record 或 BeginFrame 时整体生效，不会出现帧内半切换。
package trail

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy 策略字符串或参数无效
var ErrInvalidPolicy = errors.New("invalid trail policy")

// Mode 轨迹缓冲策略
type Mode int

const (
	// ModeOff 关闭捕获
	ModeOff Mode = iota
	// ModeFade 丢弃早于 FadeDurationMs 的点
	ModeFade
	// ModeLoopClear 播放从结尾回到开头时清空一次
	ModeLoopClear
	// ModePersistent 从不淘汰（仅受最大点数约束）
	ModePersistent
)

// String 返回策略名
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeFade:
		return "fade"
	case ModeLoopClear:
		return "loopClear"
	case ModePersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// Policy 轨迹缓冲策略及参数
type Policy struct {
	Mode           Mode
	FadeDurationMs float64
}

// Off 关闭捕获
func Off() Policy { return Policy{Mode: ModeOff} }

// Fade 按时长淡出
func Fade(durationMs float64) Policy { return Policy{Mode: ModeFade, FadeDurationMs: durationMs} }

// LoopClear 循环回绕时清空
func LoopClear() Policy { return Policy{Mode: ModeLoopClear} }

// Persistent 永久保留
func Persistent() Policy { return Policy{Mode: ModePersistent} }

// String 返回策略描述
func (p Policy) String() string {
	if p.Mode == ModeFade {
		return fmt.Sprintf("fade(%gms)", p.FadeDurationMs)
	}
	return p.Mode.String()
}

// Enabled 是否捕获轨迹
func (p Policy) Enabled() bool {
	return p.Mode != ModeOff
}

// ParsePolicy 解析策略名
// 名称不区分大小写；fade 需要正的时长
func ParsePolicy(mode string, fadeDurationMs float64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "off", "":
		return Off(), nil
	case "fade":
		if fadeDurationMs <= 0 || fadeDurationMs != fadeDurationMs {
			return Off(), fmt.Errorf("%w: fade duration must be positive, got %v", ErrInvalidPolicy, fadeDurationMs)
		}
		return Fade(fadeDurationMs), nil
	case "loopclear", "loop_clear":
		return LoopClear(), nil
	case "persistent":
		return Persistent(), nil
	default:
		return Off(), fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, mode)
	}
}

// FadeAlpha 返回点在 now 时刻的不透明度（0..1）
// 只有 fade 策略随时间衰减，其余策略恒为 1
func FadeAlpha(p Point, nowMs float64, policy Policy) float64 {
	if policy.Mode != ModeFade || policy.FadeDurationMs <= 0 {
		return 1
	}
	age := nowMs - p.TimestampMs
	if age <= 0 {
		return 1
	}
	a := 1 - age/policy.FadeDurationMs
	if a < 0 {
		return 0
	}
	return a
}
