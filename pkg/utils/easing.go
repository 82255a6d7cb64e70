package utils

import (
	"math"
	"strings"
)

// Easing Functions (缓动函数)
//
// 缓动函数控制节拍内的时间曲线。
// 所有函数接受进度值 t ∈ [0, 1]，返回缓动后的值 ∈ [0, 1]，
// 且满足 f(0) = 0、f(1) = 1，保证路径端点不漂移。
//
// 参考：https://easings.net/

// EasingFunc 缓动函数类型
type EasingFunc func(t float64) float64

// EaseLinear 线性缓动（无缓动）
func EaseLinear(t float64) float64 {
	return t
}

// EaseInOutCubic 三次方缓入缓出
// 公式：
//
//	t < 0.5: f(t) = 4t³
//	t >= 0.5: f(t) = 1 - (-2t + 2)³ / 2
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// EaseInOutQuad 二次方缓入缓出
func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// EaseInOutSine 正弦缓入缓出
func EaseInOutSine(t float64) float64 {
	return -(math.Cos(math.Pi*t) - 1) / 2
}

// EasingByName 按名称查找缓动函数
// 未知名称返回线性缓动和 false
func EasingByName(name string) (EasingFunc, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return EaseLinear, true
	case "inoutcubic", "in_out_cubic":
		return EaseInOutCubic, true
	case "inoutquad", "in_out_quad":
		return EaseInOutQuad, true
	case "inoutsine", "in_out_sine":
		return EaseInOutSine, true
	default:
		return EaseLinear, false
	}
}

// Lerp 线性插值
// t=0 返回 a，t=1 返回 b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp01 将值限制在 [0, 1]，NaN 视为 1
func Clamp01(t float64) float64 {
	if math.IsNaN(t) || t > 1 {
		return 1
	}
	if t < 0 {
		return 0
	}
	return t
}
