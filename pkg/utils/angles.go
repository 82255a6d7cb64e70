package utils

import "math"

// 角度工具
//
// 所有角度单位为度，屏幕坐标系（Y 向下）中角度增大即顺时针。

// NormalizeDegrees 将角度归一化到 [0, 360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -0 与 360 的边界
	if deg >= 360 || deg == 0 {
		return 0
	}
	return deg
}

// ShortestArc 返回从 from 到 to 的最短有符号弧（-180, 180]
func ShortestArc(from, to float64) float64 {
	d := NormalizeDegrees(to - from)
	if d > 180 {
		d -= 360
	}
	return d
}

// DirectedArc 返回沿指定方向从 from 到 to 的有符号弧
//
// sign > 0 顺时针，结果 ∈ [0, 360)；sign < 0 逆时针，结果 ∈ (-360, 0]；
// sign == 0 退化为 ShortestArc。
// fullTurnWhenEqual 为 true 时，起止角相同返回整圈（±360）而不是 0。
func DirectedArc(from, to, sign float64, fullTurnWhenEqual bool) float64 {
	if sign == 0 {
		return ShortestArc(from, to)
	}
	d := NormalizeDegrees(to - from)
	if sign < 0 {
		d = -NormalizeDegrees(from - to)
	}
	if d == 0 && fullTurnWhenEqual {
		return 360 * math.Copysign(1, sign)
	}
	return d
}

// PolarDegrees 返回点 (x, y) 的极角（度，[0, 360)）与半径
func PolarDegrees(x, y float64) (angle, radius float64) {
	radius = math.Hypot(x, y)
	if radius == 0 {
		return 0, 0
	}
	return NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi), radius
}

// FromPolarDegrees 极坐标转直角坐标
func FromPolarDegrees(angle, radius float64) (x, y float64) {
	rad := angle * math.Pi / 180
	return radius * math.Cos(rad), radius * math.Sin(rad)
}

// IsFinite 判断浮点数既不是 NaN 也不是无穷
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
