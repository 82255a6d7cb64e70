package types

import "strings"

// Location 网格上的离散位置
// 坐标系为屏幕坐标：X 向右，Y 向下，北方为 (0,-1)
type Location int

const (
	// LocationUnknown 未知位置（退化几何）
	LocationUnknown Location = iota
	LocationCenter
	LocationN
	LocationNE
	LocationE
	LocationSE
	LocationS
	LocationSW
	LocationW
	LocationNW
)

// diagonal 对角方向的单位坐标分量（1/√2）
const diagonal = 0.7071067811865476

var locationCoords = map[Location][2]float64{
	LocationCenter: {0, 0},
	LocationN:      {0, -1},
	LocationNE:     {diagonal, -diagonal},
	LocationE:      {1, 0},
	LocationSE:     {diagonal, diagonal},
	LocationS:      {0, 1},
	LocationSW:     {-diagonal, diagonal},
	LocationW:      {-1, 0},
	LocationNW:     {-diagonal, -diagonal},
}

var locationNames = map[Location]string{
	LocationCenter: "center",
	LocationN:      "n",
	LocationNE:     "ne",
	LocationE:      "e",
	LocationSE:     "se",
	LocationS:      "s",
	LocationSW:     "sw",
	LocationW:      "w",
	LocationNW:     "nw",
}

// Coords 返回位置在单位网格上的坐标
// 第二个返回值为 false 表示位置无效
func (l Location) Coords() (x, y float64, ok bool) {
	c, ok := locationCoords[l]
	if !ok {
		return 0, 0, false
	}
	return c[0], c[1], true
}

// String 返回位置的字符串表示
func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLocation 解析位置字符串（不区分大小写）
func ParseLocation(s string) Location {
	s = strings.ToLower(strings.TrimSpace(s))
	for loc, name := range locationNames {
		if name == s {
			return loc
		}
	}
	return LocationUnknown
}

// MotionType 运动类型
type MotionType int

const (
	// MotionUnknown 未知运动类型（退化几何）
	MotionUnknown MotionType = iota
	// MotionStatic 位置不变，仅朝向可能旋转
	MotionStatic
	// MotionLinear 直线扫过
	MotionLinear
	// MotionRotational 绕网格中心的弧线扫过
	MotionRotational
)

// String 返回运动类型的字符串表示
func (m MotionType) String() string {
	switch m {
	case MotionStatic:
		return "static"
	case MotionLinear:
		return "linear"
	case MotionRotational:
		return "rotational"
	default:
		return "unknown"
	}
}

// ParseMotionType 解析运动类型字符串
func ParseMotionType(s string) MotionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static":
		return MotionStatic
	case "linear", "dash":
		return MotionLinear
	case "rotational", "pro", "anti":
		return MotionRotational
	default:
		return MotionUnknown
	}
}

// RotationDirection 声明的旋转方向
type RotationDirection int

const (
	// NoRotation 未声明方向，使用最短弧
	NoRotation RotationDirection = iota
	// Clockwise 顺时针（屏幕坐标下角度增大）
	Clockwise
	// CounterClockwise 逆时针（屏幕坐标下角度减小）
	CounterClockwise
)

// String 返回旋转方向的字符串表示
func (d RotationDirection) String() string {
	switch d {
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	default:
		return "none"
	}
}

// Sign 返回方向符号：顺时针 +1，逆时针 -1，无方向 0
func (d RotationDirection) Sign() float64 {
	switch d {
	case Clockwise:
		return 1
	case CounterClockwise:
		return -1
	default:
		return 0
	}
}

// ParseRotationDirection 解析旋转方向字符串
func ParseRotationDirection(s string) RotationDirection {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cw", "clockwise":
		return Clockwise
	case "ccw", "counterclockwise", "counter_clockwise":
		return CounterClockwise
	default:
		return NoRotation
	}
}
