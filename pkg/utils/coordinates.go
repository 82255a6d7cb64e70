// Package utils 提供通用工具函数
//
// coordinates.go 负责网格坐标到画布像素坐标的转换。
//
// # 坐标系统概述
//
//   - **网格坐标**：以网格中心为原点的单位坐标，外圈位置半径为 1
//   - **像素坐标**：相对于画布左上角，Y 向下
//
// # 核心转换公式
//
//	pixelX = centerX + gridX * scale
//	pixelY = centerY + gridY * scale
//	scale  = min(width, height) / 2 * (1 - margin)
//
// 画布尺寸变化时由资源管理器通知 GridMapper.Resize，
// 所有需要像素几何的消费者（轨迹、绘制）都通过同一个 GridMapper 计算。
package utils

// GridMapper 网格坐标 → 像素坐标映射
type GridMapper struct {
	width  int
	height int
	margin float64 // 边距比例，0..1
}

// NewGridMapper 创建映射器
func NewGridMapper(width, height int, margin float64) *GridMapper {
	if margin < 0 {
		margin = 0
	}
	if margin >= 1 {
		margin = 0.99
	}
	return &GridMapper{width: width, height: height, margin: margin}
}

// Resize 更新画布尺寸
func (g *GridMapper) Resize(width, height int) {
	g.width = width
	g.height = height
}

// Size 返回当前画布尺寸
func (g *GridMapper) Size() (int, int) {
	return g.width, g.height
}

// Scale 返回每个网格单位对应的像素数
func (g *GridMapper) Scale() float64 {
	side := g.width
	if g.height < side {
		side = g.height
	}
	return float64(side) / 2 * (1 - g.margin)
}

// Center 返回网格中心的像素坐标
func (g *GridMapper) Center() (float64, float64) {
	return float64(g.width) / 2, float64(g.height) / 2
}

// ToPixel 网格坐标转像素坐标
func (g *GridMapper) ToPixel(x, y float64) (float64, float64) {
	cx, cy := g.Center()
	s := g.Scale()
	return cx + x*s, cy + y*s
}

// ToGrid 像素坐标转网格坐标
func (g *GridMapper) ToGrid(px, py float64) (float64, float64) {
	s := g.Scale()
	if s == 0 {
		return 0, 0
	}
	cx, cy := g.Center()
	return (px - cx) / s, (py - cy) / s
}
