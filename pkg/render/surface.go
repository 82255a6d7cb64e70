// Package render 定义绘制后端抽象
//
// 引擎的绘制例程只依赖 Surface / Texture / Device 接口，
// 具体实现有两种：
//   - EbitenDevice：基于 Ebitengine 的 GPU 纹理，用于实时播放
//   - RasterDevice：基于 image.RGBA 的软件光栅化，结果确定，用于无头导出和测试
//
// 所有 GPU 侧资源都必须通过 Dispose 显式释放；Stats 统计存活资源数量，
// 用于验证长时间播放不会累积泄漏。
package render

import (
	"image"
	"image/color"
	"sync/atomic"
)

// Texture 可被绘制的只读图像资源
type Texture interface {
	// Size 返回像素尺寸
	Size() (width, height int)
	// Dispose 释放底层资源，可重复调用
	Dispose()
	// Disposed 是否已释放
	Disposed() bool
}

// DrawOptions 纹理绘制参数
type DrawOptions struct {
	X, Y     float64 // 纹理中心的目标像素坐标
	Rotation float64 // 绕中心旋转（度，顺时针）
	Scale    float64 // 0 视为 1
	Alpha    float64 // 0..1，0 视为 1（完全透明的对象直接不绘制）
}

// Surface 可绘制的目标（画布或预渲染帧）
type Surface interface {
	Texture

	Clear(c color.Color)
	FillRect(x, y, w, h float64, c color.Color)
	FillCircle(cx, cy, r float64, c color.Color)
	StrokeLine(x0, y0, x1, y1, width float64, c color.Color)
	DrawTexture(tex Texture, opts DrawOptions)
	// DrawSurface 将另一个表面按原尺寸拷贝到左上角
	DrawSurface(src Surface)
}

// Readable 支持像素回读的表面
type Readable interface {
	Pixels() *image.RGBA
}

// Device 创建表面与纹理的工厂
type Device interface {
	Name() string
	NewSurface(width, height int) (Surface, error)
	NewTexture(img image.Image) (Texture, error)
}

// Stats 存活资源计数
type Stats struct {
	live atomic.Int64
}

func (s *Stats) alloc() {
	if s != nil {
		s.live.Add(1)
	}
}

func (s *Stats) free() {
	if s != nil {
		s.live.Add(-1)
	}
}

// Live 返回当前存活的资源数量
func (s *Stats) Live() int64 {
	if s == nil {
		return 0
	}
	return s.live.Load()
}

func normalizeScale(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

func normalizeAlpha(a float64) float64 {
	if a <= 0 || a > 1 {
		return 1
	}
	return a
}
