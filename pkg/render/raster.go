package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/vector"
)

// ErrInvalidSize 表面尺寸非法
var ErrInvalidSize = errors.New("invalid surface size")

// circleKappa 用四段三次贝塞尔近似圆的控制点系数
const circleKappa = 0.5522847498307936

// RasterDevice 软件光栅化设备
// 输出只依赖输入参数，同样的绘制序列得到逐像素相同的结果
type RasterDevice struct {
	stats *Stats
}

// NewRasterDevice 创建软件光栅化设备
// stats 可为 nil
func NewRasterDevice(stats *Stats) *RasterDevice {
	return &RasterDevice{stats: stats}
}

// Name 返回设备名
func (d *RasterDevice) Name() string { return "raster" }

// NewSurface 创建透明的 RGBA 表面
func (d *RasterDevice) NewSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	d.stats.alloc()
	return &rasterSurface{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		z:     vector.NewRasterizer(width, height),
		stats: d.stats,
	}, nil
}

// NewTexture 将图像拷贝为 RGBA 纹理
func (d *RasterDevice) NewTexture(img image.Image) (Texture, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidSize
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	d.stats.alloc()
	return &rasterSurface{
		img:   rgba,
		z:     vector.NewRasterizer(b.Dx(), b.Dy()),
		stats: d.stats,
	}, nil
}

// rasterSurface 同时作为纹理和表面
type rasterSurface struct {
	img      *image.RGBA
	z        *vector.Rasterizer
	stats    *Stats
	disposed bool
}

func (s *rasterSurface) Size() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *rasterSurface) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.img = nil
	s.z = nil
	s.stats.free()
}

func (s *rasterSurface) Disposed() bool { return s.disposed }

// Pixels 返回底层图像（只读使用）
func (s *rasterSurface) Pixels() *image.RGBA { return s.img }

func (s *rasterSurface) Clear(c color.Color) {
	if s.disposed {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func (s *rasterSurface) FillRect(x, y, w, h float64, c color.Color) {
	if s.disposed || w <= 0 || h <= 0 {
		return
	}
	s.begin()
	s.z.MoveTo(float32(x), float32(y))
	s.z.LineTo(float32(x+w), float32(y))
	s.z.LineTo(float32(x+w), float32(y+h))
	s.z.LineTo(float32(x), float32(y+h))
	s.z.ClosePath()
	s.fill(c)
}

func (s *rasterSurface) FillCircle(cx, cy, r float64, c color.Color) {
	if s.disposed || r <= 0 {
		return
	}
	k := r * circleKappa
	s.begin()
	s.z.MoveTo(float32(cx+r), float32(cy))
	s.z.CubeTo(float32(cx+r), float32(cy+k), float32(cx+k), float32(cy+r), float32(cx), float32(cy+r))
	s.z.CubeTo(float32(cx-k), float32(cy+r), float32(cx-r), float32(cy+k), float32(cx-r), float32(cy))
	s.z.CubeTo(float32(cx-r), float32(cy-k), float32(cx-k), float32(cy-r), float32(cx), float32(cy-r))
	s.z.CubeTo(float32(cx+k), float32(cy-r), float32(cx+r), float32(cy-k), float32(cx+r), float32(cy))
	s.z.ClosePath()
	s.fill(c)
}

func (s *rasterSurface) StrokeLine(x0, y0, x1, y1, width float64, c color.Color) {
	if s.disposed || width <= 0 {
		return
	}
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		s.FillCircle(x0, y0, width/2, c)
		return
	}
	// 线段两侧的法向偏移
	nx, ny := -dy/length*width/2, dx/length*width/2
	s.begin()
	s.z.MoveTo(float32(x0+nx), float32(y0+ny))
	s.z.LineTo(float32(x1+nx), float32(y1+ny))
	s.z.LineTo(float32(x1-nx), float32(y1-ny))
	s.z.LineTo(float32(x0-nx), float32(y0-ny))
	s.z.ClosePath()
	s.fill(c)
}

func (s *rasterSurface) DrawTexture(tex Texture, opts DrawOptions) {
	src, ok := tex.(*rasterSurface)
	if s.disposed || !ok || src.disposed {
		return
	}
	w, h := src.Size()
	scale := normalizeScale(opts.Scale)
	rad := opts.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad)*scale, math.Sin(rad)*scale
	hw, hh := float64(w)/2, float64(h)/2

	// 源坐标 → 目标坐标：以纹理中心为锚点缩放、旋转后平移
	m := f64.Aff3{
		cos, -sin, opts.X - (cos*hw - sin*hh),
		sin, cos, opts.Y - (sin*hw + cos*hh),
	}

	var drawOpts *xdraw.Options
	if alpha := normalizeAlpha(opts.Alpha); alpha < 1 {
		drawOpts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(alpha*255 + 0.5)})}
	}
	xdraw.BiLinear.Transform(s.img, m, src.img, src.img.Bounds(), xdraw.Over, drawOpts)
}

func (s *rasterSurface) DrawSurface(src Surface) {
	if s.disposed || src == nil || src.Disposed() {
		return
	}
	r, ok := src.(Readable)
	if !ok || r.Pixels() == nil {
		return
	}
	pix := r.Pixels()
	draw.Draw(s.img, pix.Bounds(), pix, image.Point{}, draw.Over)
}

func (s *rasterSurface) begin() {
	b := s.img.Bounds()
	s.z.Reset(b.Dx(), b.Dy())
	s.z.DrawOp = draw.Over
}

func (s *rasterSurface) fill(c color.Color) {
	s.z.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{})
}
