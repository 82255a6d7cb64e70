package render

import (
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// EbitenDevice 基于 Ebitengine 的 GPU 设备
//
// 只能在游戏循环所在的线程上使用（Update/Draw 内）。
type EbitenDevice struct {
	stats *Stats
}

// NewEbitenDevice 创建 GPU 设备
func NewEbitenDevice(stats *Stats) *EbitenDevice {
	return &EbitenDevice{stats: stats}
}

// Name 返回设备名
func (d *EbitenDevice) Name() string { return "ebiten" }

// NewSurface 分配离屏图像
func (d *EbitenDevice) NewSurface(width, height int) (Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}
	d.stats.alloc()
	return &ebitenSurface{img: ebiten.NewImage(width, height), w: width, h: height, stats: d.stats}, nil
}

// NewTexture 上传图像到 GPU
func (d *EbitenDevice) NewTexture(img image.Image) (Texture, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrInvalidSize
	}
	b := img.Bounds()
	d.stats.alloc()
	return &ebitenSurface{img: ebiten.NewImageFromImage(img), w: b.Dx(), h: b.Dy(), stats: d.stats}, nil
}

// EbitenImage 返回表面或纹理底层的 *ebiten.Image
// 不是 ebiten 资源或已释放时返回 nil
func EbitenImage(t Texture) *ebiten.Image {
	s, ok := t.(*ebitenSurface)
	if !ok || s.disposed {
		return nil
	}
	return s.img
}

type ebitenSurface struct {
	img      *ebiten.Image
	w, h     int
	stats    *Stats
	disposed bool
}

func (s *ebitenSurface) Size() (int, int) { return s.w, s.h }

func (s *ebitenSurface) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.img.Deallocate()
	s.img = nil
	s.stats.free()
}

func (s *ebitenSurface) Disposed() bool { return s.disposed }

// Pixels 回读像素，仅在游戏循环运行后可用
func (s *ebitenSurface) Pixels() *image.RGBA {
	if s.disposed {
		return nil
	}
	rgba := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	s.img.ReadPixels(rgba.Pix)
	return rgba
}

func (s *ebitenSurface) Clear(c color.Color) {
	if s.disposed {
		return
	}
	s.img.Fill(c)
}

func (s *ebitenSurface) FillRect(x, y, w, h float64, c color.Color) {
	if s.disposed || w <= 0 || h <= 0 {
		return
	}
	vector.DrawFilledRect(s.img, float32(x), float32(y), float32(w), float32(h), c, true)
}

func (s *ebitenSurface) FillCircle(cx, cy, r float64, c color.Color) {
	if s.disposed || r <= 0 {
		return
	}
	vector.DrawFilledCircle(s.img, float32(cx), float32(cy), float32(r), c, true)
}

func (s *ebitenSurface) StrokeLine(x0, y0, x1, y1, width float64, c color.Color) {
	if s.disposed || width <= 0 {
		return
	}
	vector.StrokeLine(s.img, float32(x0), float32(y0), float32(x1), float32(y1), float32(width), c, true)
}

func (s *ebitenSurface) DrawTexture(tex Texture, opts DrawOptions) {
	src, ok := tex.(*ebitenSurface)
	if s.disposed || !ok || src.disposed {
		return
	}
	scale := normalizeScale(opts.Scale)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(src.w)/2, -float64(src.h)/2)
	op.GeoM.Scale(scale, scale)
	op.GeoM.Rotate(opts.Rotation * math.Pi / 180)
	op.GeoM.Translate(opts.X, opts.Y)
	op.ColorScale.ScaleAlpha(float32(normalizeAlpha(opts.Alpha)))
	op.Filter = ebiten.FilterLinear
	s.img.DrawImage(src.img, op)
}

func (s *ebitenSurface) DrawSurface(src Surface) {
	if s.disposed || src == nil || src.Disposed() {
		return
	}
	if es, ok := src.(*ebitenSurface); ok {
		s.img.DrawImage(es.img, nil)
		return
	}
	// 软件表面（例如导入的预渲染帧）先上传
	if r, ok := src.(Readable); ok && r.Pixels() != nil {
		tmp := ebiten.NewImageFromImage(r.Pixels())
		s.img.DrawImage(tmp, nil)
		tmp.Deallocate()
	}
}
