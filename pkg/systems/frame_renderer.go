package systems

import (
	"image/color"

	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/trail"
	"github.com/decker502/seqanim/pkg/types"
)

// Style 绘制样式
type Style struct {
	Background   color.RGBA
	Grid         color.RGBA
	GridPoint    color.RGBA
	ProgressBack color.RGBA
	ProgressFill color.RGBA
	ObjectColors [types.ObjectCount]color.RGBA

	GridLineWidth  float64 // 像素
	TrailWidth     float64 // 像素
	PropWidth      float64 // 像素
	PropHalfLength float64 // 网格单位
	EndRadius      float64 // 网格单位
	ProgressHeight float64 // 像素
}

// DefaultStyle 默认样式
func DefaultStyle() Style {
	return Style{
		Background:   color.RGBA{R: 18, G: 20, B: 28, A: 255},
		Grid:         color.RGBA{R: 70, G: 76, B: 96, A: 255},
		GridPoint:    color.RGBA{R: 120, G: 128, B: 150, A: 255},
		ProgressBack: color.RGBA{R: 40, G: 44, B: 58, A: 255},
		ProgressFill: color.RGBA{R: 230, G: 200, B: 90, A: 255},
		ObjectColors: [types.ObjectCount]color.RGBA{
			types.Blue: {R: 60, G: 130, B: 255, A: 255},
			types.Red:  {R: 240, G: 70, B: 70, A: 255},
		},
		GridLineWidth:  1,
		TrailWidth:     3,
		PropWidth:      6,
		PropHalfLength: 0.35,
		EndRadius:      0.06,
		ProgressHeight: 4,
	}
}

// 网格线段（网格单位）：外框、十字与对角线
var gridSegments = [][4]float64{
	{-1, -1, 1, -1}, {1, -1, 1, 1}, {1, 1, -1, 1}, {-1, 1, -1, -1},
	{-1, 0, 1, 0}, {0, -1, 0, 1},
	{-0.7071, -0.7071, 0.7071, 0.7071}, {-0.7071, 0.7071, 0.7071, -0.7071},
}

var gridPoints = []types.Location{
	types.LocationCenter, types.LocationN, types.LocationNE, types.LocationE, types.LocationSE,
	types.LocationS, types.LocationSW, types.LocationW, types.LocationNW,
}

// FrameRenderer 共享的帧绘制例程
//
// 绘制顺序固定：背景/网格 → 轨迹（从旧到新） → 对象 → 叠加层（标签、进度）。
// 实时渲染和预渲染都调用同一个 Draw，保证结果逐像素一致。
type FrameRenderer struct {
	style Style
}

// NewFrameRenderer 创建绘制例程
func NewFrameRenderer(style Style) *FrameRenderer {
	return &FrameRenderer{style: style}
}

// Style 返回当前样式
func (r *FrameRenderer) Style() Style {
	return r.style
}

// Draw 绘制一帧
func (r *FrameRenderer) Draw(dst render.Surface, req *RenderRequest) {
	if dst == nil || dst.Disposed() || req == nil {
		return
	}
	r.drawBackground(dst, req)
	r.drawTrails(dst, req)
	r.drawObjects(dst, req)
	r.drawOverlay(dst, req)
}

func (r *FrameRenderer) drawBackground(dst render.Surface, req *RenderRequest) {
	dst.Clear(r.style.Background)
	if !req.Flags.Grid {
		return
	}
	m := &req.Mapper
	for _, s := range gridSegments {
		x0, y0 := m.ToPixel(s[0], s[1])
		x1, y1 := m.ToPixel(s[2], s[3])
		dst.StrokeLine(x0, y0, x1, y1, r.style.GridLineWidth, r.style.Grid)
	}
	radius := r.style.EndRadius * m.Scale() * 0.5
	for _, loc := range gridPoints {
		gx, gy, _ := loc.Coords()
		x, y := m.ToPixel(gx, gy)
		dst.FillCircle(x, y, radius, r.style.GridPoint)
	}
}

// drawTrails 按时间顺序绘制每个端点的折线，新的线段覆盖旧的
func (r *FrameRenderer) drawTrails(dst render.Surface, req *RenderRequest) {
	if !req.Flags.Trails {
		return
	}
	for _, obj := range types.Objects {
		if !req.Objects[obj].Visible {
			continue
		}
		points := req.Trails[obj]
		base := r.style.ObjectColors[obj]

		var last [types.MaxEnds]trail.Point
		var seen [types.MaxEnds]bool
		for _, p := range points {
			e := p.End
			if e < 0 || int(e) >= types.MaxEnds {
				continue
			}
			if seen[e] {
				prev := last[e]
				a := trail.FadeAlpha(p, req.NowMs, req.TrailPolicy)
				if a > 0 {
					dst.StrokeLine(prev.X, prev.Y, p.X, p.Y, r.style.TrailWidth, scaleAlpha(base, a*0.8))
				}
			}
			last[e] = p
			seen[e] = true
		}
	}
}

func (r *FrameRenderer) drawObjects(dst render.Surface, req *RenderRequest) {
	m := &req.Mapper
	scale := m.Scale()
	for _, obj := range types.Objects {
		od := req.Objects[obj]
		if !od.Visible {
			continue
		}
		if od.Texture != nil && !od.Texture.Disposed() {
			_, th := od.Texture.Size()
			s := 1.0
			if th > 0 {
				s = 2 * r.style.PropHalfLength * scale / float64(th)
			}
			dst.DrawTexture(od.Texture, render.DrawOptions{X: od.X, Y: od.Y, Rotation: od.Pose.Rotation, Scale: s})
			continue
		}

		// 占位图形：道具杆 + 两端圆点，主端点更大
		c := r.style.ObjectColors[obj]
		p, q := PropEnds(od.Pose, r.style.PropHalfLength)
		px, py := m.ToPixel(p[0], p[1])
		qx, qy := m.ToPixel(q[0], q[1])
		dst.StrokeLine(qx, qy, px, py, r.style.PropWidth, c)
		dst.FillCircle(px, py, r.style.EndRadius*scale*1.4, c)
		dst.FillCircle(qx, qy, r.style.EndRadius*scale, c)
	}
}

func (r *FrameRenderer) drawOverlay(dst render.Surface, req *RenderRequest) {
	w, h := float64(req.Width), float64(req.Height)
	if req.Flags.Glyph && req.Glyph != nil && !req.Glyph.Disposed() {
		_, gh := req.Glyph.Size()
		dst.DrawTexture(req.Glyph, render.DrawOptions{X: w / 2, Y: float64(gh)/2 + 8})
	}
	bh := r.style.ProgressHeight
	if bh <= 0 {
		return
	}
	dst.FillRect(0, h-bh, w, bh, r.style.ProgressBack)
	if req.Progress > 0 {
		dst.FillRect(0, h-bh, w*req.Progress, bh, r.style.ProgressFill)
	}
}

// scaleAlpha 按比例缩放预乘颜色
func scaleAlpha(c color.RGBA, a float64) color.RGBA {
	if a >= 1 {
		return c
	}
	if a <= 0 {
		return color.RGBA{}
	}
	return color.RGBA{
		R: uint8(float64(c.R)*a + 0.5),
		G: uint8(float64(c.G)*a + 0.5),
		B: uint8(float64(c.B)*a + 0.5),
		A: uint8(float64(c.A)*a + 0.5),
	}
}
