package systems

import (
	"image"
	"image/color"
	"testing"

	"github.com/decker502/seqanim/pkg/render"
	"github.com/decker502/seqanim/pkg/sequence"
	"github.com/decker502/seqanim/pkg/types"
)

func staticMotion(loc types.Location, rot float64) sequence.Motion {
	return sequence.Motion{Type: types.MotionStatic, StartLoc: loc, EndLoc: loc, StartRot: rot, EndRot: rot}
}

// newTestSequence 起始位置蓝 N、红 S；唯一一拍蓝色从 N 直线移动到 S（2 拍）
func newTestSequence(id string) *sequence.Sequence {
	return &sequence.Sequence{
		ID: id,
		StartPosition: sequence.Beat{
			Blue: staticMotion(types.LocationN, 0),
			Red:  staticMotion(types.LocationS, 0),
		},
		Beats: []sequence.Beat{
			{
				Letter:   "A",
				Duration: 2,
				Blue: sequence.Motion{
					Type: types.MotionLinear, StartLoc: types.LocationN, EndLoc: types.LocationS,
				},
				Red: staticMotion(types.LocationS, 0),
			},
		},
	}
}

// fakeTextures 测试用纹理访问器
type fakeTextures struct {
	objects    [types.ObjectCount]render.Texture
	glyph      render.Texture
	glyphCalls []string
}

func (f *fakeTextures) ObjectTexture(obj types.ObjectID) render.Texture {
	return f.objects[obj]
}

func (f *fakeTextures) GlyphTexture(label string) render.Texture {
	f.glyphCalls = append(f.glyphCalls, label)
	return f.glyph
}

func solidTexture(t *testing.T, d render.Device, w, h int, c color.RGBA) render.Texture {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	tex, err := d.NewTexture(img)
	if err != nil {
		t.Fatalf("NewTexture error: %v", err)
	}
	return tex
}

func pixelAt(t *testing.T, s render.Surface, x, y int) color.RGBA {
	t.Helper()
	r, ok := s.(render.Readable)
	if !ok {
		t.Fatal("surface is not readable")
	}
	return r.Pixels().RGBAAt(x, y)
}

func colorNear(a, b color.RGBA) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= 2 && d(a.G, b.G) <= 2 && d(a.B, b.B) <= 2 && d(a.A, b.A) <= 2
}

var colorWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}
