package resources

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// GlyphRasterizer renders overlay labels into images using the embedded Go font.
type GlyphRasterizer struct {
	face    font.Face
	color   color.Color
	padding int
}

// NewGlyphRasterizer parses the Go Regular font at the given size.
func NewGlyphRasterizer(size float64, c color.Color) (*GlyphRasterizer, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return &GlyphRasterizer{face: face, color: c, padding: 4}, nil
}

// Rasterize draws label onto a transparent image sized to fit the text.
func (g *GlyphRasterizer) Rasterize(label string) (*image.RGBA, error) {
	if label == "" {
		return nil, fmt.Errorf("empty label")
	}
	m := g.face.Metrics()
	advance := font.MeasureString(g.face, label)

	w := advance.Ceil() + 2*g.padding
	h := (m.Ascent + m.Descent).Ceil() + 2*g.padding
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(g.color),
		Face: g.face,
		Dot:  fixed.P(g.padding, g.padding+m.Ascent.Ceil()),
	}
	d.DrawString(label)
	return img, nil
}

// Close releases the font face.
func (g *GlyphRasterizer) Close() error {
	return g.face.Close()
}
