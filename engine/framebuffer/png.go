package framebuffer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Image composites the target over a solid background, applies exposure and a
// 2.2 gamma, and returns an 8-bit image with the top row first.
//
// Parameters:
//   - background: the linear RGB the fog is composited over
//   - exposure: linear multiplier applied before gamma
//
// Returns:
//   - *image.NRGBA: the preview image
func (t *Target) Image(background mgl32.Vec3, exposure float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		row := t.Height - 1 - y
		for x := 0; x < t.Width; x++ {
			c, _ := t.At(x, y)
			a := common.Saturate(c.W())
			rgb := c.Vec3().Add(background.Mul(1 - a)).Mul(exposure)
			img.SetNRGBA(x, row, color.NRGBA{
				R: toByte(rgb[0]),
				G: toByte(rgb[1]),
				B: toByte(rgb[2]),
				A: 255,
			})
		}
	}
	return img
}

// EncodePNG writes the composited preview as PNG to w.
func (t *Target) EncodePNG(w io.Writer, background mgl32.Vec3, exposure float32) error {
	if err := png.Encode(w, t.Image(background, exposure)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WritePNG writes the composited preview to path.
func (t *Target) WritePNG(path string, background mgl32.Vec3, exposure float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	return finishFile(f, t.EncodePNG(f, background, exposure))
}

func toByte(v float32) uint8 {
	v = math32.Pow(common.Saturate(v), 1/2.2)
	return uint8(v*255 + 0.5)
}
