package framebuffer

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mrjoshuak/go-openexr/exr"
	"github.com/mrjoshuak/go-openexr/half"
)

// WriteEXR writes the target as a scanline OpenEXR file with half-float R, G, B, A
// channels and a full-float Z depth channel, ZIP compressed. The top image row is
// written first.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: any encoding or I/O error
func (t *Target) WriteEXR(path string) error {
	w, h := t.Width, t.Height

	hdr := exr.NewScanlineHeader(w, h)
	hdr.SetCompression(exr.CompressionZIP)

	channels := exr.NewChannelList()
	for _, name := range []string{"R", "G", "B", "A"} {
		channels.Add(exr.Channel{Name: name, Type: exr.PixelTypeHalf, XSampling: 1, YSampling: 1})
	}
	channels.Add(exr.Channel{Name: "Z", Type: exr.PixelTypeFloat, XSampling: 1, YSampling: 1})
	hdr.SetChannels(channels)

	fb := exr.NewFrameBuffer()
	for _, name := range []string{"R", "G", "B", "A"} {
		fb.Set(name, exr.NewSlice(exr.PixelTypeHalf, make([]byte, w*h*2), w, h))
	}
	fb.Set("Z", exr.NewSlice(exr.PixelTypeFloat, make([]byte, w*h*4), w, h))

	r, g, b, a, z := fb.Get("R"), fb.Get("G"), fb.Get("B"), fb.Get("A"), fb.Get("Z")
	for y := 0; y < h; y++ {
		row := h - 1 - y
		for x := 0; x < w; x++ {
			c, d := t.At(x, y)
			r.SetHalf(x, row, half.FromFloat32(c[0]))
			g.SetHalf(x, row, half.FromFloat32(c[1]))
			b.SetHalf(x, row, half.FromFloat32(c[2]))
			a.SetHalf(x, row, half.FromFloat32(c[3]))
			z.SetFloat32(x, row, d)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create exr: %w", err)
	}
	return finishFile(f, encodeEXR(f, hdr, fb))
}

func encodeEXR(w io.WriteSeeker, hdr *exr.Header, fb *exr.FrameBuffer) error {
	sw, err := exr.NewScanlineWriter(w, hdr)
	if err != nil {
		return fmt.Errorf("create scanline writer: %w", err)
	}
	sw.SetFrameBuffer(fb)
	if err := sw.WritePixels(int(hdr.DataWindow().Min.Y), int(hdr.DataWindow().Max.Y)); err != nil {
		return fmt.Errorf("write exr pixels: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("finish exr: %w", err)
	}
	return nil
}

// finishFile closes c after a write. The write error wins; otherwise the close
// error is returned, since a failed close can mean unflushed data.
func finishFile(c io.Closer, writeErr error) error {
	closeErr := c.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}
	return nil
}

// ReadEXR loads a file written by WriteEXR back into a target. Missing color
// channels read as zero and a missing Z channel reads as depth 1.
//
// Parameters:
//   - path: the source file
//
// Returns:
//   - *Target: the decoded target
//   - error: any decoding or I/O error
func ReadEXR(path string) (*Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exr: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat exr: %w", err)
	}
	file, err := exr.OpenReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse exr: %w", err)
	}

	hdr := file.Header(0)
	if hdr == nil {
		return nil, fmt.Errorf("exr %s has no header", path)
	}
	dw := hdr.DataWindow()
	w, h := int(dw.Width()), int(dw.Height())

	present := map[string]bool{}
	for i := 0; i < hdr.Channels().Len(); i++ {
		present[hdr.Channels().At(i).Name] = true
	}

	fb := exr.NewFrameBuffer()
	for _, name := range []string{"R", "G", "B", "A", "Z"} {
		if present[name] {
			fb.Set(name, exr.NewSlice(exr.PixelTypeFloat, make([]byte, w*h*4), w, h))
		}
	}

	reader, err := exr.NewScanlineReader(file)
	if err != nil {
		return nil, fmt.Errorf("create scanline reader: %w", err)
	}
	reader.SetFrameBuffer(fb)
	if err := reader.ReadPixels(int(dw.Min.Y), int(dw.Max.Y)); err != nil {
		return nil, fmt.Errorf("read exr pixels: %w", err)
	}

	read := func(name string, x, y int, fallback float32) float32 {
		if s := fb.Get(name); s != nil {
			return s.GetFloat32(x, y)
		}
		return fallback
	}

	t := NewTarget(w, h)
	for row := 0; row < h; row++ {
		y := h - 1 - row
		for x := 0; x < w; x++ {
			c := mgl32.Vec4{read("R", x, row, 0), read("G", x, row, 0), read("B", x, row, 0), read("A", x, row, 0)}
			t.Set(x, y, c, read("Z", x, row, 1))
		}
	}
	return t, nil
}
