package splat

import (
	"image"
	"image/png"
	"os"
)

// ImageBuf wraps a float image produced by the rasterizer for export. Values
// are clamped to [0, 1] on conversion; only the first three channels are
// used, with missing channels read as zero.
type ImageBuf struct {
	data     []float64
	width    int
	height   int
	channels int
}

// NewImageBuf wraps a row-major height x width x channels float image.
func NewImageBuf(data []float64, width, height, channels int) *ImageBuf {
	return &ImageBuf{data: data, width: width, height: height, channels: channels}
}

// Buf returns the render's image wrapped for export.
func (r *Render) Buf() *ImageBuf {
	return NewImageBuf(r.Image, r.Width, r.Height, r.Channels)
}

// Buf returns the render's image wrapped for export.
func (r *PlanarRender) Buf() *ImageBuf {
	return NewImageBuf(r.Image, r.Width, r.Height, r.Channels)
}

// Width returns the image width in pixels.
func (b *ImageBuf) Width() int { return b.width }

// Height returns the image height in pixels.
func (b *ImageBuf) Height() int { return b.height }

// At returns the float channels of one pixel, aliasing the buffer.
func (b *ImageBuf) At(x, y int) []float64 {
	i := (y*b.width + x) * b.channels
	return b.data[i : i+b.channels]
}

// ToImage converts the buffer to a standard opaque RGBA image.
func (b *ImageBuf) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			px := b.At(x, y)
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := 0.0
				if c < b.channels {
					v = px[c]
				}
				img.Pix[i+c] = uint8(clamp255(v * 255))
			}
			img.Pix[i+3] = 255
		}
	}
	return img
}

// SavePNG writes the buffer to a PNG file.
func (b *ImageBuf) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, b.ToImage())
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
