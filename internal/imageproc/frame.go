package imageproc

import (
	"fmt"
	"image"
	"image/color"
)

// Frame is an RGB24 image. Rows start Stride bytes apart; Stride >= Width*3.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// NewFrame allocates a tightly packed frame.
func NewFrame(width, height int) Frame {
	return Frame{
		Pix:    make([]byte, width*height*3),
		Width:  width,
		Height: height,
		Stride: width * 3,
	}
}

// Pixels returns Width*Height.
func (f Frame) Pixels() int { return f.Width * f.Height }

// Packed reports whether rows are stored back to back.
func (f Frame) Packed() bool { return f.Stride == f.Width*3 }

func (f Frame) validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*3 {
		return fmt.Errorf("stride %d shorter than row of %d pixels", f.Stride, f.Width)
	}
	if need := f.Stride*(f.Height-1) + f.Width*3; len(f.Pix) < need {
		return fmt.Errorf("frame buffer has %d bytes, need %d", len(f.Pix), need)
	}
	return nil
}

// rgb returns the pixels without row padding. Packed frames are returned as is.
func (f Frame) rgb() []byte {
	row := f.Width * 3
	if f.Packed() {
		return f.Pix[:row*f.Height]
	}
	data := make([]byte, 0, row*f.Height)
	for y := 0; y < f.Height; y++ {
		data = append(data, f.Pix[y*f.Stride:y*f.Stride+row]...)
	}
	return data
}

// FromImage converts any image to a packed RGB24 frame.
func FromImage(img image.Image) Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			idx := y*f.Stride + x*3
			f.Pix[idx] = uint8(r >> 8)
			f.Pix[idx+1] = uint8(g >> 8)
			f.Pix[idx+2] = uint8(bl >> 8)
		}
	}
	return f
}

// ToRGBA copies the frame into an opaque RGBA image.
func (f Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			idx := y*f.Stride + x*3
			img.SetRGBA(x, y, color.RGBA{R: f.Pix[idx], G: f.Pix[idx+1], B: f.Pix[idx+2], A: 255})
		}
	}
	return img
}

// ScaleNearest resamples src to width x height with nearest-neighbor sampling.
func ScaleNearest(src Frame, width, height int) Frame {
	if src.Width == width && src.Height == height && src.Packed() {
		return src
	}
	dst := NewFrame(width, height)
	for y := 0; y < height; y++ {
		sy := y * src.Height / height
		for x := 0; x < width; x++ {
			sx := x * src.Width / width
			copy(dst.Pix[y*dst.Stride+x*3:y*dst.Stride+x*3+3], src.Pix[sy*src.Stride+sx*3:])
		}
	}
	return dst
}
