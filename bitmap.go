package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// PixelMatrix is a decoded preview: Width*Height RGB triples, row-major,
// origin top-left.
type PixelMatrix struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewPixelMatrix(width, height int) *PixelMatrix {
	return &PixelMatrix{Width: width, Height: height, Pix: make([]uint8, 3*width*height)}
}

func (m *PixelMatrix) RGBAt(x, y int) (r, g, b uint8) {
	i := 3 * (y*m.Width + x)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

func (m *PixelMatrix) setRGB(x, y int, r, g, b uint8) {
	i := 3 * (y*m.Width + x)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// Image returns an opaque *image.RGBA copy of the matrix.
func (m *PixelMatrix) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.RGBAt(x, y)
			img.SetRGBA(x, y, color.RGBA{r, g, b, 0xff})
		}
	}
	return img
}

type PixelFormat string

const (
	FormatBMP24    PixelFormat = "bmp24"
	FormatRGB565LE PixelFormat = "rgb565le"
	FormatRGB565BE PixelFormat = "rgb565be"
	FormatRGB888   PixelFormat = "rgb888"
	FormatGray8    PixelFormat = "gray8"
)

const bmpHeaderSize = 14 + 40

func (f PixelFormat) Valid() bool {
	switch f {
	case FormatBMP24, FormatRGB565LE, FormatRGB565BE, FormatRGB888, FormatGray8:
		return true
	}
	return false
}

// Size is the encoded byte length of a width x height bitmap.
func (f PixelFormat) Size(width, height int) int {
	switch f {
	case FormatBMP24:
		return bmpHeaderSize + bmpStride(width)*height
	case FormatRGB565LE, FormatRGB565BE:
		return 2 * width * height
	case FormatRGB888:
		return 3 * width * height
	case FormatGray8:
		return width * height
	}
	return 0
}

func bmpStride(width int) int {
	return (3*width + 3) &^ 3
}

// RawBitmap is a preview in the firmware's pixel encoding.
type RawBitmap struct {
	Width  int
	Height int
	Format PixelFormat
	Data   []byte
}

func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

func expandRGB565(p uint16) (r, g, b uint8) {
	r5, g6, b5 := uint8(p>>11), uint8(p>>5)&0x3f, uint8(p)&0x1f
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

func luminance(r, g, b uint8) uint8 {
	return uint8((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

type Resample string

const (
	ResampleNearest    Resample = "nearest"
	ResampleBilinear   Resample = "bilinear"
	ResampleCatmullRom Resample = "catmullrom"
)

func (r Resample) interpolator() (draw.Interpolator, error) {
	switch r {
	case "", ResampleNearest:
		return draw.NearestNeighbor, nil
	case ResampleBilinear:
		return draw.BiLinear, nil
	case ResampleCatmullRom:
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("unknown resample filter %q", string(r))
}

// Resize stretches m to width x height. The result is always opaque.
func Resize(m *PixelMatrix, width, height int, filter Resample) (*PixelMatrix, error) {
	if m.Width == width && m.Height == height {
		out := NewPixelMatrix(width, height)
		copy(out.Pix, m.Pix)
		return out, nil
	}
	interp, err := filter.interpolator()
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	src := m.Image()
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewPixelMatrix(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := dst.RGBAAt(x, y)
			out.setRGB(x, y, c.R, c.G, c.B)
		}
	}
	return out, nil
}

// ConvertBitmap resamples m to the preview size and encodes it in the
// preview pixel format.
func ConvertBitmap(m *PixelMatrix, spec PreviewSpec, filter Resample) (RawBitmap, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return RawBitmap{}, fmt.Errorf("invalid preview size %dx%d", spec.Width, spec.Height)
	}
	if !spec.Format.Valid() {
		return RawBitmap{}, fmt.Errorf("unknown pixel format %q", string(spec.Format))
	}

	src, err := Resize(m, spec.Width, spec.Height, filter)
	if err != nil {
		return RawBitmap{}, err
	}

	raw := RawBitmap{Width: spec.Width, Height: spec.Height, Format: spec.Format}
	switch spec.Format {
	case FormatBMP24:
		var buf bytes.Buffer
		buf.Grow(spec.Format.Size(spec.Width, spec.Height))
		if err := bmp.Encode(&buf, src.Image()); err != nil {
			return RawBitmap{}, errors.Wrap(err, "encode bmp")
		}
		raw.Data = buf.Bytes()
	case FormatRGB565LE, FormatRGB565BE:
		var order binary.AppendByteOrder = binary.LittleEndian
		if spec.Format == FormatRGB565BE {
			order = binary.BigEndian
		}
		raw.Data = make([]byte, 0, spec.Format.Size(spec.Width, spec.Height))
		for i := 0; i < len(src.Pix); i += 3 {
			raw.Data = order.AppendUint16(raw.Data, RGB565(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
		}
	case FormatRGB888:
		raw.Data = src.Pix
	case FormatGray8:
		raw.Data = make([]byte, 0, spec.Width*spec.Height)
		for i := 0; i < len(src.Pix); i += 3 {
			raw.Data = append(raw.Data, luminance(src.Pix[i], src.Pix[i+1], src.Pix[i+2]))
		}
	}

	if want := spec.Format.Size(spec.Width, spec.Height); len(raw.Data) != want {
		return RawBitmap{}, fmt.Errorf("%s bitmap is %d bytes, expected %d", spec.Format, len(raw.Data), want)
	}
	return raw, nil
}

// Decode turns an encoded bitmap back into pixels.
func (b RawBitmap) Decode() (*PixelMatrix, error) {
	if len(b.Data) != b.Format.Size(b.Width, b.Height) {
		return nil, fmt.Errorf("%s bitmap is %d bytes, expected %d", b.Format, len(b.Data), b.Format.Size(b.Width, b.Height))
	}

	m := NewPixelMatrix(b.Width, b.Height)
	switch b.Format {
	case FormatBMP24:
		img, err := bmp.Decode(bytes.NewReader(b.Data))
		if err != nil {
			return nil, errors.Wrap(err, "decode bmp")
		}
		return matrixFromImage(img, color.White), nil
	case FormatRGB565LE, FormatRGB565BE:
		var order binary.ByteOrder = binary.LittleEndian
		if b.Format == FormatRGB565BE {
			order = binary.BigEndian
		}
		for i := 0; i < b.Width*b.Height; i++ {
			r, g, bl := expandRGB565(order.Uint16(b.Data[2*i:]))
			m.Pix[3*i], m.Pix[3*i+1], m.Pix[3*i+2] = r, g, bl
		}
	case FormatRGB888:
		copy(m.Pix, b.Data)
	case FormatGray8:
		for i, v := range b.Data {
			m.Pix[3*i], m.Pix[3*i+1], m.Pix[3*i+2] = v, v, v
		}
	default:
		return nil, fmt.Errorf("unknown pixel format %q", string(b.Format))
	}
	return m, nil
}
