package main

import (
	"bytes"
	"image/color"
	"testing"
)

func TestRGB565(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    uint16
	}{
		{0xff, 0xff, 0xff, 0xffff},
		{0, 0, 0, 0},
		{0xff, 0, 0, 0xf800},
		{0, 0xff, 0, 0x07e0},
		{0, 0, 0xff, 0x001f},
		{8, 4, 8, 0x0821},
		{7, 3, 7, 0},
	}
	for _, tt := range tests {
		if got := RGB565(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("RGB565(%d, %d, %d): expected %#04x, got %#04x", tt.r, tt.g, tt.b, tt.want, got)
		}
	}
}

func TestConvertBitmapRGB565ByteOrder(t *testing.T) {
	red := solidMatrix(1, 1, color.RGBA{0xff, 0, 0, 0xff})

	le, err := ConvertBitmap(red, PreviewSpec{Width: 1, Height: 1, Format: FormatRGB565LE}, ResampleNearest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(le.Data, []byte{0x00, 0xf8}) {
		t.Errorf("little endian: expected 00 f8, got % x", le.Data)
	}

	be, err := ConvertBitmap(red, PreviewSpec{Width: 1, Height: 1, Format: FormatRGB565BE}, ResampleNearest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(be.Data, []byte{0xf8, 0x00}) {
		t.Errorf("big endian: expected f8 00, got % x", be.Data)
	}
}

func TestPixelFormatSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{FormatBMP24, 80, 60, 14454},
		{FormatBMP24, 3, 2, 54 + 12*2},
		{FormatRGB565LE, 80, 60, 9600},
		{FormatRGB565BE, 300, 300, 180000},
		{FormatRGB888, 10, 10, 300},
		{FormatGray8, 10, 10, 100},
		{PixelFormat("png"), 10, 10, 0},
	}
	for _, tt := range tests {
		if got := tt.format.Size(tt.w, tt.h); got != tt.want {
			t.Errorf("%s %dx%d: expected %d bytes, got %d", tt.format, tt.w, tt.h, tt.want, got)
		}
	}
}

func gradient(width, height int) *PixelMatrix {
	m := NewPixelMatrix(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.setRGB(x, y, uint8(x*255/width), uint8(y*255/height), uint8((x+y)*7))
		}
	}
	return m
}

func TestConvertBitmapDeterministic(t *testing.T) {
	src := gradient(37, 23)
	formats := []PixelFormat{FormatBMP24, FormatRGB565LE, FormatRGB565BE, FormatRGB888, FormatGray8}
	filters := []Resample{ResampleNearest, ResampleBilinear, ResampleCatmullRom}

	for _, format := range formats {
		for _, filter := range filters {
			spec := PreviewSpec{Width: 80, Height: 60, Format: format}
			a, err := ConvertBitmap(src, spec, filter)
			if err != nil {
				t.Fatalf("%s/%s: %v", format, filter, err)
			}
			b, err := ConvertBitmap(src, spec, filter)
			if err != nil {
				t.Fatalf("%s/%s: %v", format, filter, err)
			}
			if !bytes.Equal(a.Data, b.Data) {
				t.Errorf("%s/%s: output differs between runs", format, filter)
			}
			if len(a.Data) != spec.Size() {
				t.Errorf("%s/%s: expected %d bytes, got %d", format, filter, spec.Size(), len(a.Data))
			}
		}
	}
}

func TestConvertBitmapBMP24(t *testing.T) {
	src := solidMatrix(16, 16, color.RGBA{0xff, 0, 0, 0xff})
	raw, err := ConvertBitmap(src, PreviewSpec{Width: 80, Height: 60, Format: FormatBMP24}, ResampleNearest)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw.Data) != 14454 {
		t.Fatalf("expected 14454 bytes, got %d", len(raw.Data))
	}
	if !bytes.HasPrefix(raw.Data, []byte("BM")) {
		t.Errorf("missing BM signature: % x", raw.Data[:2])
	}

	m, err := raw.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if m.Width != 80 || m.Height != 60 {
		t.Fatalf("decoded to %dx%d", m.Width, m.Height)
	}
	if r, g, b := m.RGBAt(79, 59); r != 0xff || g != 0 || b != 0 {
		t.Errorf("expected red, got %d,%d,%d", r, g, b)
	}
}

func TestResizeNearest(t *testing.T) {
	src := NewPixelMatrix(2, 2)
	src.setRGB(0, 0, 0xff, 0, 0)
	src.setRGB(1, 0, 0, 0xff, 0)
	src.setRGB(0, 1, 0, 0, 0xff)
	src.setRGB(1, 1, 0xff, 0xff, 0xff)

	dst, err := Resize(src, 4, 4, ResampleNearest)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			wr, wg, wb := src.RGBAt(x/2, y/2)
			if r, g, b := dst.RGBAt(x, y); r != wr || g != wg || b != wb {
				t.Errorf("(%d,%d): expected %d,%d,%d, got %d,%d,%d", x, y, wr, wg, wb, r, g, b)
			}
		}
	}
}

func TestResizeSameSizeCopies(t *testing.T) {
	src := gradient(8, 8)
	dst, err := Resize(src, 8, 8, ResampleBilinear)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(src.Pix, dst.Pix) {
		t.Error("same size resize changed pixels")
	}
	dst.Pix[0]++
	if src.Pix[0] == dst.Pix[0] {
		t.Error("resize returned the source buffer")
	}
}

func TestResizeUnknownFilter(t *testing.T) {
	if _, err := Resize(gradient(4, 4), 8, 8, Resample("lanczos9")); err == nil {
		t.Error("expected an error for an unknown filter")
	}
}

func TestRawBitmapDecode(t *testing.T) {
	white := solidMatrix(4, 3, color.RGBA{0xff, 0xff, 0xff, 0xff})
	for _, format := range []PixelFormat{FormatBMP24, FormatRGB565LE, FormatRGB565BE, FormatRGB888, FormatGray8} {
		raw, err := ConvertBitmap(white, PreviewSpec{Width: 4, Height: 3, Format: format}, ResampleNearest)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		m, err := raw.Decode()
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !bytes.Equal(m.Pix, white.Pix) {
			t.Errorf("%s: white did not survive encoding", format)
		}
	}
}

func TestRawBitmapDecodeShort(t *testing.T) {
	raw := RawBitmap{Width: 4, Height: 4, Format: FormatRGB565LE, Data: make([]byte, 31)}
	if _, err := raw.Decode(); err == nil {
		t.Error("expected an error for a truncated bitmap")
	}
}

func TestGrayLuminance(t *testing.T) {
	m := solidMatrix(1, 1, color.RGBA{0xff, 0, 0, 0xff})
	raw, err := ConvertBitmap(m, PreviewSpec{Width: 1, Height: 1, Format: FormatGray8}, ResampleNearest)
	if err != nil {
		t.Fatal(err)
	}
	if raw.Data[0] != 76 {
		t.Errorf("expected luminance 76 for pure red, got %d", raw.Data[0])
	}
}
