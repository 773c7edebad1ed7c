package main

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// LoadImage reads a preview image from disk. SVG files are rasterised at
// their view box size; PNG, JPEG and BMP go through the registered codecs.
func LoadImage(filePath string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".svg":
		return RasterizeSVG(data, 0, 0)
	case ".png", ".jpg", ".jpeg", ".bmp":
		return decodeImage(data)
	}
	return nil, errors.New("unsupported image format: " + ext)
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("image has no pixels")
	}
	return img, nil
}

// matrixFromImage flattens src over a solid background, dropping alpha.
func matrixFromImage(src image.Image, background color.Color) *PixelMatrix {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	flat := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)

	m := NewPixelMatrix(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := flat.RGBAAt(x, y)
			m.setRGB(x, y, c.R, c.G, c.B)
		}
	}
	return m
}

func solidMatrix(width, height int, c color.RGBA) *PixelMatrix {
	m := NewPixelMatrix(width, height)
	for i := 0; i < len(m.Pix); i += 3 {
		m.Pix[i], m.Pix[i+1], m.Pix[i+2] = c.R, c.G, c.B
	}
	return m
}
