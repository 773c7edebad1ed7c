package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// placeholderSVG is drawn when a G-code file carries no usable thumbnail:
// an outlined cube on white.
const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 80 60" width="80" height="60">
  <rect x="0" y="0" width="80" height="60" fill="#ffffff"/>
  <path d="M40 12 L58 21 L58 41 L40 50 L22 41 L22 21 Z" fill="#e6e6e6" stroke="#8c8c8c" stroke-width="2" stroke-linejoin="round"/>
  <path d="M22 21 L40 30 L58 21 M40 30 L40 50" fill="none" stroke="#8c8c8c" stroke-width="2" stroke-linejoin="round"/>
</svg>`

// RasterizeSVG renders an SVG document onto a white canvas. A zero width or
// height takes the document's view box size.
func RasterizeSVG(data []byte, width, height int) (*image.RGBA, error) {
	svgIcon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	viewBoxW := float64(svgIcon.ViewBox.W)
	viewBoxH := float64(svgIcon.ViewBox.H)
	if width <= 0 || height <= 0 {
		width, height = int(viewBoxW), int(viewBoxH)
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New("svg has an empty view box")
	}

	svgIcon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	scanner.SetClip(img.Bounds())
	raster := rasterx.NewDasher(width, height, scanner)

	svgIcon.Draw(raster, 1.0)
	return img, nil
}

// Placeholder returns the "no preview" bitmap source at the given size,
// falling back to solid white if the glyph cannot be rendered.
func Placeholder(width, height int) *PixelMatrix {
	img, err := RasterizeSVG([]byte(strings.TrimSpace(placeholderSVG)), width, height)
	if err != nil {
		return solidMatrix(width, height, color.RGBA{0xff, 0xff, 0xff, 0xff})
	}
	return matrixFromImage(img, color.White)
}
