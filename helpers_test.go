package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMetadata = `; estimated printing time (normal mode) = 1h 2m
; filament used [mm] = 1234.5
; layer_height = 0.2
; machine_max_speed_x = 500
; first_layer_bed_temperature = 60
; nozzle_temperature = 205
`

const sampleMoves = `G28
M140 S60
M104 S205
G1 Z0.2 F3000
G1 X10 Y10 E1.5 F1800
;TYPE:Outer wall
G1 X20 Y10 E2.25
`

func solidPNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// thumbnailBlock formats data the way slicers embed previews: base64 split
// into 78 character comment lines between begin/end markers.
func thumbnailBlock(kind string, width, height int, data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	marker := "thumbnail"
	if kind != "" {
		marker += "_" + kind
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, ";\n; %s begin %dx%d %d\n", marker, width, height, len(encoded))
	for len(encoded) > 0 {
		n := 78
		if len(encoded) < n {
			n = len(encoded)
		}
		fmt.Fprintf(&sb, "; %s\n", encoded[:n])
		encoded = encoded[n:]
	}
	fmt.Fprintf(&sb, "; %s end\n;\n", marker)
	return sb.String()
}

func sampleGCode(thumbnails ...string) []byte {
	var sb strings.Builder
	sb.WriteString("; generated by OrcaSlicer 2.2.0 on 2025-02-18 at 10:00:00\n")
	for _, t := range thumbnails {
		sb.WriteString(t)
	}
	sb.WriteString("; HEADER_BLOCK_END\n")
	sb.WriteString(sampleMoves)
	sb.WriteString(sampleMetadata)
	return []byte(sb.String())
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s, got %v (%v)", kind, got, err)
	}
}

func flashforge(t *testing.T) *Profile {
	t.Helper()
	p, err := LookupProfile(DefaultProfile)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// twoPreviewProfile is a big-endian layout with an icon and a detail
// preview and explicit length fields.
func twoPreviewProfile() *Profile {
	return &Profile{
		Name:      "test-rgb565",
		Magic:     "GXT1",
		ByteOrder: "big",
		Extension: ".gxt",
		Previews: []PreviewSpec{
			{Width: 16, Height: 12, Format: FormatRGB565LE},
			{Width: 40, Height: 30, Format: FormatRGB565BE},
		},
		Header: []FieldSpec{
			{Name: "magic", Type: TypeBytes, Source: SourceMagic},
			{Name: "version", Type: TypeU8, Source: SourceConst, Value: 3},
			{Name: "header_size", Type: TypeU16, Source: SourceHeaderSize},
			{Name: "icon_offset", Type: TypeU32, Source: SourceBitmapOffset, Index: 0},
			{Name: "icon_length", Type: TypeU32, Source: SourceBitmapLength, Index: 0},
			{Name: "detail_offset", Type: TypeU32, Source: SourceBitmapOffset, Index: 1},
			{Name: "detail_length", Type: TypeU32, Source: SourceBitmapLength, Index: 1},
			{Name: "body_offset", Type: TypeU32, Source: SourceBodyOffset},
			{Name: "print_time", Type: TypeU32, Source: KeyPrintTime},
			{Name: "filament", Type: TypeU32, Source: KeyFilament, Scale: 10},
			{Name: "bed_temp", Type: TypeU16, Source: KeyBedTemp},
			{Name: "nozzle_temp", Type: TypeU16, Source: KeyNozzleTemp},
			{Name: "print_speed", Type: TypeU16, Source: KeyPrintSpeed, Scale: 10},
		},
	}
}
