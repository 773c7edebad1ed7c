package main

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// scaleEpsilon absorbs binary float error before truncation, so that
// 0.29 mm * 1000 encodes as 290 and not 289.
const scaleEpsilon = 1e-6

// HeaderField is a decoded header field.
type HeaderField struct {
	Spec   FieldSpec
	Offset int
	Raw    int64
	Bytes  []byte
}

// Value is the field in its canonical unit: Raw divided by the field scale
// for metadata fields, Raw otherwise.
func (f HeaderField) Value() float64 {
	if f.Spec.isMetadata() {
		return float64(f.Raw) / f.Spec.scale()
	}
	return float64(f.Raw)
}

// GxHeader is the decoded form of a GX header.
type GxHeader struct {
	Size          int
	BitmapOffsets []int
	BitmapLengths []int
	BodyOffset    int
	Fields        []HeaderField
}

// Field looks a decoded field up by name.
func (h *GxHeader) Field(name string) (HeaderField, bool) {
	for _, f := range h.Fields {
		if f.Spec.Name == name {
			return f, true
		}
	}
	return HeaderField{}, false
}

// Bitmaps slices the preview bitmaps out of a whole GX file.
func (h *GxHeader) Bitmaps(data []byte, p *Profile) []RawBitmap {
	bitmaps := make([]RawBitmap, len(h.BitmapOffsets))
	for i, off := range h.BitmapOffsets {
		pv := p.Previews[i]
		bitmaps[i] = RawBitmap{
			Width:  pv.Width,
			Height: pv.Height,
			Format: pv.Format,
			Data:   data[off : off+h.BitmapLengths[i]],
		}
	}
	return bitmaps
}

type headerLayout struct {
	size          int
	bitmapOffsets []int
	bitmapLengths []int
	bodyOffset    int
}

func (l headerLayout) source(f FieldSpec) int64 {
	switch f.Source {
	case SourceConst:
		return f.Value
	case SourceBitmapOffset:
		return int64(l.bitmapOffsets[f.Index])
	case SourceBitmapLength:
		return int64(l.bitmapLengths[f.Index])
	case SourceBodyOffset:
		return int64(l.bodyOffset)
	case SourceHeaderSize:
		return int64(l.size)
	}
	return 0
}

// encodeMetadata converts a canonical value to the field's integer unit. The
// range check happens before the integer conversion so that huge values are
// reported instead of wrapping.
func encodeMetadata(f FieldSpec, value float64) (int64, error) {
	scaled := math.Floor(value*f.scale() + scaleEpsilon)
	if scaled < float64(f.Min) {
		scaled = float64(f.Min)
	}
	if min, max := f.Type.bounds(); math.IsNaN(scaled) || scaled < float64(min) || scaled > float64(max) {
		return 0, fmt.Errorf("value %g does not fit %s", value, f.Type)
	}
	return int64(scaled), nil
}

// BuildHeader encodes the profile's header schema for the given metadata
// and preview bitmaps. Bitmaps must be in preview order; offsets are chained
// from the real bitmap lengths.
func BuildHeader(md PrintMetadata, bitmaps []RawBitmap, p *Profile) ([]byte, error) {
	if len(bitmaps) != len(p.Previews) {
		return nil, newConvertError(InvalidProfile, p.Name, 0,
			fmt.Errorf("profile expects %d previews, got %d bitmaps", len(p.Previews), len(bitmaps)))
	}

	layout := headerLayout{size: p.HeaderSize()}
	offset := layout.size
	for _, b := range bitmaps {
		layout.bitmapOffsets = append(layout.bitmapOffsets, offset)
		layout.bitmapLengths = append(layout.bitmapLengths, len(b.Data))
		offset += len(b.Data)
	}
	layout.bodyOffset = offset

	order := p.order()
	buf := make([]byte, 0, layout.size)
	for _, f := range p.Header {
		if f.Source == SourceMagic {
			buf = append(buf, p.Magic...)
			continue
		}

		var v int64
		var err error
		if f.isMetadata() {
			value, ok := md.Value(f.Source)
			if !ok {
				return nil, newConvertError(InvalidProfile, f.Name, 0, fmt.Errorf("unknown metadata key %q", f.Source))
			}
			if v, err = encodeMetadata(f, value); err != nil {
				return nil, newConvertError(MalformedMetadata, f.Name, 0, err)
			}
		} else {
			v = layout.source(f)
		}

		if min, max := f.Type.bounds(); v < min || v > max {
			return nil, newConvertError(InvalidProfile, f.Name, 0, fmt.Errorf("value %d does not fit %s", v, f.Type))
		}
		buf = appendField(buf, order, f.Type, v)
	}

	if len(buf) != layout.size {
		return nil, fmt.Errorf("header encoded to %d bytes, schema size is %d", len(buf), layout.size)
	}
	return buf, nil
}

func appendField(buf []byte, order byteOrder, t FieldType, v int64) []byte {
	switch t {
	case TypeU8:
		return append(buf, byte(v))
	case TypeI16, TypeU16:
		return order.AppendUint16(buf, uint16(v))
	case TypeI32, TypeU32:
		return order.AppendUint32(buf, uint32(v))
	}
	return buf
}

func readField(data []byte, order byteOrder, t FieldType) int64 {
	switch t {
	case TypeU8:
		return int64(data[0])
	case TypeI16:
		return int64(int16(order.Uint16(data)))
	case TypeU16:
		return int64(order.Uint16(data))
	case TypeI32:
		return int64(int32(order.Uint32(data)))
	case TypeU32:
		return int64(order.Uint32(data))
	}
	return 0
}

// ParseHeader decodes the header at the start of a GX file with the same
// schema BuildHeader uses, and checks every offset field against the
// profile's layout and the file length.
func ParseHeader(data []byte, p *Profile) (*GxHeader, error) {
	size := p.HeaderSize()
	if len(data) < size {
		return nil, errors.Errorf("file is %d bytes, shorter than the %d byte header", len(data), size)
	}
	if !bytes.HasPrefix(data, []byte(p.Magic)) {
		return nil, errors.Errorf("missing %q signature", p.Magic)
	}

	offsets, body := p.Layout()
	h := &GxHeader{Size: size, BitmapOffsets: offsets, BodyOffset: body}
	for _, pv := range p.Previews {
		h.BitmapLengths = append(h.BitmapLengths, pv.Size())
	}
	layout := headerLayout{size: size, bitmapOffsets: offsets, bitmapLengths: h.BitmapLengths, bodyOffset: body}

	order := p.order()
	pos := 0
	for _, f := range p.Header {
		w := p.fieldWidth(f)
		field := HeaderField{Spec: f, Offset: pos}
		if f.Type == TypeBytes {
			field.Bytes = data[pos : pos+w]
		} else {
			field.Raw = readField(data[pos:pos+w], order, f.Type)
			switch f.Source {
			case SourceBitmapOffset, SourceBitmapLength, SourceBodyOffset, SourceHeaderSize:
				if want := layout.source(f); field.Raw != want {
					return nil, errors.Errorf("field %s is %d, profile layout says %d", f.Name, field.Raw, want)
				}
			}
		}
		h.Fields = append(h.Fields, field)
		pos += w
	}

	if h.BodyOffset > len(data) {
		return nil, errors.Errorf("body offset %d is past the end of the %d byte file", h.BodyOffset, len(data))
	}
	return h, nil
}
