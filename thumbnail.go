package main

import (
	"encoding/base64"
	"fmt"
	"image/color"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	reThumbBegin = regexp.MustCompile(`^thumbnail(?:_(PNG|JPG|QOI))? begin\b(?:\s+(\d+)\s*[x ]\s*(\d+)(?:\s+(\d+))?)?`)
	reThumbEnd   = regexp.MustCompile(`^thumbnail(?:_(?:PNG|JPG|QOI))? end`)
)

// Thumbnail is one base64 preview block embedded in G-code comments.
// Width, Height and Length are what the begin marker declares, 0 when it
// declares nothing.
type Thumbnail struct {
	Format string
	Width  int
	Height int
	Length int
	Line   int

	payload strings.Builder
}

func (t *Thumbnail) String() string {
	return fmt.Sprintf("thumbnail %s %dx%d", t.Format, t.Width, t.Height)
}

// Payload is the concatenated base64 text of the block.
func (t *Thumbnail) Payload() string { return t.payload.String() }

// FindThumbnails collects every thumbnail block in file order. A block
// without an end marker runs to the end of the file.
func FindThumbnails(gcode []byte) []*Thumbnail {
	var thumbs []*Thumbnail
	var cur *Thumbnail
	forEachLine(gcode, func(lineNum int, line []byte) bool {
		text, isComment := commentText(line)
		if cur == nil {
			if !isComment {
				return true
			}
			if m := reThumbBegin.FindStringSubmatch(text); m != nil {
				cur = &Thumbnail{Format: "PNG", Line: lineNum}
				if m[1] != "" {
					cur.Format = m[1]
				}
				cur.Width, _ = strconv.Atoi(m[2])
				cur.Height, _ = strconv.Atoi(m[3])
				cur.Length, _ = strconv.Atoi(m[4])
			}
			return true
		}

		if isComment && reThumbEnd.MatchString(text) {
			thumbs = append(thumbs, cur)
			cur = nil
			return true
		}
		if !isComment {
			text = strings.TrimSpace(string(line))
		}
		cur.payload.WriteString(text)
		return true
	})
	if cur != nil {
		thumbs = append(thumbs, cur)
	}
	return thumbs
}

// Decode base64-decodes the block and decodes the image inside it.
func (t *Thumbnail) Decode() (*PixelMatrix, error) {
	payload := t.Payload()
	if payload == "" {
		return nil, newConvertError(ThumbnailDecodeError, t.String(), t.Line, errors.New("empty payload"))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, newConvertError(ThumbnailDecodeError, t.String(), t.Line, errors.Wrap(err, "base64"))
	}
	if t.Format == "QOI" {
		return nil, newConvertError(ThumbnailDecodeError, t.String(), t.Line, errors.New("QOI previews are not supported"))
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, newConvertError(ThumbnailDecodeError, t.String(), t.Line, err)
	}
	return matrixFromImage(img, color.White), nil
}

// rankThumbnails orders candidates for a width x height target: the
// smallest thumbnail covering the target first, then the others from the
// largest down.
func rankThumbnails(thumbs []*Thumbnail, width, height int) []*Thumbnail {
	ranked := make([]*Thumbnail, len(thumbs))
	copy(ranked, thumbs)

	covers := func(t *Thumbnail) bool { return t.Width >= width && t.Height >= height }
	area := func(t *Thumbnail) int { return t.Width * t.Height }
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := covers(ranked[i]), covers(ranked[j])
		switch {
		case ci && !cj:
			return true
		case !ci && cj:
			return false
		case ci && cj:
			return area(ranked[i]) < area(ranked[j])
		}
		return area(ranked[i]) > area(ranked[j])
	})
	return ranked
}

// DecodeThumbnail picks the embedded thumbnail best suited to a width x
// height preview and decodes it. It returns a nil matrix and nil error when
// the file has no thumbnail at all; when thumbnails exist but none decodes,
// the error of the preferred candidate is returned.
func DecodeThumbnail(gcode []byte, width, height int) (*PixelMatrix, *Thumbnail, error) {
	return decodeBest(FindThumbnails(gcode), width, height)
}

func decodeBest(thumbs []*Thumbnail, width, height int) (*PixelMatrix, *Thumbnail, error) {
	var firstErr error
	for _, t := range rankThumbnails(thumbs, width, height) {
		m, err := t.Decode()
		if err == nil {
			return m, t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, nil, firstErr
}
