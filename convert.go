package main

import (
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"
)

// ThumbnailPolicy decides what happens when a file has thumbnail blocks but
// none of them decodes. A file without any thumbnail always gets the
// placeholder.
type ThumbnailPolicy int

const (
	// ThumbnailFallback logs a warning and uses the placeholder.
	ThumbnailFallback ThumbnailPolicy = iota
	// ThumbnailStrict fails the conversion with ThumbnailDecodeError.
	ThumbnailStrict
)

type Options struct {
	Profile *Profile
	// PreviewImage, when set, replaces the embedded thumbnails.
	PreviewImage image.Image
	Thumbnails   ThumbnailPolicy
	Logger       *Logger
}

// Result is a converted file held in memory.
type Result struct {
	Profile     *Profile
	Metadata    PrintMetadata
	Bitmaps     []RawBitmap
	Placeholder []bool
	Header      []byte
	Body        []byte
}

// Size is the length of the assembled GX file.
func (r *Result) Size() int {
	n := len(r.Header) + len(r.Body)
	for _, b := range r.Bitmaps {
		n += len(b.Data)
	}
	return n
}

func (r *Result) WriteTo(w io.Writer) (int64, error) {
	return Assemble(w, r.Header, r.Bitmaps, r.Body)
}

// Convert runs metadata extraction, preview conversion and header
// construction over an in-memory G-code file. The G-code is kept as the
// body without modification.
func Convert(gcode []byte, opts Options) (*Result, error) {
	p := opts.Profile
	if p == nil {
		var err error
		if p, err = LookupProfile(DefaultProfile); err != nil {
			return nil, err
		}
	}
	log := opts.Logger

	md, err := ExtractMetadata(gcode)
	if err != nil {
		return nil, err
	}
	if md.Slicer != "" {
		log.Debug("G-code generated by %s", md.Slicer)
	}
	log.Debug("metadata: time=%s bed=%d°C nozzle=%d°C speed=%gmm/s filament=%gmm layer=%gmm",
		md.EstimatedTime, md.BedTempC, md.NozzleTempC, md.PrintSpeedMMPerS, md.FilamentLengthMM, md.LayerHeightMM)

	var thumbs []*Thumbnail
	if opts.PreviewImage == nil {
		thumbs = FindThumbnails(gcode)
		log.Debug("found %d embedded thumbnail(s)", len(thumbs))
	}

	res := &Result{Profile: p, Metadata: md, Body: gcode}
	for _, spec := range p.Previews {
		src, placeholder, err := previewSource(spec, thumbs, opts)
		if err != nil {
			return nil, err
		}
		raw, err := ConvertBitmap(src, spec, p.Resample)
		if err != nil {
			return nil, err
		}
		res.Bitmaps = append(res.Bitmaps, raw)
		res.Placeholder = append(res.Placeholder, placeholder)
	}

	if res.Header, err = BuildHeader(md, res.Bitmaps, p); err != nil {
		return nil, err
	}
	return res, nil
}

func previewSource(spec PreviewSpec, thumbs []*Thumbnail, opts Options) (*PixelMatrix, bool, error) {
	log := opts.Logger
	if opts.PreviewImage != nil {
		return matrixFromImage(opts.PreviewImage, color.White), false, nil
	}
	if len(thumbs) == 0 {
		log.Info("no embedded thumbnail, using a placeholder %dx%d preview", spec.Width, spec.Height)
		return Placeholder(spec.Width, spec.Height), true, nil
	}

	m, t, err := decodeBest(thumbs, spec.Width, spec.Height)
	if err != nil {
		if opts.Thumbnails == ThumbnailStrict {
			return nil, false, err
		}
		log.Warning("%v, using a placeholder %dx%d preview", err, spec.Width, spec.Height)
		return Placeholder(spec.Width, spec.Height), true, nil
	}
	log.Debug("%dx%d %s preview from %s at line %d", spec.Width, spec.Height, spec.Format, t, t.Line)
	return m, false, nil
}

// ConvertFile converts inPath and atomically writes the GX file to outPath.
// inPath and outPath may be the same file.
func ConvertFile(inPath, outPath string, opts Options) (*Result, error) {
	if opts.Profile == nil {
		p, err := LookupProfile(DefaultProfile)
		if err != nil {
			return nil, err
		}
		opts.Profile = p
	}

	gcode, unwrapped, err := ReadGCode(inPath, opts.Profile)
	if err != nil {
		return nil, err
	}
	if unwrapped {
		opts.Logger.Info("%s is already a %s file, converting its G-code body again", inPath, opts.Profile.Name)
	}

	res, err := Convert(gcode, opts)
	if err != nil {
		return nil, err
	}

	err = WriteFileAtomic(outPath, 0644, func(w io.Writer) error {
		_, err := res.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// OutputPath is where a conversion of input is written by default: the
// input itself when converting in place, otherwise the input with the
// profile's extension.
func OutputPath(input string, p *Profile, inPlace bool) string {
	if inPlace {
		return input
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + p.OutputExtension()
}
