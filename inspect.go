package main

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// InspectFile parses a GX file and returns its decoded header with the
// preview bitmaps.
func InspectFile(path string, p *Profile) (*GxHeader, []RawBitmap, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, 0, newConvertError(InputReadError, path, 0, err)
	}
	h, err := ParseHeader(data, p)
	if err != nil {
		return nil, nil, 0, newConvertError(InputReadError, path, 0, err)
	}
	return h, h.Bitmaps(data, p), len(data) - h.BodyOffset, nil
}

func fieldDisplay(f HeaderField) string {
	if f.Spec.Type == TypeBytes {
		return strconv.Quote(string(f.Bytes))
	}
	if f.Spec.isMetadata() && f.Spec.scale() != 1 {
		return strconv.FormatFloat(f.Value(), 'f', -1, 64)
	}
	return strconv.FormatInt(f.Raw, 10)
}

func renderHeader(w io.Writer, h *GxHeader, bitmaps []RawBitmap, bodySize int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Offset", "Field", "Type", "Source", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, f := range h.Fields {
		table.Append([]string{
			strconv.Itoa(f.Offset),
			f.Spec.Name,
			string(f.Spec.Type),
			f.Spec.Source,
			fieldDisplay(f),
		})
	}
	table.Render()

	sections := tablewriter.NewWriter(w)
	sections.SetHeader([]string{"Section", "Offset", "Length", "Format"})
	sections.SetAlignment(tablewriter.ALIGN_LEFT)
	sections.Append([]string{"header", "0", strconv.Itoa(h.Size), ""})
	for i, b := range bitmaps {
		sections.Append([]string{
			fmt.Sprintf("preview %d", i),
			strconv.Itoa(h.BitmapOffsets[i]),
			strconv.Itoa(len(b.Data)),
			fmt.Sprintf("%dx%d %s", b.Width, b.Height, b.Format),
		})
	}
	sections.Append([]string{"gcode", strconv.Itoa(h.BodyOffset), strconv.Itoa(bodySize), ""})
	sections.Render()
}

// previewPath numbers extracted previews when there is more than one.
func previewPath(base string, i, n int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i, ext)
}

func extractPreviews(base string, bitmaps []RawBitmap) ([]string, error) {
	var written []string
	for i, b := range bitmaps {
		m, err := b.Decode()
		if err != nil {
			return written, err
		}
		path := previewPath(base, i, len(bitmaps))
		err = WriteFileAtomic(path, 0644, func(w io.Writer) error {
			return png.Encode(w, m.Image())
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func newInspectCmd(opts *cliOptions) *cobra.Command {
	var extract string
	cmd := &cobra.Command{
		Use:   "inspect <file.gx>",
		Short: "Print the header of a GX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.resolveProfile()
			if err != nil {
				return err
			}
			h, bitmaps, bodySize, err := InspectFile(args[0], p)
			if err != nil {
				return err
			}
			renderHeader(cmd.OutOrStdout(), h, bitmaps, bodySize)

			if extract != "" {
				paths, err := extractPreviews(extract, bitmaps)
				if err != nil {
					return err
				}
				for _, path := range paths {
					opts.logger.Success("preview written to %s", path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extract, "extract-preview", "", "write the preview bitmap(s) as PNG to this path")
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in firmware profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Name", "Header", "Previews", "Description"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, name := range ProfileNames() {
				p, err := LookupProfile(name)
				if err != nil {
					return err
				}
				var previews []string
				for _, pv := range p.Previews {
					previews = append(previews, fmt.Sprintf("%dx%d %s", pv.Width, pv.Height, pv.Format))
				}
				table.Append([]string{
					p.Name,
					fmt.Sprintf("%d bytes", p.HeaderSize()),
					strings.Join(previews, ", "),
					p.Description,
				})
			}
			table.Render()
			return nil
		},
	}
}
