package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	output          string
	inPlace         bool
	profile         string
	profileFile     string
	preview         string
	strictThumbnail bool
	verbose         int
	quiet           bool

	logger *Logger
}

func (o *cliOptions) resolveProfile() (*Profile, error) {
	if o.profileFile != "" {
		return LoadProfile(o.profileFile)
	}
	return LookupProfile(o.profile)
}

func (o *cliOptions) level() int {
	switch {
	case o.quiet:
		return LevelError
	case o.verbose >= 2:
		return LevelDebug
	case o.verbose == 1:
		return LevelInfo
	}
	return LevelWarning
}

func (o *cliOptions) convert(input string) error {
	p, err := o.resolveProfile()
	if err != nil {
		return err
	}

	opts := Options{Profile: p, Logger: o.logger}
	if o.strictThumbnail {
		opts.Thumbnails = ThumbnailStrict
	}
	if o.preview != "" {
		img, err := LoadImage(o.preview)
		if err != nil {
			return newConvertError(ThumbnailDecodeError, o.preview, 0, err)
		}
		opts.PreviewImage = img
	}

	outputFile := o.output
	if outputFile == "" {
		outputFile = OutputPath(input, p, o.inPlace)
	}

	res, err := ConvertFile(input, outputFile, opts)
	if err != nil {
		return err
	}
	o.logger.Success("G-code successfully converted to %s: %s (%d bytes)", p.Name, outputFile, res.Size())
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "orca2gx [flags] <file.gcode>",
		Short: "Convert slicer G-code into a FlashForge GX file",
		Long: "orca2gx wraps a G-code file in the GX container read by FlashForge firmware: " +
			"print metadata and a preview bitmap followed by the unchanged G-code. " +
			"Use --in-place when running as a slicer post-processing script.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = NewLogger(cmd.ErrOrStderr(), opts.level())
			if opts.output != "" && opts.inPlace {
				return errors.New("--output and --in-place are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.convert(args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output path (default: input with the profile's extension)")
	flags.BoolVar(&opts.inPlace, "in-place", false, "overwrite the input file, for slicer post-processing hooks")
	flags.StringVar(&opts.preview, "preview", "", "use this PNG, JPEG, BMP or SVG image instead of the embedded thumbnail")
	flags.BoolVar(&opts.strictThumbnail, "strict-thumbnail", false, "fail instead of using a placeholder when the embedded thumbnail is corrupt")

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&opts.profile, "profile", DefaultProfile, "built-in firmware profile")
	pflags.StringVar(&opts.profileFile, "profile-file", "", "load the firmware profile from a YAML file")
	pflags.CountVarP(&opts.verbose, "verbose", "v", "more output (repeat for debug)")
	pflags.BoolVarP(&opts.quiet, "quiet", "q", false, "only print errors")

	cmd.AddCommand(newInspectCmd(opts), newProfilesCmd())
	return cmd
}

// run executes the command line and returns the process exit status.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	c, err := cmd.ExecuteC()
	if err == nil {
		return 0
	}

	logger := NewLogger(c.ErrOrStderr(), LevelError)
	var ce *ConvertError
	if errors.As(err, &ce) {
		logger.Error("%s stage failed: %v", ce.Stage(), ce)
	} else {
		logger.Error("%v", err)
	}
	return 1
}

func main() {
	os.Exit(run(os.Args[1:]))
}
