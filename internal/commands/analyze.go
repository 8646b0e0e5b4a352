package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/fer-stream/internal/frames"
	"github.com/Brownie44l1/fer-stream/internal/handlers"
	"github.com/Brownie44l1/fer-stream/internal/pipeline"
)

var analyzeOpts struct {
	MJPEG bool
	Quiet bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files...]",
	Short: "Detect faces and emotions in image files or an MJPEG stream on stdin",
	Args: func(cmd *cobra.Command, args []string) error {
		if !analyzeOpts.MJPEG && len(args) == 0 {
			return fmt.Errorf("requires at least one file, or --mjpeg to read stdin")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := conf.Validate(); err != nil {
			return err
		}

		analyzer, release, err := newAnalyzer(cmd.Context(), conf)
		if err != nil {
			return err
		}
		defer release()

		progress := io.Writer(os.Stderr)
		if analyzeOpts.Quiet {
			progress = io.Discard
		}

		if analyzeOpts.MJPEG {
			return analyzeStream(cmd.Context(), analyzer, cmd.InOrStdin(), cmd.OutOrStdout(), progress)
		}

		return analyzeFiles(cmd.Context(), analyzer, args, cmd.OutOrStdout(), progress)
	},
}

// resultLine is one JSON line written by analyze.
type resultLine struct {
	Source string `json:"source"`
	*handlers.FrameResponse
	Error string `json:"error,omitempty"`
}

// analyzeFiles analyzes each file in order. Unreadable or undecodable files
// are reported on their own line; a capability fault stops the run.
func analyzeFiles(ctx context.Context, analyzer pipeline.Analyzer, files []string, out, progress io.Writer) error {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	enc := json.NewEncoder(out)

	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			log.Warnf("analyze: %s", err)
			if err := enc.Encode(resultLine{Source: name, Error: err.Error()}); err != nil {
				return err
			}
			_ = bar.Add(1)
			continue
		}

		if err := analyzeOne(ctx, analyzer, enc, name, data); err != nil {
			return err
		}

		_ = bar.Add(1)
	}

	return nil
}

// analyzeStream analyzes every JPEG frame in r in arrival order.
func analyzeStream(ctx context.Context, analyzer pipeline.Analyzer, r io.Reader, out, progress io.Writer) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	enc := json.NewEncoder(out)
	scanner := frames.NewScanner(r)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := analyzeOne(ctx, analyzer, enc, fmt.Sprintf("frame:%d", n), scanner.Bytes()); err != nil {
			return err
		}

		n++
		_ = bar.Add(1)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("mjpeg: %w", err)
	}

	log.Debugf("analyze: %d frames", n)

	return nil
}

func analyzeOne(ctx context.Context, analyzer pipeline.Analyzer, enc *json.Encoder, source string, data []byte) error {
	result, err := analyzer.Analyze(ctx, data)

	switch {
	case err == nil:
		resp := handlers.NewFrameResponse(result)
		return enc.Encode(resultLine{Source: source, FrameResponse: &resp})
	case pipeline.IsDecodeError(err):
		log.Debugf("analyze: %s: %s", source, err)
		return enc.Encode(resultLine{Source: source, Error: err.Error()})
	default:
		return fmt.Errorf("%s: %w", source, err)
	}
}

func init() {
	analyzeCmd.Flags().BoolVarP(&analyzeOpts.MJPEG, "mjpeg", "m", false, "read a raw MJPEG stream from stdin")
	analyzeCmd.Flags().BoolVarP(&analyzeOpts.Quiet, "quiet", "q", false, "hide the progress bar")

	rootCmd.AddCommand(analyzeCmd)
}
