package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/chunk"
	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/format"
)

// PlanCmd creates the plan command, a dry run that shows how a media
// file would be chunked without extracting or transcribing anything.
func PlanCmd(env *Env) *cobra.Command {
	var chunkSeconds int

	cmd := &cobra.Command{
		Use:   "plan <media-file>",
		Short: "Preview the chunk plan for a media file",
		Long: `Probe a media file and print the chunks a process run would extract.
Needs ffmpeg but no API key, and writes nothing.`,
		Example: `  scribeline plan meeting.mp4
  scribeline plan -c 240 meeting.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, env, args[0], chunkSeconds)
		},
	}

	cmd.Flags().IntVarP(&chunkSeconds, "chunk-seconds", "c", 0, "chunk length in seconds (default: adaptive)")

	return cmd
}

func runPlan(cmd *cobra.Command, env *Env, inputPath string, chunkSeconds int) error {
	ctx := cmd.Context()

	// 1. Input file must exist
	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("checking input file: %w", err)
	}

	// 2. Format must be supported
	ext := strings.ToLower(filepath.Ext(inputPath))
	if !supportedFormats[ext] {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, supportedFormatsList())
	}

	// 3. Config provides the chunk default when the flag is unset
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: could not load config: %v\n", err)
		cfg = config.Config{}
	}
	if chunkSeconds == 0 {
		chunkSeconds = cfg.ChunkSeconds
	}
	if chunkSeconds < 0 {
		return fmt.Errorf("%w: chunk-seconds must be positive, got %d",
			config.ErrInvalidValue, chunkSeconds)
	}

	prober, _, err := env.Media.Tools()
	if err != nil {
		return fmt.Errorf("resolving media tools: %w", err)
	}

	total, err := prober.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	configured := time.Duration(chunkSeconds) * time.Second
	specs, err := chunk.Plan(total, configured, inputPath, "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Media:        %s (%s)\n", filepath.Base(inputPath), format.Duration(total))
	fmt.Fprintf(out, "Chunk length: %s\n", format.Duration(chunk.EffectiveLength(total, configured)))
	fmt.Fprintf(out, "Chunks:       %d\n\n", len(specs))
	for _, spec := range specs {
		fmt.Fprintf(out, "  %3d  %s-%s  %s\n",
			spec.Index, format.Duration(spec.Start), format.Duration(spec.End()),
			filepath.Base(spec.OutputPath))
	}

	return nil
}
