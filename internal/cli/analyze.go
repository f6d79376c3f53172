package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/analyze"
	"github.com/scribeline/scribeline/internal/merge"
)

// AnalyzeCmd creates the analyze command, which re-runs keyword and cue
// analysis over an existing transcript without touching any media.
func AnalyzeCmd(env *Env) *cobra.Command {
	var (
		keywords []string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "analyze <transcript-file>",
		Short: "Re-run analysis over an existing transcript",
		Long: `Parse a transcript produced by process and rebuild its analysis
report, optionally with a different keyword list. Timestamps come from
the [MM:SS] markers in the transcript itself, so no media file or API
key is needed.`,
		Example: `  scribeline analyze meeting.txt
  scribeline analyze -k budget,deadline -o report.json meeting.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, env, args[0], keywords, output)
		},
	}

	cmd.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "keywords to track (default: configured keywords)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report output path (default: stdout)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, env *Env, transcriptPath string, keywords []string, output string) error {
	// 1. Transcript must exist
	data, err := os.ReadFile(transcriptPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, transcriptPath)
		}
		return fmt.Errorf("reading transcript: %w", err)
	}

	// 2. Configured keywords fill in when the flag is unset
	if len(keywords) == 0 {
		cfg, err := env.ConfigLoader.Load()
		if err != nil {
			fmt.Fprintf(env.Stderr, "Warning: could not load config: %v\n", err)
		} else {
			keywords = cfg.Keywords
		}
	}

	text := string(data)
	segments := merge.ParseTranscript(text)
	res := analyze.Analyze(text, segments, keywords)

	report, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	report = append(report, '\n')

	if output == "" {
		_, err := cmd.OutOrStdout().Write(report)
		return err
	}

	if err := writeExclusive(output, report); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Report: %s\n", output)

	return nil
}
