package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribeline/scribeline/internal/analyze"
	"github.com/scribeline/scribeline/internal/artifact"
	"github.com/scribeline/scribeline/internal/config"
	"github.com/scribeline/scribeline/internal/format"
	"github.com/scribeline/scribeline/internal/lang"
	"github.com/scribeline/scribeline/internal/logging"
	"github.com/scribeline/scribeline/internal/memory"
	"github.com/scribeline/scribeline/internal/pipeline"
	"github.com/scribeline/scribeline/internal/progress"
	"github.com/scribeline/scribeline/internal/transcribe"
	"github.com/scribeline/scribeline/internal/transcribe/stt"
)

// supportedFormats lists the container and audio extensions ffmpeg
// reliably probes and slices.
var supportedFormats = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".webm": true,
	".avi":  true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// validBackends are the accepted --backend values.
var validBackends = []string{stt.BackendOpenAI, stt.BackendGoogle, stt.BackendMock}

func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, ext)
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// deriveTranscriptPath converts a media path into the default transcript
// path next to it. Example: "meeting.mp4" -> "meeting.txt".
func deriveTranscriptPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".txt"
}

// deriveReportPath pairs an analysis report with a transcript.
// Example: "meeting.txt" -> "meeting.analysis.json".
func deriveReportPath(transcriptPath string) string {
	ext := filepath.Ext(transcriptPath)
	return strings.TrimSuffix(transcriptPath, ext) + ".analysis.json"
}

// processFlags carries the raw flag values of the process command.
type processFlags struct {
	output          string
	report          string
	backend         string
	chunkSeconds    int
	keywords        []string
	language        string
	workDir         string
	extractWorkers  int
	minWorkers      int
	maxWorkers      int
	workerMemoryGB  float64
	memoryReserveGB float64
	artifactCap     int
	chunkTimeout    time.Duration
	kafkaBrokers    []string
	kafkaTopic      string
}

// processOptions is the validated form of processFlags, with persisted
// configuration merged in underneath the flags.
type processOptions struct {
	Input          string
	Transcript     string
	Report         string
	Backend        string
	APIKey         string
	ChunkLength    time.Duration
	Keywords       []string
	Language       string
	WorkDir        string
	ExtractWorkers int
	Pool           memory.PoolConfig
	ArtifactCap    int
	ChunkTimeout   time.Duration
	KafkaBrokers   []string
	KafkaTopic     string
}

// ProcessCmd creates the process command.
func ProcessCmd(env *Env) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process <media-file>",
		Short: "Transcribe a media file in adaptive chunks",
		Long: `Process a media file end to end: probe its duration, slice it into
chunks sized to the total length, transcribe the chunks in parallel
with a worker count fitted to available memory, and write the merged
transcript plus a JSON analysis report.

Supported formats: ` + supportedFormatsList() + `

The transcript goes to <input>.txt and the report to
<input>.analysis.json unless --output and --report say otherwise.
Chunks that fail to extract or transcribe are reported as warnings;
the session only fails when nothing survives.`,
		Example: `  # Transcribe with the default OpenAI backend
  scribeline process meeting.mp4

  # Fixed 4-minute chunks, tracking two keywords
  scribeline process -c 240 -k deadline,budget meeting.mp4

  # Offline smoke run, no API key needed
  scribeline process -b mock meeting.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, env, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "transcript output path (default: <input>.txt)")
	f.StringVar(&flags.report, "report", "", "analysis report path (default: <transcript>.analysis.json)")
	f.StringVarP(&flags.backend, "backend", "b", "", "speech-to-text backend: openai, google, mock (default: openai)")
	f.IntVarP(&flags.chunkSeconds, "chunk-seconds", "c", 0, "chunk length in seconds (default: adaptive)")
	f.StringSliceVarP(&flags.keywords, "keywords", "k", nil, "keywords to track in the analysis report")
	f.StringVarP(&flags.language, "language", "l", "", "spoken language hint, e.g. en or fr")
	f.StringVar(&flags.workDir, "work-dir", "", "directory for temporary chunk files (default: system temp)")
	f.IntVar(&flags.extractWorkers, "extract-workers", 0, "parallel ffmpeg extractions")
	f.IntVar(&flags.minWorkers, "min-workers", 0, "minimum transcription workers")
	f.IntVar(&flags.maxWorkers, "max-workers", 0, "maximum transcription workers")
	f.Float64Var(&flags.workerMemoryGB, "worker-memory-gb", 0, "memory budgeted per transcription worker")
	f.Float64Var(&flags.memoryReserveGB, "memory-reserve-gb", 0, "memory held back from worker sizing")
	f.IntVar(&flags.artifactCap, "artifact-cap", 0, "temporary files kept on disk before eviction")
	f.DurationVar(&flags.chunkTimeout, "chunk-timeout", 0, "per-chunk transcription timeout")
	f.StringSliceVar(&flags.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers for progress events")
	f.StringVar(&flags.kafkaTopic, "kafka-topic", "", "Kafka topic for progress events")

	return cmd
}

func runProcess(cmd *cobra.Command, env *Env, inputPath string, flags processFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast before any media or API work) ===

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

	// 3. Persisted config fills whatever the flags leave unset; a broken
	// config file degrades to defaults with a warning.
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: could not load config: %v\n", err)
		cfg = config.Config{}
	}

	// 4. Merge flags over config into validated options
	opts, err := parseProcessOptions(env, cfg, inputPath, flags)
	if err != nil {
		return err
	}

	// 5. Refuse to clobber existing outputs before spending API calls
	for _, path := range []string{opts.Transcript, opts.Report} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --output or remove it)", ErrOutputExists, path)
		}
	}

	// === SETUP ===

	prober, transcoder, err := env.Media.Tools()
	if err != nil {
		return fmt.Errorf("resolving media tools: %w", err)
	}

	factory, err := env.Models.NewFactory(opts.Backend, opts.APIKey)
	if err != nil {
		return fmt.Errorf("building %s model factory: %w", opts.Backend, err)
	}

	observers := []progress.Observer{progress.NewLogObserver(logging.WithComponent("progress"))}
	if len(opts.KafkaBrokers) > 0 && opts.KafkaTopic != "" {
		kafka := progress.NewKafkaObserver(opts.KafkaBrokers, opts.KafkaTopic)
		defer kafka.Close()
		observers = append(observers, kafka)
	}

	tracker := progress.NewTracker(progress.WithObservers(observers...))

	// The configured cap is a floor; the pipeline raises it to cover the
	// chunk plan so clips survive until transcription reads them.
	var registryOpts []artifact.Option
	if opts.ArtifactCap > 0 {
		registryOpts = append(registryOpts, artifact.WithCap(opts.ArtifactCap))
	}
	registry, err := artifact.NewRegistry(registryOpts...)
	if err != nil {
		return fmt.Errorf("building artifact registry: %w", err)
	}

	runner, err := pipeline.NewRunner(pipeline.Deps{
		Prober:     prober,
		Transcoder: transcoder,
		Factory:    factory,
		Telemetry:  env.Telemetry,
		Tracker:    tracker,
		Registry:   registry,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	// === PROCESSING ===

	if opts.Language != "" {
		fmt.Fprintf(env.Stderr, "Processing %s (backend: %s, language: %s)\n",
			filepath.Base(inputPath), opts.Backend, lang.DisplayName(opts.Language))
	} else {
		fmt.Fprintf(env.Stderr, "Processing %s (backend: %s)\n", filepath.Base(inputPath), opts.Backend)
	}

	res, err := runner.Run(ctx, pipeline.Config{
		Input:          opts.Input,
		WorkDir:        opts.WorkDir,
		ChunkLength:    opts.ChunkLength,
		ExtractWorkers: opts.ExtractWorkers,
		Pool:           opts.Pool,
		ChunkTimeout:   opts.ChunkTimeout,
		Language:       opts.Language,
		Keywords:       opts.Keywords,
		Backend:        opts.Backend,
	})
	if err != nil {
		return err
	}

	// === OUTPUT ===

	if err := writeExclusive(opts.Transcript, []byte(res.Transcript)); err != nil {
		return err
	}

	report, err := json.MarshalIndent(newProcessReport(opts, res), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding analysis report: %w", err)
	}
	if err := writeExclusive(opts.Report, append(report, '\n')); err != nil {
		return err
	}

	for _, warning := range res.Warnings {
		fmt.Fprintf(env.Stderr, "Warning: %s\n", warning)
	}
	fmt.Fprintf(env.Stderr, "Transcribed %d/%d chunks (%s of media) in %s with %d workers\n",
		res.ChunksTranscribed, res.ChunksPlanned, format.Duration(res.MediaDuration),
		res.Elapsed.Round(time.Second), res.Workers)
	fmt.Fprintf(env.Stderr, "Transcript: %s\n", opts.Transcript)
	fmt.Fprintf(env.Stderr, "Report: %s\n", opts.Report)

	return nil
}

// parseProcessOptions merges flags over persisted config and validates
// the result. Flags always win; config fills unset flags; hard defaults
// fill the rest.
func parseProcessOptions(env *Env, cfg config.Config, inputPath string, flags processFlags) (processOptions, error) {
	opts := processOptions{Input: inputPath}

	opts.Backend = firstNonEmpty(flags.backend, cfg.Backend, stt.BackendOpenAI)
	if !slices.Contains(validBackends, opts.Backend) {
		return processOptions{}, fmt.Errorf("%w: %q (valid: %s)",
			stt.ErrUnknownBackend, opts.Backend, strings.Join(validBackends, ", "))
	}

	// Only the OpenAI backend reads a key from the environment. Google
	// auths through GOOGLE_APPLICATION_CREDENTIALS, mock needs nothing.
	if opts.Backend == stt.BackendOpenAI {
		opts.APIKey = env.Getenv(EnvOpenAIAPIKey)
		if opts.APIKey == "" {
			return processOptions{}, fmt.Errorf("%w (export %s to use the openai backend)",
				ErrAPIKeyMissing, EnvOpenAIAPIKey)
		}
	}

	// Chunk length zero means the planner sizes chunks adaptively.
	chunkSeconds := flags.chunkSeconds
	if chunkSeconds == 0 {
		chunkSeconds = cfg.ChunkSeconds
	}
	if chunkSeconds < 0 {
		return processOptions{}, fmt.Errorf("%w: chunk-seconds must be positive, got %d",
			config.ErrInvalidValue, chunkSeconds)
	}
	opts.ChunkLength = time.Duration(chunkSeconds) * time.Second

	opts.Keywords = flags.keywords
	if len(opts.Keywords) == 0 {
		opts.Keywords = cfg.Keywords
	}

	opts.Language = flags.language
	if err := lang.Validate(opts.Language); err != nil {
		return processOptions{}, err
	}
	opts.WorkDir = flags.workDir
	opts.ChunkTimeout = flags.chunkTimeout

	opts.ExtractWorkers = flags.extractWorkers
	if opts.ExtractWorkers < 0 {
		return processOptions{}, fmt.Errorf("%w: extract-workers must be positive, got %d",
			config.ErrInvalidValue, opts.ExtractWorkers)
	}

	opts.ArtifactCap = flags.artifactCap
	if opts.ArtifactCap == 0 {
		opts.ArtifactCap = cfg.ArtifactCap
	}
	if opts.ArtifactCap < 0 {
		return processOptions{}, fmt.Errorf("%w: artifact-cap must be positive, got %d",
			config.ErrInvalidValue, opts.ArtifactCap)
	}

	pool := memory.DefaultPoolConfig()
	if cfg.MinWorkers > 0 {
		pool.MinWorkers = cfg.MinWorkers
	}
	if cfg.MaxWorkers > 0 {
		pool.MaxWorkers = cfg.MaxWorkers
	}
	if cfg.WorkerMemoryGB > 0 {
		pool.PerWorkerGB = cfg.WorkerMemoryGB
	}
	if cfg.MemoryReserveGB > 0 {
		pool.ReserveGB = cfg.MemoryReserveGB
	}
	if flags.minWorkers > 0 {
		pool.MinWorkers = flags.minWorkers
	}
	if flags.maxWorkers > 0 {
		pool.MaxWorkers = flags.maxWorkers
	}
	if flags.workerMemoryGB > 0 {
		pool.PerWorkerGB = flags.workerMemoryGB
	}
	if flags.memoryReserveGB > 0 {
		pool.ReserveGB = flags.memoryReserveGB
	}
	if pool.MinWorkers > pool.MaxWorkers {
		return processOptions{}, fmt.Errorf("%w: min-workers %d exceeds max-workers %d",
			config.ErrInvalidValue, pool.MinWorkers, pool.MaxWorkers)
	}
	opts.Pool = pool

	opts.KafkaBrokers = flags.kafkaBrokers
	if len(opts.KafkaBrokers) == 0 {
		opts.KafkaBrokers = cfg.KafkaBrokers
	}
	opts.KafkaTopic = firstNonEmpty(flags.kafkaTopic, cfg.KafkaTopic)

	// Output paths: explicit flag, else config output-dir plus a name
	// derived from the input.
	defaultName := deriveTranscriptPath(filepath.Base(inputPath))
	opts.Transcript = config.ResolveOutputPath(flags.output, cfg.OutputDir, defaultName)
	opts.Report = flags.report
	if opts.Report == "" {
		opts.Report = deriveReportPath(opts.Transcript)
	}

	return opts, nil
}

// processReport is the JSON document written alongside the transcript.
type processReport struct {
	SessionID         string               `json:"session_id"`
	Input             string               `json:"input"`
	Backend           string               `json:"backend"`
	MediaDuration     string               `json:"media_duration"`
	MediaSeconds      float64              `json:"media_seconds"`
	ChunksPlanned     int                  `json:"chunks_planned"`
	ChunksTranscribed int                  `json:"chunks_transcribed"`
	ChunksDropped     int                  `json:"chunks_dropped"`
	ChunksFailed      int                  `json:"chunks_failed"`
	Workers           int                  `json:"workers"`
	ElapsedSeconds    float64              `json:"elapsed_seconds"`
	Warnings          []string             `json:"warnings,omitempty"`
	Segments          []transcribe.Segment `json:"segments"`
	Analysis          analyze.Result       `json:"analysis"`
}

func newProcessReport(opts processOptions, res *pipeline.Result) processReport {
	return processReport{
		SessionID:         res.SessionID,
		Input:             opts.Input,
		Backend:           opts.Backend,
		MediaDuration:     format.Duration(res.MediaDuration),
		MediaSeconds:      res.MediaDuration.Seconds(),
		ChunksPlanned:     res.ChunksPlanned,
		ChunksTranscribed: res.ChunksTranscribed,
		ChunksDropped:     res.ChunksDropped,
		ChunksFailed:      res.ChunksFailed,
		Workers:           res.Workers,
		ElapsedSeconds:    res.Elapsed.Seconds(),
		Warnings:          res.Warnings,
		Segments:          res.Segments,
		Analysis:          res.Analysis,
	}
}

// writeExclusive writes data to path, failing if the file already
// exists. A partial file left by a failed write is removed.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		return fmt.Errorf("creating %s: %w", path, err)
	}

	_, writeErr := f.Write(data)
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
