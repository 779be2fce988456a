package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joeblau/jsonsplit/internal/config"
	"github.com/joeblau/jsonsplit/internal/extract"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
	"github.com/joeblau/jsonsplit/internal/logging"
	"github.com/joeblau/jsonsplit/internal/progress"
)

// version is set via ldflags at build time:
//
//	go build -ldflags "-X github.com/joeblau/jsonsplit/cmd.version=0.1.0"
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "jsonsplit",
	Short: "extract a named JSON array from a large document, streaming",
	Long: `jsonsplit locates a named array inside an arbitrarily large JSON document
and streams each top-level element to one or more output files, as NDJSON or
a JSON array, with optional size-based sharding and parallel writers.

Options are given as bare tokens or key=value pairs, not GNU-style flags:

  jsonsplit in=accounts.json out=out.ndjson key=accounts ndjson
  jsonsplit in=- out=- key= < data.json > elements.ndjson
  jsonsplit in=big.json split-lines=10000 split-prefix=/tmp/shard workers=4 verbose

Recognized tokens: in=<path|->, out=<path|->, key=<string>, ndjson/no-ndjson,
split-lines=<N>, split-prefix=<path>, buffer=<bytes>, workers=<K>,
tmpdir=<path>, verbose, json (emit NDJSON progress on stderr instead of
the interactive spinner).`,
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(args)
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute runs the root command. Errors are printed to stderr and the
// process exits with the code spec §7 maps the error to.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(jsonerr.ExitCode(err))
	}
}

func runExtract(args []string) error {
	raw, err := config.ParseArgs(args)
	if err != nil {
		os.Exit(jsonerr.ExitCode(err))
		return nil
	}

	cfg, err := config.Load(raw, config.NewViper())
	if err != nil {
		os.Exit(jsonerr.ExitCode(err))
		return nil
	}

	logger := logging.New(cfg.Verbose)
	defer logger.Sync()

	in, closeIn, err := openInput(cfg)
	if err != nil {
		logger.Error("failed to open input", zap.Error(err))
		os.Exit(jsonerr.ExitCode(err))
		return nil
	}
	defer closeIn()

	fs := afero.NewOsFs()
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}

	var reporter progress.Reporter
	switch {
	case !cfg.Verbose:
		reporter = progress.NullReporter{}
	case cfg.MachineOutput:
		reporter = progress.NewMachine(os.Stderr)
	default:
		reporter = progress.NewInteractive("Extracting...", isInteractive())
	}

	logger.Info("starting extraction",
		zap.String("in", cfg.In), zap.String("key", cfg.Key), zap.String("mode", cfg.Mode.String()))

	events, done := extract.New().Extract(context.Background(), cfg, fs, in, os.Stdout, reporter)
	for range events {
	}
	result := <-done

	if result.Err != nil {
		logger.Error("extraction failed", zap.Error(result.Err))
		fmt.Fprintln(os.Stderr, result.Err)
		os.Exit(jsonerr.ExitCode(result.Err))
		return nil
	}

	logger.Info("extraction complete",
		zap.Int64("elements", result.Summary.TotalElements),
		zap.Int("chunks", result.Summary.ChunksCreated))
	return nil
}

// openInput resolves cfg.In to a reader: stdin for "-", otherwise an
// opened file. The returned closer is always safe to call.
func openInput(cfg config.ExtractorConfig) (io.Reader, func(), error) {
	if cfg.StdinRequested() {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(cfg.In)
	if err != nil {
		return nil, nil, &jsonerr.IOError{Op: "open " + cfg.In, Err: err}
	}
	return f, func() { f.Close() }, nil
}

func isInteractive() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}
