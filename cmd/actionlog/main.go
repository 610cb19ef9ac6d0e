// ActionLog - extracts text-style action records from crash session logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/logflow/actionlog/pkg/config"
	"github.com/logflow/actionlog/pkg/errors"
	"github.com/logflow/actionlog/pkg/source"
	"github.com/logflow/actionlog/pkg/storage/s3"
	"github.com/logflow/actionlog/pkg/telemetry"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configPath  string
	verbose     bool
	logFormat   string
	openMarker  string
	closeMarker string
	idKey       string
	traceFlag   bool
)

// Command flags
var (
	parserID        string
	outputFormat    string
	workers         int
	failFast        bool
	inputFile       string
	outputFile      string
	exportFormat    string
	compressionFlag string
	batchSize       int
)

// session is built once per invocation from configuration and flags.
type session struct {
	manager  *config.Manager
	cfg      *config.Config
	log      *logrus.Logger
	opener   *source.Opener
	shutdown func(context.Context) error
}

var rt session

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if verbose {
			fmt.Fprint(os.Stderr, errors.Stack(err))
		}
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error's code to the process exit status.
func exitCode(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeFileNotFound, errors.CodeFilePermission, errors.CodeInvalidFormat, errors.CodeReadFailed:
		return 2
	case errors.CodeInvalidConfig:
		return 3
	case errors.CodeWriteFailed:
		return 4
	case errors.CodeSourceFailed, errors.CodeTimeout:
		return 5
	case errors.CodeContextCanceled:
		return 130
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "actionlog",
	Short: "ActionLog - extract action records from crash session logs",
	Long: `ActionLog scans numbered session logs for Action:{ ... } blocks and
turns every block that carries a text_style_guid into a structured record.

Configuration is read from /etc/actionlog/config.yaml, ~/.actionlog/config.yaml,
./.actionlog.yaml, ACTIONLOG_* environment variables, --config and flags,
later sources overriding earlier ones.`,
	Version:           fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown(cmd.Context())
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [files...]",
	Short: "Extract action records from one or more logs",
	Long: `Extract action records from each input and print them with a count.

Inputs may be local files, gzip files, s3://bucket/key objects or "-" for
stdin. With no arguments stdin is read.

Examples:
  actionlog scan session.log
  actionlog scan --workers 8 logs/*.log.gz
  actionlog scan --output json s3://crash-logs/2024/session.log
  cat session.log | actionlog scan -`,
	RunE: runScan,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a crash log: actions, frame sizes and severity",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export action records to JSONL, CSV, XLSX or Parquet",
	Long: `Stream action records from a log into an output file.

The format is taken from --format, then the output extension, then the
output.export setting. Outputs may be s3://bucket/key.

Examples:
  actionlog export -i session.log -o actions.parquet
  actionlog export -i session.log.gz -o actions.xlsx
  actionlog export -i - -o s3://reports/actions.csv --format csv`,
	RunE: runExport,
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Rescan a log whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var parsersCmd = &cobra.Command{
	Use:   "parsers",
	Short: "List registered parsers",
	RunE:  runParsers,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration and the files it came from",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file loaded after all other sources")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&openMarker, "open-marker", "", "Substring that opens an action block")
	pf.StringVar(&closeMarker, "close-marker", "", "Line that closes an action block")
	pf.StringVar(&idKey, "id-key", "", "Key required for a block to become a record")
	pf.BoolVar(&traceFlag, "trace", false, "Export OpenTelemetry traces over OTLP gRPC")

	// Scan command flags
	scanCmd.Flags().StringVarP(&parserID, "parser", "p", "action", "Parser to use (see 'actionlog parsers')")
	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (table, json)")
	scanCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Number of inputs scanned in parallel")
	scanCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop at the first input that fails")

	// Analyze command flags
	analyzeCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format (table, json)")

	// Export command flags
	exportCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input log (use '-' for stdin)")
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file or s3:// URL (required)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format (jsonl, csv, xlsx, parquet)")
	exportCmd.Flags().StringVar(&compressionFlag, "compression", "", "Parquet compression (none, snappy, gzip, zstd, lz4)")
	exportCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per Parquet record batch")
	exportCmd.MarkFlagRequired("input")
	exportCmd.MarkFlagRequired("output")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(parsersCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads configuration, applies flag overrides and starts logging and
// tracing.
func setup(cmd *cobra.Command, args []string) error {
	m := config.NewManager()
	if err := m.Load(configPath); err != nil {
		return errors.InvalidConfig(err, configPath)
	}
	cfg := m.Get()
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return errors.InvalidConfig(err, "flags")
	}

	log := newLogger(cfg.Logging)
	log.WithField("files", m.GetPaths()).Debug("configuration loaded")

	rt = session{
		manager: m,
		cfg:     cfg,
		log:     log,
		opener:  source.NewOpener(s3Config(cfg.S3)),
	}

	if traceFlag || cfg.Telemetry.Enabled {
		otlp := telemetry.DefaultOTLPConfig(cfg.Telemetry.ServiceName)
		otlp.Endpoint = cfg.Telemetry.Endpoint
		otlp.InsecureTLS = cfg.Telemetry.Insecure
		otlp.SamplingRatio = cfg.Telemetry.SamplingRatio
		otlp.ServiceVersion = version

		shutdown, err := telemetry.Init(cmd.Context(), otlp)
		if err != nil {
			log.WithError(err).Warn("tracing disabled")
		} else {
			rt.shutdown = shutdown
			log.AddHook(telemetry.NewLogrusHook())
			log.WithField("endpoint", otlp.Endpoint).Debug("tracing enabled")
		}
	}
	return nil
}

func teardown(ctx context.Context) error {
	if rt.shutdown == nil {
		return nil
	}
	// The command context may already be canceled by a signal.
	if err := rt.shutdown(context.WithoutCancel(ctx)); err != nil {
		rt.log.WithError(err).Warn("failed to flush traces")
	}
	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("open-marker") {
		cfg.Markers.Open = openMarker
	}
	if flags.Changed("close-marker") {
		cfg.Markers.Close = closeMarker
	}
	if flags.Changed("id-key") {
		cfg.Markers.IdentifierKey = idKey
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.Lookup("output") != nil && flags.Changed("output") && cmd.Name() != "export" {
		cfg.Output.Format = outputFormat
	}
	if flags.Lookup("compression") != nil && flags.Changed("compression") {
		cfg.Output.Compression = compressionFlag
	}
	if flags.Lookup("batch-size") != nil && flags.Changed("batch-size") {
		cfg.Output.BatchSize = batchSize
	}
}

func newLogger(lc config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lc.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func s3Config(c config.S3Config) s3.Config {
	cfg := s3.DefaultConfig(c.Region)
	cfg.Endpoint = c.Endpoint
	cfg.UsePathStyle = c.UsePathStyle
	cfg.AccessKeyID = c.AccessKeyID
	cfg.SecretAccessKey = c.SecretAccessKey
	return cfg
}
