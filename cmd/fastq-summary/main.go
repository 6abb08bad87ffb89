package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-fastq-summary/internal/config"
	"go-fastq-summary/internal/logging"
	"go-fastq-summary/internal/model"
	"go-fastq-summary/internal/pipeline"
	"go-fastq-summary/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	threads     int
	maxFiles    int
	fields      []string
	includePath bool
	basecallID  int
	verbosity   int
	runFile     string
	ledgerPath  string
)

var rootCmd = &cobra.Command{
	Use:   "fastq-summary <fastq_dir> <summary_file>",
	Short: "Build an Albacore/Guppy style sequencing summary from a directory of fastq files",
	Long: `Scan a directory tree for fastq files (fq, fastq, optionally gzipped), extract
per-read metadata and statistics and write them as one tab-separated sequencing summary.
Read ids, run ids, channels, start times and barcodes are taken from the read headers;
mean quality and GC content are computed from the records.`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSummary,
}

func init() {
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Total number of threads, 1 for the scanner and 1 for the writer (minimum 3)")
	rootCmd.Flags().IntVar(&maxFiles, "max-files", 0, "Maximum number of fastq files to parse, 0 for all")
	rootCmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "Columns to extract, in output order")
	rootCmd.Flags().BoolVar(&includePath, "include-path", false, "Append the absolute path of the source fastq file to every row")
	rootCmd.Flags().IntVar(&basecallID, "basecall-id", 0, "Basecalling group id, recorded with the run")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v progress, -vv every unit)")
	rootCmd.Flags().StringVarP(&runFile, "config", "c", "", "YAML run file; command line flags override its values")
	rootCmd.Flags().StringVar(&ledgerPath, "ledger", "", "Record the run in this sqlite ledger")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if pipeline.IsKind(err, pipeline.KindInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	spec, err := buildSpec(cmd, cfg, args)
	if err != nil {
		return err
	}

	log := logging.Must(logging.DefaultConfig(spec.Verbosity))
	defer log.Sync()

	p, err := pipeline.New(pipeline.Options{Spec: spec, Logger: log})
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	if ledgerPath != "" {
		if err := store.InitDB(ledgerPath); err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		defer store.CloseDB()
		if err := store.SaveRun(runID, p.Spec()); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		setStatus(log, runID, store.StatusRunning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)
	record(log, runID, report, err)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Summary written to %s (%d reads, %.2f reads/s)\n", report.SummaryFile, report.TotalReads, report.ReadsPerSecond)
	return nil
}

// buildSpec layers environment defaults, the optional run file, positional arguments and flags
func buildSpec(cmd *cobra.Command, cfg *config.Config, args []string) (model.RunSpec, error) {
	var spec model.RunSpec
	if runFile != "" {
		var err error
		if spec, err = config.LoadRunFile(runFile); err != nil {
			return spec, err
		}
	}

	if len(args) > 0 {
		spec.FastqDir = args[0]
	}
	if len(args) > 1 {
		spec.SummaryFile = args[1]
	}
	if spec.FastqDir == "" || spec.SummaryFile == "" {
		return spec, errors.New("a fastq directory and a summary file are required")
	}

	flags := cmd.Flags()
	if flags.Changed("threads") {
		spec.Threads = threads
	}
	if flags.Changed("max-files") {
		spec.MaxFiles = maxFiles
	}
	if flags.Changed("fields") {
		spec.Fields = fields
	}
	if flags.Changed("include-path") {
		spec.IncludePath = includePath
	}
	if flags.Changed("basecall-id") {
		spec.BasecallID = basecallID
	}
	if flags.Changed("verbose") {
		spec.Verbosity = verbosity
	} else if runFile == "" {
		spec.Verbosity = cfg.Log.Verbosity
	}

	return cfg.Apply(spec), nil
}

func record(log *zap.Logger, runID string, report *pipeline.Report, err error) {
	if !store.Enabled() {
		return
	}
	if err != nil {
		var se *pipeline.SummaryError
		kind, status := string(pipeline.KindParse), store.StatusFailed
		if errors.As(err, &se) {
			kind = string(se.Kind)
			if se.Kind == pipeline.KindInterrupted {
				status = store.StatusCancelled
			}
		}
		if e := store.SaveRunError(runID, kind, err); e != nil {
			log.Warn("Failed to record run error", zap.String("run_id", runID), zap.Error(e))
		}
		setStatus(log, runID, status)
		return
	}
	if e := store.SaveRunReport(runID, report.TotalReads, report.ReadsPerSecond, report.Elapsed, report.Counters); e != nil {
		log.Warn("Failed to record run report", zap.String("run_id", runID), zap.Error(e))
	}
	setStatus(log, runID, store.StatusCompleted)
}

func setStatus(log *zap.Logger, runID, status string) {
	if err := store.UpdateRunStatus(runID, status); err != nil {
		log.Warn("Failed to update run status", zap.String("run_id", runID), zap.String("status", status), zap.Error(err))
	}
}
