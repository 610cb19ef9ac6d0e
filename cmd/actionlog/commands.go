package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/logflow/actionlog/internal/model"
	"github.com/logflow/actionlog/internal/pipe"
	"github.com/logflow/actionlog/pkg/errors"
	"github.com/logflow/actionlog/pkg/inspect"
	"github.com/logflow/actionlog/pkg/parser"
	"github.com/logflow/actionlog/pkg/source"
	"github.com/logflow/actionlog/pkg/storage/s3"
	"github.com/logflow/actionlog/pkg/telemetry"
	"github.com/logflow/actionlog/pkg/tui"
	"github.com/logflow/actionlog/pkg/util"
	"github.com/logflow/actionlog/pkg/watch"
	"github.com/logflow/actionlog/pkg/writer"
)

// scanOutput is the JSON shape of one scanned input.
type scanOutput struct {
	Source  string               `json:"source"`
	Count   int                  `json:"count"`
	Actions []model.ActionRecord `json:"actions"`
	Error   string               `json:"error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) (err error) {
	paths := args
	if len(paths) == 0 {
		paths = []string{source.Stdin}
	}

	ctx, span := telemetry.StartSpan(cmd.Context(), "actionlog.scan",
		attribute.String("actionlog.parser", parserID),
		attribute.Int("actionlog.inputs", len(paths)))
	defer func() { telemetry.EndSpan(span, err) }()
	log := rt.log.WithContext(ctx)

	scanner, err := parser.New(parserID, rt.cfg.ParserConfig(), parser.WithLogger(log))
	if err != nil {
		return err
	}

	asTable := rt.cfg.Output.Format == "table"
	var bar interface{ Add(int) error }
	if asTable && len(paths) > 1 {
		bar = tui.ShowProgress(int64(len(paths)), "scanning")
	}

	start := time.Now()
	results, scanErr := pipe.ScanAll(ctx, rt.opener, scanner, paths, pipe.BatchOptions{
		Workers:  workers,
		FailFast: failFast,
		OnDone: func(done, total int64, res pipe.BatchResult) {
			entry := log.WithFields(logrus.Fields{
				"source":   source.Name(res.Path),
				"duration": res.Duration.Round(time.Millisecond),
			})
			if res.Error != nil {
				entry.WithError(res.Error).Debug("scan failed")
			} else {
				entry.WithField("actions", len(res.Report.Actions)).Debug("scan finished")
			}
			if bar != nil {
				bar.Add(1)
			}
		},
	})
	elapsed := time.Since(start)

	var failures errors.MultiError
	var total int
	outputs := make([]scanOutput, 0, len(results))
	printer := tui.NewPrinter(os.Stdout)

	for _, res := range results {
		name := source.Name(res.Path)
		if res.Path == "" {
			// Skipped after a --fail-fast failure or an interrupt.
			continue
		}
		if res.Error != nil {
			failures.Add(fmt.Errorf("%s: %w", name, res.Error))
			outputs = append(outputs, scanOutput{Source: name, Error: res.Error.Error()})
			continue
		}
		total += len(res.Report.Actions)
		span.SetAttributes(telemetry.ReportAttributes(res.Report)...)

		if asTable {
			printer.Records(name, res.Report.Actions)
		} else {
			outputs = append(outputs, scanOutput{
				Source:  name,
				Count:   len(res.Report.Actions),
				Actions: nonNil(res.Report.Actions),
			})
		}
	}

	if asTable {
		if len(paths) > 1 {
			printer.Total(len(paths)-len(failures.Errors), total, elapsed)
		}
	} else if err := writeJSON(os.Stdout, outputs); err != nil {
		return err
	}

	if failures.HasErrors() {
		return failures.Combined()
	}
	return scanErr
}

func runAnalyze(cmd *cobra.Command, args []string) (err error) {
	path := args[0]

	ctx, span := telemetry.StartSpan(cmd.Context(), "actionlog.analyze", attribute.String("actionlog.source", path))
	defer func() { telemetry.EndSpan(span, err) }()

	scanner, err := parser.New("expandFrame", rt.cfg.ParserConfig(), parser.WithLogger(rt.log.WithContext(ctx)))
	if err != nil {
		return err
	}

	rc, err := rt.opener.Open(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	report, err := scanner.Scan(ctx, rc)
	if err != nil {
		return errors.WrapIO(err, path)
	}
	report.Source = source.Name(path)
	span.SetAttributes(telemetry.ReportAttributes(report)...)

	analysis := inspect.Analyze(report)
	rt.log.WithFields(logrus.Fields{
		"severity": analysis.Severity,
		"actions":  len(report.Actions),
		"frames":   len(report.FrameChanges),
	}).Debug("analysis finished")

	if rt.cfg.Output.Format == "json" {
		return writeJSON(os.Stdout, struct {
			Report   *model.Report        `json:"report"`
			Analysis *inspect.CrashReport `json:"analysis"`
		}{report, analysis})
	}

	tui.NewPrinter(os.Stdout).Analysis(report, analysis)
	return nil
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	format, err := resolveExportFormat()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := rt.log.WithFields(logrus.Fields{"run_id": runID, "format": format})

	ctx, span := telemetry.StartSpan(cmd.Context(), "actionlog.export",
		attribute.String("actionlog.source", inputFile),
		attribute.String("actionlog.output", outputFile),
		attribute.String("actionlog.format", string(format)),
		attribute.String("actionlog.run_id", runID))
	defer func() { telemetry.EndSpan(span, err) }()

	in, err := rt.opener.Open(ctx, inputFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, finish, err := createOutput(ctx, outputFile, format)
	if err != nil {
		return err
	}

	w, err := writer.New(format, out, writer.Config{
		BatchSize:   rt.cfg.Output.BatchSize,
		Compression: writer.ParseCompression(rt.cfg.Output.Compression),
		RunID:       runID,
		Source:      source.Name(inputFile),
	})
	if err != nil {
		finish(false)
		return err
	}

	pcfg := pipe.DefaultConfig()
	pcfg.ParserConfig = rt.cfg.ParserConfig()
	pipeline := pipe.NewPipeline(pcfg)

	inputSize := localSize(inputFile)
	if inputSize > 0 && !util.IsGzipFile(inputFile) {
		bar := tui.ShowProgress(inputSize, "exporting")
		pipeline.SetProgressCallback(func(s pipe.ProgressStats) {
			bar.Set64(s.BytesRead)
		})
	}

	log.Debug("export started")
	res, err := pipeline.Export(ctx, in, w)
	if err != nil {
		finish(false)
		return errors.Wrap(err, errors.CodeWriteFailed, "export failed").WithContext("output", outputFile)
	}
	if err := finish(true); err != nil {
		return err
	}

	log.WithField("records", res.RecordsWritten).Info("export complete")
	tui.NewPrinter(os.Stdout).Export(&tui.ExportResult{
		Output:     outputFile,
		Format:     string(format),
		RunID:      runID,
		Records:    res.RecordsWritten,
		BytesRead:  res.BytesRead,
		InputSize:  inputSize,
		OutputSize: localSize(outputFile),
		Duration:   res.Duration,
	})
	return nil
}

func resolveExportFormat() (writer.Format, error) {
	if exportFormat != "" {
		return writer.ParseFormat(exportFormat)
	}
	if f, err := writer.FormatFromPath(outputFile); err == nil {
		return f, nil
	}
	return writer.ParseFormat(rt.cfg.Output.Export)
}

// createOutput opens the export destination. For s3:// outputs the data is
// staged in a temporary file and uploaded when finish(true) is called.
// finish(false) discards a partial output.
func createOutput(ctx context.Context, path string, format writer.Format) (io.Writer, func(ok bool) error, error) {
	if !s3.IsURL(path) {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CodeWriteFailed, "failed to create output").WithContext("path", path)
		}
		return f, func(ok bool) error {
			if err := f.Close(); err != nil {
				return errors.Wrap(err, errors.CodeWriteFailed, "failed to close output").WithContext("path", path)
			}
			if !ok {
				os.Remove(path)
			}
			return nil
		}, nil
	}

	loc, err := s3.ParseURL(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInvalidFormat, "invalid S3 output").WithContext("path", path)
	}
	tmp, err := os.CreateTemp("", "actionlog-*"+filepath.Ext(loc.Key))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeWriteFailed, "failed to stage output")
	}
	return tmp, func(ok bool) error {
		defer os.Remove(tmp.Name())
		defer tmp.Close()
		if !ok {
			return nil
		}
		return rt.opener.Upload(ctx, path, tmp, format.ContentType())
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()

	scanner, err := parser.New("expandFrame", rt.cfg.ParserConfig(), parser.WithLogger(rt.log))
	if err != nil {
		return err
	}

	w, err := watch.NewWatcher(rt.cfg.Watch.Debounce, rt.log)
	if err != nil {
		return err
	}
	if err := w.Watch(path); err != nil {
		w.Close()
		return errors.WrapIO(err, path)
	}

	printer := tui.NewPrinter(os.Stdout)
	previous := 0
	rescanner := watch.NewRescanner(ctx, scanner, func(_ string, report *model.Report) {
		printer.WatchUpdate(report, previous, time.Now())
		if sev := inspect.AssessSeverity(report); sev != inspect.SeverityNormal {
			printer.Warn(fmt.Sprintf("severity %s", sev))
		}
		previous = len(report.Actions)
	})
	w.OnChange = rescanner.Scan
	w.OnError = func(p string, err error) {
		err = errors.WrapIO(err, p)
		entry := rt.log.WithError(err).WithField("path", p)
		if errors.IsCode(err, errors.CodeFileNotFound) {
			entry.Warn("file is gone, waiting for it to be recreated")
			return
		}
		entry.Warn("rescan failed")
	}

	// Initial scan
	if err := rescanner.Scan(path); err != nil {
		w.Close()
		return errors.WrapIO(err, path)
	}

	rt.log.WithField("path", path).Info("watching for changes, press Ctrl+C to stop")
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runParsers(cmd *cobra.Command, args []string) error {
	ds := parser.Descriptors()
	if rt.cfg.Output.Format == "json" {
		return writeJSON(os.Stdout, ds)
	}
	for _, d := range ds {
		frames := ""
		if d.Frames {
			frames = " [frames]"
		}
		fmt.Printf("  %-12s %s v%s%s\n", d.ID, d.Name, d.Version, frames)
		fmt.Printf("  %-12s %s\n", "", d.Description)
		if d.Target != "General" {
			fmt.Printf("  %-12s target: %s\n", "", d.Target)
		}
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	paths := rt.manager.GetPaths()
	if len(paths) == 0 {
		fmt.Println("# no config files found, showing defaults")
	}
	for _, p := range paths {
		fmt.Printf("# loaded %s\n", p)
	}
	data, err := yaml.Marshal(rt.cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := ".actionlog.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.CodeWriteFailed, "config file already exists").WithContext("path", path)
	}
	if err := rt.manager.Save(path); err != nil {
		return errors.Wrap(err, errors.CodeWriteFailed, "failed to write config").WithContext("path", path)
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func localSize(path string) int64 {
	if path == source.Stdin || s3.IsURL(path) {
		return 0
	}
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

func nonNil(records []model.ActionRecord) []model.ActionRecord {
	if records == nil {
		return []model.ActionRecord{}
	}
	return records
}
