package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
	"github.com/kirillkom/neurotask/internal/report"
)

func (c *cli) batch(ctx context.Context, args []string) int {
	flags := c.flagSet("batch")
	workers := flags.Int("workers", runtime.NumCPU(), "concurrent extractions")
	reportPath := flags.String("report", "", "write a per-file report to this path (stdout when empty)")
	reportFormat := flags.String("report-format", "", "csv or xlsx; inferred from -report when empty")
	outDir := flags.String("out", "", "write extracted text files into this directory")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() == 0 {
		fmt.Fprintln(c.stderr, "doctext batch: at least one PATH is required")
		return exitUsage
	}

	paths, err := collectFiles(flags.Args())
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext batch: %v\n", err)
		return exitFailure
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(c.stderr, "doctext batch: create output dir: %v\n", err)
			return exitFailure
		}
	}

	app, err := c.openApp(ctx, false)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext: %v\n", err)
		return exitFailure
	}
	defer app.Close()

	rows, err := extractAll(ctx, app.Extractor, paths, *workers, *outDir)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext batch: %v\n", err)
		return exitFailure
	}

	format := *reportFormat
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(*reportPath)), ".")
	}
	if err := c.writeReport(*reportPath, format, rows); err != nil {
		fmt.Fprintf(c.stderr, "doctext batch: %v\n", err)
		return exitFailure
	}

	failed := 0
	for _, row := range rows {
		if row.Outcome != domain.OutcomeOK {
			failed++
		}
	}
	fmt.Fprintf(c.stderr, "doctext batch: %d documents, %d failed\n", len(rows), failed)
	if failed > 0 {
		return exitFailure
	}
	return exitOK
}

// extractAll runs one extraction per path with bounded concurrency. A failed
// document becomes a report row; only cancellation or an output write error
// stops the batch.
func extractAll(ctx context.Context, extractor ports.TextExtractor, paths []string, workers int, outDir string) ([]report.Row, error) {
	if workers <= 0 {
		workers = 1
	}
	rows := make([]report.Row, len(paths))
	names := outputNames(paths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc := fileDocument(path, "")
			start := time.Now()
			result, err := extractor.Extract(gctx, doc)
			rows[i] = report.NewRow(path, doc, result, err, time.Since(start))

			if err == nil && outDir != "" {
				target := filepath.Join(outDir, names[i])
				if werr := os.WriteFile(target, []byte(result.Text), 0o644); werr != nil {
					return fmt.Errorf("write %s: %w", target, werr)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *cli) writeReport(path, format string, rows []report.Row) error {
	if path == "" {
		return report.Write(c.stdout, format, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Write(f, format, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// collectFiles expands directories into the regular files below them.
func collectFiles(inputs []string) ([]string, error) {
	var out []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, input)
			continue
		}
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}
	return out, nil
}

// outputName flattens a path into one file name under the output directory.
func outputName(path string) string {
	clean := strings.TrimLeft(filepath.ToSlash(filepath.Clean(path)), "/")
	return strings.ReplaceAll(clean, "/", "_") + ".txt"
}

// outputNames assigns every path a distinct output name. A path whose
// flattened name is taken gets its input position appended.
func outputNames(paths []string) []string {
	names := make([]string, len(paths))
	used := make(map[string]bool, len(paths))
	for i, path := range paths {
		name := outputName(path)
		for n := i; used[name]; n++ {
			name = fmt.Sprintf("%s.%d.txt", strings.TrimSuffix(outputName(path), ".txt"), n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}
