// Command doctext extracts plain text from documents on the local disk.
//
// Usage:
//
//	doctext extract [-media-type T] [-json] FILE
//	doctext classify [-media-type T] NAME
//	doctext batch [-workers N] [-report FILE] [-report-format csv|xlsx] [-out DIR] PATH...
//	doctext tasks [-text T] [FILE]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kirillkom/neurotask/internal/bootstrap"
	"github.com/kirillkom/neurotask/internal/config"
	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/observability/logging"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitUnsupported = 3
	exitReadError   = 4
	exitDecodeError = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cli struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "doctext: %v\n", err)
		return exitFailure
	}
	slog.SetDefault(logging.New(stderr, "doctext", cfg.LogLevel))

	c := &cli{cfg: cfg, stdout: stdout, stderr: stderr}
	switch args[0] {
	case "extract":
		return c.extract(ctx, args[1:])
	case "classify":
		return c.classify(args[1:])
	case "batch":
		return c.batch(ctx, args[1:])
	case "tasks":
		return c.tasks(ctx, args[1:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "doctext: unknown command %q\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `usage:
  doctext extract [-media-type T] [-json] FILE
  doctext classify [-media-type T] NAME
  doctext batch [-workers N] [-report FILE] [-report-format csv|xlsx] [-out DIR] PATH...
  doctext tasks [-text T] [FILE]`)
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) openApp(ctx context.Context, planner bool) (*bootstrap.App, error) {
	return bootstrap.New(ctx, c.cfg, bootstrap.Options{Service: "doctext", Planner: planner})
}

func (c *cli) extract(ctx context.Context, args []string) int {
	fs := c.flagSet("extract")
	mediaType := fs.String("media-type", "", "declared media type; the file suffix is used when empty or unknown")
	asJSON := fs.Bool("json", false, "print a JSON object instead of raw text")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "doctext extract: exactly one FILE is required")
		return exitUsage
	}
	path := fs.Arg(0)

	app, err := c.openApp(ctx, false)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext: %v\n", err)
		return exitFailure
	}
	defer app.Close()

	doc := fileDocument(path, *mediaType)
	result, err := app.Extractor.Extract(ctx, doc)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext extract %s: %v\n", path, err)
		return exitCode(err)
	}

	if *asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"name":   doc.Name(),
			"format": result.Format,
			"chars":  result.Chars(),
			"text":   result.Text,
		})
		return exitOK
	}
	fmt.Fprint(c.stdout, result.Text)
	return exitOK
}

func (c *cli) classify(args []string) int {
	fs := c.flagSet("classify")
	mediaType := fs.String("media-type", "", "declared media type")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	name := ""
	if fs.NArg() > 0 {
		name = fs.Arg(0)
	}
	if name == "" && *mediaType == "" {
		fmt.Fprintln(c.stderr, "doctext classify: NAME or -media-type is required")
		return exitUsage
	}

	format := domain.Classify(*mediaType, name)
	fmt.Fprintf(c.stdout, "%s\t%s\n", format, format.Strategy())
	if !format.Supported() {
		return exitUnsupported
	}
	return exitOK
}

func (c *cli) tasks(ctx context.Context, args []string) int {
	fs := c.flagSet("tasks")
	text := fs.String("text", "", "requirements text; wins over FILE")
	mediaType := fs.String("media-type", "", "declared media type of FILE")
	timeout := fs.Duration("timeout", 3*time.Minute, "planning timeout")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	app, err := c.openApp(ctx, true)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext: %v\n", err)
		return exitFailure
	}
	defer app.Close()
	if app.Planner == nil {
		fmt.Fprintln(c.stderr, "doctext tasks: no LLM provider configured")
		return exitFailure
	}

	input := *text
	if input == "" && fs.NArg() > 0 {
		result, err := app.Extractor.Extract(ctx, fileDocument(fs.Arg(0), *mediaType))
		if err != nil {
			fmt.Fprintf(c.stderr, "doctext tasks %s: %v\n", fs.Arg(0), err)
			return exitCode(err)
		}
		input = result.Text
	}

	planCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	plan, err := app.Planner.Plan(planCtx, input)
	if err != nil {
		fmt.Fprintf(c.stderr, "doctext tasks: %v\n", err)
		return exitCode(err)
	}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(plan.Tasks)
	return exitOK
}

func fileDocument(path, mediaType string) *domain.Document {
	var size int64
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		size = info.Size()
	}
	return domain.NewDocument(filepath.Base(path), mediaType, size, func(context.Context) (io.ReadCloser, error) {
		return os.Open(path)
	})
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return exitUnsupported
	case errors.Is(err, domain.ErrReadFailure):
		return exitReadError
	case errors.Is(err, domain.ErrDecodeFailure):
		return exitDecodeError
	case domain.IsKind(err, domain.ErrInvalidInput):
		return exitUsage
	default:
		return exitFailure
	}
}
