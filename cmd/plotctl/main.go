// Command plotctl runs the survey engine on local files.
//
//	plotctl traverse [-json] [-open] <segments.json>
//	plotctl kml [-json] [-open] <file.kml>
//	plotctl script [-o out.scr] [-open] <segments.json|file.kml>
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
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
	"github.com/samirrijal/surveyplot/internal/pkg/config"
	"github.com/samirrijal/surveyplot/internal/pkg/logging"
)

const usage = "usage: plotctl <traverse|kml|script> [flags] <file>"

func main() {
	slog.SetDefault(logging.New(os.Stderr, "plotctl", os.Getenv("LOG_LEVEL"), "text"))
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "plotctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	open := fs.Bool("open", false, "do not auto-close imported rings and traverses")
	out := fs.String("o", "", "write the script to this file instead of stdout")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}
	path := fs.Arg(0)

	survey := usecases.NewSurveyService(nil, surveyOptions())

	switch args[0] {
	case "traverse":
		res, err := loadTraverse(ctx, survey, path)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(stdout, res)
		}
		writeTable(stdout, usecases.BuildTable(res, nil, !*open))
		fmt.Fprintf(stdout, "\nArea: %.2f sqm\nPerimeter: %.3f m\n", res.Area, res.TotalDistance)
		writeClosure(stdout, res.Closure)
		return nil

	case "kml":
		imp, err := loadKML(ctx, survey, path)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(stdout, imp)
		}
		writeTable(stdout, usecases.BuildTable(nil, imp.Workspace, !*open))
		totals := usecases.WorkspaceTotals(imp.Workspace, !*open)
		fmt.Fprintf(stdout, "\nLayers: %d\nPoints: %d\n", totals.Layers, totals.Points)
		if totals.AreaText != "" {
			fmt.Fprintf(stdout, "Geodesic area: %s\n", totals.AreaText)
		}
		return nil

	case "script":
		var (
			manual *domain.TraverseResult
			ws     *domain.Workspace
		)
		if isKML(path) {
			imp, err := loadKML(ctx, survey, path)
			if err != nil {
				return err
			}
			ws = imp.Workspace
		} else {
			res, err := loadTraverse(ctx, survey, path)
			if err != nil {
				return err
			}
			manual = res
		}
		if *out == "" {
			return usecases.ExportScript(stdout, manual, ws, !*open)
		}
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		if err := usecases.ExportScript(f, manual, ws, !*open); err != nil {
			f.Close()
			return err
		}
		return f.Close()

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// surveyOptions uses the configured engine settings when a configuration
// loads and the defaults otherwise.
func surveyOptions() usecases.SurveyOptions {
	opts := usecases.DefaultSurveyOptions()
	cfg, err := config.Load("plotctl")
	if err != nil {
		return opts
	}
	opts.PrecisionThreshold = cfg.Survey.PrecisionThreshold
	opts.Labels = cfg.Survey.LabelOptions()
	opts.ViewPadding = cfg.Survey.ViewPadding
	return opts
}

func isKML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".kml")
}

func loadTraverse(ctx context.Context, survey *usecases.SurveyService, path string) (*domain.TraverseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var segments []domain.SegmentInput
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return survey.ComputeTraverse(ctx, usecases.TraverseRequest{Segments: segments})
}

func loadKML(ctx context.Context, survey *usecases.SurveyService, path string) (*usecases.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return survey.ImportKML(ctx, f, filepath.Base(path))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, rows []domain.TableRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tBEARING\tDISTANCE (m)")
	for _, r := range rows {
		if r.Type == "section" {
			fmt.Fprintf(tw, "[%s]\t\t\n", r.Label)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\n", r.Line, r.Bearing, r.Distance)
	}
	tw.Flush()
}

func writeClosure(w io.Writer, c domain.ClosureResult) {
	if c.Perfect {
		fmt.Fprintln(w, "Closure: Perfect closure")
		return
	}
	fmt.Fprintf(w, "Closure: %.3f m %s (precision %s)\n", c.Distance, c.Bearing, c.RatioText)
	if c.Warning {
		fmt.Fprintln(w, "Warning: closure precision is below the configured threshold")
	}
}
