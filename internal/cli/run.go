package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/framegraph"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/store"
)

var tracer = otel.Tracer("github.com/roach88/framegraph/internal/cli")

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames          int
	Graph           string // graph compiled every frame
	First           string // graph compiled for frame 0 instead of Graph
	History         int    // ring depth
	Database        string
	OrderedAliasing bool
}

// FrameSummary is one executed frame.
type FrameSummary struct {
	Frame      int64    `json:"frame"`
	Graph      string   `json:"graph"`
	Order      []string `json:"order"`
	Slots      int      `json:"slots"`
	Capacity   int64    `json:"capacity"`
	LayoutHash string   `json:"layout_hash"`
	Commands   int      `json:"commands"`
	ReportID   string   `json:"report_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>",
		Short: "Compile and execute a graph for several frames",
		Long: `Compile and execute a graph for consecutive frames through a history ring.

Each frame is compiled against the frames before it, so name@-1 imports
resolve to what the previous frame retained. Passes execute against a
recording backend that logs every pass and opens a span per pass when
--otlp-endpoint is set.

A graph whose steady state imports history cannot compile as frame 0;
name a warm-up graph from the same source with --first.

Example:
  framegraph run graphs/deferred.cue --graph deferred --first warmup --frames 4
  framegraph run graphs/bloom.yaml --frames 2 --db reports.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Frames, "frames", "n", 1, "number of frames to compile and execute")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "graph to run (required when the source holds several)")
	cmd.Flags().StringVar(&opts.First, "first", "", "graph to compile for frame 0")
	cmd.Flags().IntVar(&opts.History, "history", 2, "number of compiled frames kept for history imports")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive every frame's report in this SQLite database")
	cmd.Flags().BoolVar(&opts.OrderedAliasing, "ordered-aliasing", false, "alias slots only between dependency-ordered resources")

	return cmd
}

func runFrames(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Frames < 1 {
		return NewExitError(ExitCommandError, "--frames must be at least 1")
	}

	all, err := LoadGraphs(path, "")
	if err != nil {
		return outputLoadError(formatter, err)
	}
	steady, err := pickGraph(path, all, opts.Graph)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	first := steady
	if opts.First != "" {
		if first, err = pickGraph(path, all, opts.First); err != nil {
			return outputLoadError(formatter, err)
		}
	}

	var st *store.Store
	if opts.Database != "" {
		if st, err = store.Open(opts.Database); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// Stop between frames on Ctrl-C
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var compileOpts []framegraph.CompileOption
	if opts.OrderedAliasing {
		compileOpts = append(compileOpts, framegraph.RequireOrderedAliasing())
	}

	ring := framegraph.NewRing(opts.History)
	rec := &spanRecorder{tracer: tracer}
	summaries := make([]FrameSummary, 0, opts.Frames)

	for i := range opts.Frames {
		if err := ctx.Err(); err != nil {
			slog.Info("run interrupted", "frame", i)
			break
		}
		spec := steady
		if i == 0 {
			spec = first
		}

		summary, err := runFrame(ctx, ring, rec, spec, compileOpts)
		if err != nil {
			code := failureCode(err)
			_ = formatter.Error(code, fmt.Sprintf("frame %d (%s): %v", ring.Frame(), spec.Name, err), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("frame %d failed", ring.Frame()), err)
		}
		if st != nil {
			id, err := st.WriteReport(ctx, summary.report)
			if err != nil {
				_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
				return WrapExitError(ExitCommandError, "archiving report", err)
			}
			summary.ReportID = id
		}
		summaries = append(summaries, summary.FrameSummary)

		if formatter.Format != "json" {
			s := summary.FrameSummary
			fmt.Fprintf(formatter.Writer, "frame %d %s: %d pass(es), %d slot(s), %s, layout %s\n",
				s.Frame, s.Graph, len(s.Order), s.Slots, formatCapacity(s.Capacity), shortHash(s.LayoutHash))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	return nil
}

type frameRun struct {
	FrameSummary
	report *ir.CompileReport
}

// runFrame builds, compiles, reports and executes one frame.
func runFrame(ctx context.Context, ring *framegraph.Ring, rec *spanRecorder, spec *ir.GraphSpec, opts []framegraph.CompileOption) (frameRun, error) {
	plan, err := compiler.Build(spec, compiler.WithRing(ring), compiler.WithBody(recordBody))
	if err != nil {
		return frameRun{}, err
	}
	g, err := ring.Compile(ctx, plan.Builder, opts...)
	if err != nil {
		return frameRun{}, err
	}
	report, err := compiler.Report(plan, g)
	if err != nil {
		return frameRun{}, err
	}
	layout, err := ir.LayoutHash(report)
	if err != nil {
		return frameRun{}, err
	}

	rec.commands = 0
	if err := g.Execute(ctx, rec); err != nil {
		return frameRun{}, err
	}

	return frameRun{
		FrameSummary: FrameSummary{
			Frame:      report.Frame,
			Graph:      report.Graph,
			Order:      report.PassOrder(),
			Slots:      len(report.Slots),
			Capacity:   totalCapacity(report),
			LayoutHash: layout,
			Commands:   rec.commands,
		},
		report: report,
	}, nil
}

func pickGraph(path string, specs []*ir.GraphSpec, name string) (*ir.GraphSpec, error) {
	if name == "" {
		if len(specs) != 1 {
			return nil, &LoadError{Code: ErrCodeNoSuchGraph, Message: fmt.Sprintf("%s holds %d graphs; pick one with --graph", path, len(specs))}
		}
		return specs[0], nil
	}
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNoSuchGraph, Message: fmt.Sprintf("%s: graph %q not found", path, name)}
}

// passEncoder is what spanRecorder hands a pass body.
type passEncoder struct {
	span     trace.Span
	commands []string
}

func (e *passEncoder) record(format string, args ...any) {
	e.commands = append(e.commands, fmt.Sprintf(format, args...))
}

// spanRecorder is the run command's backend: it records nothing on a GPU,
// logs each pass and wraps it in a span.
type spanRecorder struct {
	tracer   trace.Tracer
	commands int
}

// Begin implements framegraph.Recorder.
func (r *spanRecorder) Begin(ctx context.Context, p framegraph.PassInfo) (framegraph.Encoder, error) {
	_, span := r.tracer.Start(ctx, "framegraph.pass", trace.WithAttributes(
		attribute.String("framegraph.pass.name", p.Name),
		attribute.String("framegraph.pass.kind", p.Kind.String()),
		attribute.String("framegraph.queue", fmt.Sprintf("%v[%d]", p.Family, p.Queue.Index)),
		attribute.Int("framegraph.pass.position", p.Position),
	))
	slog.Debug("pass begin", "pass", p.Name, "kind", p.Kind, "position", p.Position)
	return &passEncoder{span: span}, nil
}

// End implements framegraph.Recorder.
func (r *spanRecorder) End(_ context.Context, p framegraph.PassInfo, enc framegraph.Encoder, passErr error) error {
	e, ok := enc.(*passEncoder)
	if !ok {
		return fmt.Errorf("pass %s: unexpected encoder %T", p.Name, enc)
	}
	defer e.span.End()
	r.commands += len(e.commands)

	if passErr != nil {
		e.span.RecordError(passErr)
		e.span.SetStatus(codes.Error, passErr.Error())
		slog.Warn("pass failed", "pass", p.Name, "error", passErr)
		return nil
	}
	e.span.SetAttributes(attribute.Int("framegraph.pass.commands", len(e.commands)))
	slog.Info("pass recorded", "pass", p.Name, "commands", e.commands)
	return nil
}

// recordBody records one command per bound resource, in key order.
func recordBody(enc framegraph.Encoder, res compiler.DescribedResources) error {
	e, ok := enc.(*passEncoder)
	if !ok {
		return fmt.Errorf("pass %s: unexpected encoder %T", res.Pass, enc)
	}
	keys := make([]string, 0, len(res.Handles))
	for k := range res.Handles {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		p := res.Handles[k]
		e.record("%s %s slot=%d frame=%d", res.Access[k], k, p.Slot, p.FrameNumber)
	}
	return nil
}
