package execute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/infosec-us-team/ibb/internal/api"
	"github.com/infosec-us-team/ibb/internal/config"
	"github.com/infosec-us-team/ibb/internal/exit"
	"github.com/infosec-us-team/ibb/internal/output"
	"github.com/infosec-us-team/ibb/internal/query"
	"github.com/infosec-us-team/ibb/internal/ratelimit"
	"github.com/infosec-us-team/ibb/internal/value"
)

// Source supplies the documents queried by the runner.
type Source interface {
	// Projects returns the listing of every program.
	Projects(ctx context.Context) (value.Value, error)
	// Program returns the document of a single program.
	Program(ctx context.Context, id string) (value.Value, error)
}

type Runner struct {
	config    *config.Config
	source    Source
	resolver  *query.Resolver
	logger    *slog.Logger
	output    io.Writer
	errOutput io.Writer
	color     bool
}

// New builds a runner that fetches over HTTP, or reads cfg.InputFile when set.
func New(cfg *config.Config) (*Runner, *exit.Result) {
	logger := newLogger(os.Stderr, cfg.Debug)

	var source Source
	if cfg.InputFile != "" {
		source = &fileSource{path: cfg.InputFile, stdin: os.Stdin, maxDepth: cfg.MaxDepth}
	} else {
		client, err := cfg.HTTPClient()
		if err != nil {
			return nil, exit.Errorf("Error creating runner: %v", err)
		}
		limiter := ratelimit.New(cfg.RateLimit)
		logger.Debug("using program mirror", "base_url", cfg.BaseURL, "rate_limit", limiter.Limit())

		source = api.New(client, cfg.BaseURL,
			api.WithLimiter(limiter),
			api.WithLogger(logger),
			api.WithUserAgent("ibb/"+config.Version),
			api.WithMaxBodyBytes(cfg.MaxBodyBytes),
			api.WithMaxDepth(cfg.MaxDepth),
		)
	}

	return &Runner{
		config:    cfg,
		source:    source,
		resolver:  &query.Resolver{MaxDepth: cfg.MaxDepth},
		logger:    logger,
		output:    os.Stdout,
		errOutput: os.Stderr,
		color:     colorEnabled(cfg.Color, os.Stdout, os.Getenv("NO_COLOR")),
	}, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// colorEnabled resolves ColorAuto to on only for a terminal and when NO_COLOR
// is unset.
func colorEnabled(mode config.ColorMode, out *os.File, noColor string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}

	if noColor != "" || out == nil {
		return false
	}
	fd := out.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) SetSource(s Source) {
	r.source = s
}

func (r *Runner) SetColor(on bool) {
	r.color = on
}

func (r *Runner) payloadWriter() io.Writer {
	if r.output == nil {
		return io.Discard
	}
	return r.output
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

// Run executes the configured query and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	if err := r.run(ctx); err != nil {
		_, _ = fmt.Fprintln(r.errorWriter(), errorMessage(err))
		return exit.CodeFailure
	}
	return exit.CodeOK
}

func errorMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return "Error: " + statusErr.Status
	}
	return fmt.Sprintf("Error: %v", err)
}

func (r *Runner) run(ctx context.Context) error {
	program := r.config.Program()
	fields := r.config.Fields()

	switch {
	case program == "" && len(fields) == 0:
		return r.listPrograms(ctx)
	case len(fields) == 0:
		return r.showProgram(ctx, program)
	default:
		return r.queryProgram(ctx, program, fields)
	}
}

func (r *Runner) listPrograms(ctx context.Context) error {
	doc, err := r.source.Projects(ctx)
	if err != nil {
		return err
	}

	tags, err := r.resolver.CollectTagged(doc, r.config.Tag)
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "collected tags", "tag", r.config.Tag, "count", len(tags))

	return r.writeTags(tags)
}

func (r *Runner) showProgram(ctx context.Context, program string) error {
	doc, err := r.source.Program(ctx, program)
	if err != nil {
		return err
	}

	return r.writeValue(doc, r.config.Format.Or(output.FormatCompact))
}

func (r *Runner) queryProgram(ctx context.Context, program string, fields []string) error {
	doc, err := r.document(ctx, program)
	if err != nil {
		return err
	}

	result, err := r.resolver.Resolve(doc, fields)
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "resolved query", "fields", fields, "matches", result.Len())

	return r.writeValue(result, r.config.Format.Or(output.FormatPretty))
}

// document fetches the named program; with a local input there is no name.
func (r *Runner) document(ctx context.Context, program string) (value.Value, error) {
	if program == "" {
		return r.source.Projects(ctx)
	}
	return r.source.Program(ctx, program)
}

func (r *Runner) writeValue(v value.Value, format output.Format) error {
	if err := output.WriteValue(r.payloadWriter(), v, format, r.color); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (r *Runner) writeTags(tags []string) error {
	if err := output.WriteTags(r.payloadWriter(), tags, r.config.TagFormat); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
