package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"

	"record-presenter/examples/blog"
	"record-presenter/internal/config"
	"record-presenter/internal/descriptor"
	"record-presenter/internal/diagnostic"
	"record-presenter/internal/logging"
	"record-presenter/internal/presenter"
	"record-presenter/internal/store/sqlite"
	"record-presenter/internal/telemetry"
)

const serviceName = "presenter"

var errCheckFailed = errors.New("descriptor check failed")

// setup parses env and flags and builds the logger.
func setup(name string, args []string, stderr io.Writer, extra func(*flag.FlagSet)) (config.Config, *slog.Logger, error) {
	var cfg config.Config

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	if extra != nil {
		extra(fs)
	}

	if err := config.ParseFromArgs(&cfg, fs, args); err != nil {
		return cfg, nil, err
	}

	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}

	return cfg, logger, nil
}

func loadDescriptors(cfg config.Config) (*descriptor.File, error) {
	if cfg.Descriptors == "" {
		return blog.Descriptors()
	}

	return descriptor.LoadFile(cfg.Descriptors)
}

func runSeed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, logger, err := setup("seed", args, stderr, nil)
	if err != nil {
		return err
	}

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	g, err := blog.Seed(ctx, st)
	if err != nil {
		return err
	}

	logger.Info("seeded blog fixture", slog.String("db", cfg.DBPath), slog.Int("records", len(g.Records())))
	fmt.Fprintf(stdout, "seeded %d records into %s\n", len(g.Records()), cfg.DBPath)

	return nil
}

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var verbose bool

	cfg, logger, err := setup("check", args, stderr, func(fs *flag.FlagSet) {
		fs.BoolVar(&verbose, "v", false, "dump the parsed descriptors")
	})
	if err != nil {
		return err
	}

	f, err := loadDescriptors(cfg)
	if err != nil {
		return err
	}

	if verbose {
		spew.Fdump(stdout, f)
	}

	res := descriptor.Validate(f)

	if !res.HasErrors() {
		if _, statErr := os.Stat(cfg.DBPath); statErr == nil {
			schemaRes, err := checkSchema(ctx, cfg, f)
			if err != nil {
				return err
			}

			res.Merge(*schemaRes)
		} else {
			logger.Info("database not found, skipping schema check", slog.String("db", cfg.DBPath))
		}
	}

	for _, d := range res.All() {
		fmt.Fprintln(stdout, d.String())
	}

	if res.HasErrors() {
		return fmt.Errorf("%w: %d errors", errCheckFailed, len(res.Errors))
	}

	fmt.Fprintf(stdout, "ok: %d types, %d warnings\n", len(f.Types), len(res.Warnings))

	return nil
}

func checkSchema(ctx context.Context, cfg config.Config, f *descriptor.File) (*diagnostic.Diagnostics, error) {
	reg, err := descriptor.BuildRegistry(f)
	if err != nil {
		return nil, err
	}

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	schema, err := st.Schema(ctx)
	if err != nil {
		return nil, err
	}

	return descriptor.ValidateSchema(reg, schema), nil
}

func runPresent(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		typeName string
		id       string
		mode     string
		include  string
		compact  bool
	)

	cfg, logger, err := setup("present", args, stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&typeName, "type", "", "record type (required)")
		fs.StringVar(&id, "id", "", "record id (required)")
		fs.StringVar(&mode, "mode", string(descriptor.ModePublic), "view mode: public or private")
		fs.StringVar(&include, "include", "", "comma-separated associations to load eagerly")
		fs.BoolVar(&compact, "compact", false, "print compact JSON")
	})
	if err != nil {
		return err
	}

	if typeName == "" || id == "" {
		return errors.New("-type and -id are required")
	}

	viewMode, ok := descriptor.ParseMode(mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", mode)
	}

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.TracingEnabled())
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if serr := shutdown(shutdownCtx); serr != nil {
			logger.Warn("otel shutdown", slog.Any("error", serr))
		}
	}()

	f, err := loadDescriptors(cfg)
	if err != nil {
		return err
	}

	reg, err := descriptor.BuildRegistry(f)
	if err != nil {
		return err
	}

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Load(ctx, typeName, id, splitList(include)...)
	if err != nil {
		return err
	}

	warnings := diagnostic.NewCollector()
	p := presenter.New(reg, st, presenter.Options{
		Sink:        diagnostic.Tee(diagnostic.LogSink{Logger: logger}, warnings),
		Logger:      logger,
		Concurrency: cfg.Concurrency,
	})

	res, err := p.View(ctx, rec, viewMode)
	if err != nil {
		return err
	}

	if n := len(warnings.Messages()); n > 0 {
		logger.Info("view is incomplete", slog.String("record", rec.Key().String()), slog.Int("warnings", n))
	}

	var out []byte
	if compact {
		out, err = json.Marshal(res)
	} else {
		out, err = json.MarshalIndent(res, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}

	fmt.Fprintln(stdout, string(out))

	return nil
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
