// Command bulkimport loads one CSV, JSON or XLSX file into a registered
// target and prints a summary.
//
// Usage:
//
//	bulkimport -file people.xlsx [-target persons] [-errors-out errors.csv] [-dry-run]
//
// With -dry-run the file is parsed and validated but nothing is written to
// the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
	"github.com/kafkasder-git/starter-function-sub002/internal/config"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/logging"
	"github.com/kafkasder-git/starter-function-sub002/internal/person"
	"github.com/kafkasder-git/starter-function-sub002/internal/store"
)

func main() {
	if err := loadDotEnv(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "bulkimport:", describe(err))
		}
		os.Exit(1)
	}
}

// describe prefers the user message for errors the service knows about.
func describe(err error) string {
	var ue *core.UserError
	if errors.As(err, &ue) {
		return fmt.Sprintf("%s (Code: %s). %s", ue.User.Message, ue.User.Code, ue.User.Action)
	}
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

var errRunFailed = errors.New("import run failed")

// loadDotEnv loads .env files without overriding the environment. A
// missing file is not an error.
func loadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type options struct {
	file      string
	target    string
	errorsOut string
	dryRun    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("bulkimport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "", "CSV, JSON or XLSX file to import")
	fs.StringVar(&o.target, "target", person.TargetKey, "import target")
	fs.StringVar(&o.errorsOut, "errors-out", "", "write failed rows as CSV to this path")
	fs.BoolVar(&o.dryRun, "dry-run", false, "validate without writing to the database")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.file == "" {
		return o, core.ErrNoFile
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	load := config.Load
	if opts.dryRun {
		load = config.LoadOffline
	}
	cfg, err := load()
	if err != nil {
		return err
	}
	logger := logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format)

	service, closeDB, err := newService(ctx, cfg, opts.dryRun, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.file, err)
	}
	defer f.Close()

	if _, _, err := service.ImportFile(ctx, opts.target, filepath.Base(opts.file), f, cfg.Import.MaxFileSize); err != nil {
		return err
	}

	stopCancel := context.AfterFunc(ctx, func() {
		if err := service.Cancel(opts.target); err != nil {
			logger.Warn("cancel failed", "error", err)
		}
	})
	defer stopCancel()

	res, err := service.Result(context.Background(), opts.target)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%d of %d records succeeded\n", res.Summary.Successful, res.Run.Records)
	if res.Summary.Invalid > 0 || res.Summary.Duplicates > 0 || res.Summary.Failed > 0 {
		fmt.Fprintf(stdout, "invalid: %d, duplicates: %d, failed: %d\n",
			res.Summary.Invalid, res.Summary.Duplicates, res.Summary.Failed)
	}
	if res.Run.Truncated > 0 {
		fmt.Fprintf(stdout, "%d records beyond the limit were skipped\n", res.Run.Truncated)
	}

	if opts.errorsOut != "" && res.TotalFailures > 0 {
		if err := writeErrors(service, opts.target, opts.errorsOut); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d failures to %s\n", res.TotalFailures, opts.errorsOut)
	}

	if res.Error != nil {
		return &core.UserError{Technical: errRunFailed, User: *res.Error}
	}
	return nil
}

// newService wires a service with one person target. A dry run uses a
// sink that accepts every batch and keeps no history.
func newService(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (*core.Service, func(), error) {
	importOpts := core.ImportOptions(cfg.Import)

	if dryRun {
		importOpts.DelayBetweenBatches = 0
		service := core.NewService(core.NewRegistry(), nil, core.NewServiceConfig(cfg.Import), logger)
		accept := bulkimport.BatchFunc[person.Person](func(_ context.Context, batch []person.Person) ([]person.Person, error) {
			return batch, nil
		})
		service.Register(core.PersonTargetWithSink(accept, importOpts, cfg.Import.MaxRecords, logger))
		return service, func() {}, nil
	}

	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.EnsureSchema {
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	service := core.NewService(core.NewRegistry(), store.NewRunStore(pool), core.NewServiceConfig(cfg.Import), logger)
	service.Register(core.PersonTarget(pool, importOpts, cfg.Import.MaxRecords, logger))
	return service, pool.Close, nil
}

func writeErrors(service *core.Service, target, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := service.ExportErrors(target, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
