package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/sakif/linkspark/internal/apperror"
	"github.com/sakif/linkspark/internal/landing"
	"github.com/sakif/linkspark/internal/repository/sqlite"
	"github.com/sakif/linkspark/internal/service"
)

// Runner holds the dependencies of every command. The database is opened
// lazily by the commands that need it and closed by the root After hook.
type Runner struct {
	logger *log.Logger
	output io.Writer
	db     *sqlite.DB
}

// RunnerOpts configures NewRunner. Zero values get sensible defaults.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{logger: opts.Logger, output: opts.Output}
}

// slogger adapts the CLI logger for the services, which log through slog.
func (r *Runner) slogger() *slog.Logger {
	return slog.New(r.logger)
}

func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		r.logger.SetLevel(log.DebugLevel)
	}
	return ctx, nil
}

// open connects to the database named by --db on first use.
func (r *Runner) open(cmd *cli.Command) (*sqlite.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	dsn := cmd.String("db")
	r.logger.Debug("opening database", "dsn", dsn)
	db, err := sqlite.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Migrate reports the schema version. Opening the database already
// applied anything pending.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.open(cmd)
	if err != nil {
		return err
	}
	version, err := db.MigrationVersion(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("database is up to date", "version", version)
	return r.writef("schema version %d\n", version)
}

// UsernameCheck prints whether a username can be claimed.
func (r *Runner) UsernameCheck(ctx context.Context, cmd *cli.Command) error {
	candidate := cmd.StringArg("username")
	if candidate == "" {
		return errors.New("usage: linkctl username check <username>")
	}

	db, err := r.open(cmd)
	if err != nil {
		return err
	}
	profiles := service.NewProfileService(db, r.slogger())
	available, err := profiles.UsernameAvailable(ctx, candidate, "")
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
		return r.writef("%s: invalid (%s)\n", candidate, appErr.Message)
	}
	if err != nil {
		return err
	}
	if available {
		return r.writef("%s: available\n", service.NormalizeUsername(candidate))
	}
	return r.writef("%s: taken\n", service.NormalizeUsername(candidate))
}

// ProfileShow prints what the public page for username would show.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	db, err := r.open(cmd)
	if err != nil {
		return err
	}
	public := service.NewPublicService(db, db, r.slogger())
	page, err := public.Resolve(ctx, username)
	if err != nil {
		return err
	}
	if page.State == service.PublicNotFound {
		return fmt.Errorf("no profile @%s", page.Username)
	}
	return r.writeJSON(page)
}

// LinksList prints every link of a profile with its click count.
func (r *Runner) LinksList(ctx context.Context, cmd *cli.Command) error {
	username := service.NormalizeUsername(cmd.StringArg("username"))
	db, err := r.open(cmd)
	if err != nil {
		return err
	}
	profile, err := db.GetProfileByUsername(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("no profile @%s", username)
	}
	if err != nil {
		return err
	}

	links, err := service.NewLinkService(db, nil, r.slogger()).List(ctx, profile.UserID)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(links)
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tACTIVE\tCLICKS\tTITLE\tURL")
	for _, l := range links {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%d\t%s\t%s\n", l.Order, l.ID, l.Active, l.Clicks, l.Title, l.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return nil
}

// LandingsCheck parses a landings file and lists what it defines.
func (r *Runner) LandingsCheck(ctx context.Context, cmd *cli.Command) error {
	registry := landing.Default()
	if path := cmd.StringArg("file"); path != "" {
		var err error
		if registry, err = landing.Load(path); err != nil {
			return err
		}
	}
	for _, name := range registry.Names() {
		l, _ := registry.Get(name)
		if err := r.writef("/go/%s → %s (delay %s, cancellable %t)\n", name, l.Target, l.Delay, l.Cancellable); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeJSON(data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := r.output.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writef(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
