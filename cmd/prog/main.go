// Command prog is the command-line shell for the programme scheduling core.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/baiirun/programme/internal/apperr"
	"github.com/baiirun/programme/internal/config"
	"github.com/baiirun/programme/internal/db"
	"github.com/baiirun/programme/internal/history"
	"github.com/baiirun/programme/internal/logging"
	"github.com/baiirun/programme/internal/mode"
	"github.com/baiirun/programme/internal/schedule"
)

// options are the persistent flags shared by every command.
type options struct {
	dbPath     string
	configPath string
	project    string
	reduced    bool
	json       bool
}

// app is what a command runs against once the persistent flags are resolved.
type app struct {
	opts    *options
	cfg     config.Config
	db      *db.DB
	dbPath  string
	svc     *schedule.Service
	logger  *logging.Logger
	project string

	closers []io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	opts := a.opts
	root := &cobra.Command{
		Use:   "prog",
		Short: "Programme scheduling from the terminal",
		Long: `A CLI for planning a programme: tasks, phases, milestones, dependencies,
date constraints and working calendars, with undo and redo.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationOffline] == "true" {
				return nil
			}
			return a.open(cmd.Annotations[annotationWatch] == "true")
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (default ~/.prog/prog.db)")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.prog/config.yaml)")
	root.PersistentFlags().StringVarP(&opts.project, "project", "p", "", "project name")
	root.PersistentFlags().BoolVar(&opts.reduced, "reduced", false, "run in reduced-capability mode")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output JSON")

	root.AddCommand(
		newInitCmd(a),
		newTaskCmd(a),
		newMilestoneCmd(a),
		newLinkCmd(a),
		newUnlinkCmd(a),
		newDepsCmd(a),
		newConstrainCmd(a),
		newCalendarCmd(a),
		newGroupsCmd(a),
		newUndoCmd(a),
		newRedoCmd(a),
		newHistoryCmd(a),
		newTimelineCmd(a),
		newTUICmd(a),
	)
	return root
}

// Command annotations read by the root pre-run hook.
const (
	annotationOffline = "offline" // runs without config or database
	annotationWatch   = "watch"   // follows config changes while running
)

// open loads config, opens the database and builds the service.
func (a *app) open(watch bool) error {
	cfgPath := a.opts.configPath
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logOut := io.Writer(os.Stderr)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		logOut = f
	}
	a.logger = logging.New(logOut, logging.ParseLevel(cfg.Logging.Level))

	dbPath := a.opts.dbPath
	if dbPath == "" {
		dbPath = cfg.Storage.Path
	}
	if dbPath == "" {
		p, err := db.DefaultPath()
		if err != nil {
			return err
		}
		dbPath = p
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, database)
	if err := database.Init(); err != nil {
		return err
	}
	a.db = database
	a.dbPath = dbPath

	var provider mode.Provider = mode.Static(a.opts.reduced || cfg.Mode.Reduced)
	if watch && !a.opts.reduced {
		if _, err := os.Stat(cfgPath); err == nil {
			w, err := config.Watch(cfgPath, a.logger)
			if err != nil {
				return err
			}
			a.closers = append(a.closers, w)
			provider = w
		}
	}

	a.project = a.opts.project
	if a.project == "" {
		a.project = cfg.Project.Default
	}

	a.svc = schedule.New(schedule.Deps{
		Store:   database,
		Audit:   database,
		Stacks:  history.NewKVStacks(database),
		Mode:    provider,
		Actor:   schedule.StaticActor(cfg.Actor.ID),
		Normal:  cfg.Limits.Normal,
		Reduced: cfg.Limits.Reduced,
		Logger:  a.logger,
	})
	return nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// exitCode maps error kinds to process exit codes.
func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return 2
	case apperr.KindNotFound:
		return 3
	case apperr.KindConflict, apperr.KindCapacity, apperr.KindUnavailable:
		return 4
	default:
		return 1
	}
}

// execute runs one command line and releases everything it opened.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{opts: &options{}}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}
