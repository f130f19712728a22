// Command linkctl is the operator's tool for a linkspark database: apply
// migrations, inspect profiles and links, and check landing definitions
// without starting the server.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.App().Run(context.Background(), os.Args); err != nil {
		logger.Fatal("linkctl failed", "error", err)
	}
}

// App builds the command tree.
func (r *Runner) App() *cli.Command {
	return &cli.Command{
		Name:  "linkctl",
		Usage: "Inspect and maintain a linkspark database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Database path or libsql:// URL",
				Value:   "data/linkspark.db",
				Sources: cli.EnvVars("DB_PATH"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log debug output",
			},
		},
		Before: r.before,
		After:  r.after,
		Commands: []*cli.Command{
			migrateCommand(r),
			usernameCommand(r),
			profileCommand(r),
			linksCommand(r),
			landingsCommand(r),
		},
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply pending schema migrations and print the version",
		Action: r.Migrate,
	}
}

func usernameCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "username",
		Usage: "Username operations",
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Report whether a username is valid and free",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Action:    r.UsernameCheck,
			},
		},
	}
}

func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Profile operations",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print a public profile as JSON",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Action:    r.ProfileShow,
			},
		},
	}
}

func linksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "links",
		Usage: "Link operations",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List every link of a profile, inactive ones included",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.LinksList,
			},
		},
	}
}

func landingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "landings",
		Usage: "Landing page definitions",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Validate a landings TOML file (the embedded set when omitted)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Action:    r.LandingsCheck,
			},
		},
	}
}
