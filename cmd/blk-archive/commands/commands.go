// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the blk-archive command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/mingnus/blk-archive/cmd/blk-archive/cli"
	"github.com/mingnus/blk-archive/lib/version"
)

// Root builds and returns the complete blk-archive command tree.
func Root() *cli.Command {
	return newRoot(os.Stdout, os.Stderr)
}

func newRoot(stdout, stderr io.Writer) *cli.Command {
	var showVersion bool

	root := &cli.Command{
		Name:   "blk-archive",
		Output: stderr,
		Description: `blk-archive: deduplicating archive for block devices.

An archive is a directory holding a content store of compressed,
checksummed data slabs indexed by record hash, and one mapping stream
per packed device that describes its bytes as fills, unmapped ranges
and references to stored records.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("blk-archive", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			createCommand(stdout),
			listCommand(stdout),
			checkCommand(stdout, stderr),
			repairCommand(stdout),
			migrateCommand(stdout),
			catCommand(stdout),
			dumpStreamCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(stdout, "blk-archive %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Create an archive with lz4 data compression",
				Command:     "blk-archive create --archive /srv/archive --data-compression lz4",
			},
			{
				Description: "Verify every stored record",
				Command:     "blk-archive check --archive /srv/archive --workers 8",
			},
			{
				Description: "Recover sidecars after a crash",
				Command:     "blk-archive repair --archive /srv/archive",
			},
			{
				Description: "Re-pack into a new archive",
				Command:     "blk-archive migrate --archive /srv/archive --output /srv/archive.new",
			},
		},
	}
	root.Run = func(_ context.Context, args []string, _ *slog.Logger) error {
		if showVersion {
			fmt.Fprintf(stdout, "blk-archive %s\n", version.Info())
			return nil
		}
		if len(args) > 0 {
			return fmt.Errorf("unexpected argument %q\n\nRun 'blk-archive --help' for usage.", args[0])
		}
		return fmt.Errorf("subcommand required\n\nRun 'blk-archive --help' for usage.")
	}
	return root
}

// archiveFlags are the flags every archive command accepts.
type archiveFlags struct {
	archive string
	verbose bool
}

func (f *archiveFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.archive, "archive", "a", "", "archive directory (required)")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log debug detail")
}

// validate checks the required flags and returns the logger for the
// command, scoped to it.
func (f *archiveFlags) validate(command string, logger *slog.Logger) (*slog.Logger, error) {
	if f.archive == "" {
		return nil, fmt.Errorf("--archive is required")
	}
	if f.verbose {
		logger = cli.NewCommandLogger(slog.LevelDebug)
	}
	return logger.With("command", command, "archive", f.archive), nil
}

// noArgs rejects positional arguments for commands that take none.
func noArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}
	return nil
}
