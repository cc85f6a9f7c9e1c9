// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/mingnus/blk-archive/cmd/blk-archive/cli"
	"github.com/mingnus/blk-archive/lib/config"
	"github.com/mingnus/blk-archive/lib/migrate"
)

func migrateCommand(stdout io.Writer) *cli.Command {
	var (
		common  archiveFlags
		options configFlags
		output  string
		flagSet *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "migrate",
		Summary: "Copy every stream into a new archive",
		Description: `Create a new archive at --output and copy every stream of the source
archive into it. Records are rehashed and deduplicated against the new
store, so migrating also reclaims duplicates the source kept.

The new archive uses the source configuration unless --config or the
individual flags change it. A failed migration leaves --output
incomplete; remove it before retrying.`,
		Usage: "blk-archive migrate --archive DIR --output DIR [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("migrate", pflag.ContinueOnError)
			common.register(flagSet)
			options.register(flagSet)
			flagSet.StringVarP(&output, "output", "o", "", "directory of the new archive (required)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			logger, err := common.validate("migrate", logger)
			if err != nil {
				return err
			}
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			source, err := config.Read(common.archive)
			if err != nil {
				return err
			}
			cfg, err := options.resolve(flagSet, source)
			if err != nil {
				return err
			}

			result, err := migrate.Migrate(ctx, common.archive, output, migrate.Options{
				Config: cfg,
				Logger: logger.With("output", output),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %d streams, %d records (%d stored)\n",
				result.ArchiveID, result.Streams, result.Records, result.NewRecords)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Re-pack with zstd data compression",
				Command:     "blk-archive migrate --archive /srv/archive --output /srv/archive.zstd --data-compression zstd",
			},
		},
	}
}
