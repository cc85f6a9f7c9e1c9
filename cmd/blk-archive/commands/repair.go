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
	"github.com/mingnus/blk-archive/lib/repair"
)

func repairCommand(stdout io.Writer) *cli.Command {
	var (
		common        archiveFlags
		rebuildHashes bool
	)

	return &cli.Command{
		Name:    "repair",
		Summary: "Rebuild offsets sidecars and the hash index",
		Description: `Rebuild the offsets sidecar of the data, hashes and index files by
scanning their frames. With --rebuild-hashes the hash-index file itself
is regenerated from the data slabs instead.

Use this after a crash left a sidecar missing or stale. A file whose
frames are damaged is reported, not truncated.`,
		Usage: "blk-archive repair --archive DIR [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("repair", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.BoolVar(&rebuildHashes, "rebuild-hashes", false, "regenerate the hash index from the data slabs")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			logger, err := common.validate("repair", logger)
			if err != nil {
				return err
			}
			if err := repair.Repair(common.archive, repair.Options{
				RebuildHashes: rebuildHashes,
				Logger:        logger,
			}); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "repaired")
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Regenerate the hash index",
				Command:     "blk-archive repair --archive /srv/archive --rebuild-hashes",
			},
		},
	}
}
