// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/mingnus/blk-archive/cmd/blk-archive/cli"
	"github.com/mingnus/blk-archive/lib/archive"
)

func listCommand(stdout io.Writer) *cli.Command {
	var common archiveFlags

	return &cli.Command{
		Name:    "list",
		Summary: "List the streams of an archive",
		Description: `List every stream in catalog order with its size and pack time.
Streams present on disk but missing from the catalog are listed last
and marked.`,
		Usage: "blk-archive list --archive DIR",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if _, err := common.validate("list", logger); err != nil {
				return err
			}
			return listStreams(stdout, common.archive)
		},
	}
}

func listStreams(stdout io.Writer, root string) error {
	catalog, err := archive.ReadCatalog(root)
	if err != nil {
		return err
	}
	ids, err := archive.ListStreams(root)
	if err != nil {
		return err
	}

	cataloged := make(map[string]bool, len(catalog))
	tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "STREAM\tNAME\tSIZE\tMAPPED\tPACK TIME")
	for _, entry := range catalog {
		cataloged[entry.StreamID] = true
		streamConfig, err := archive.ReadStreamConfig(root, entry.StreamID)
		if err != nil {
			return err
		}
		name := streamConfig.Name
		if name == "" {
			name = streamConfig.SourcePath
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			entry.StreamID, name, streamConfig.Size, streamConfig.MappedSize,
			entry.PackTime.UTC().Format(time.RFC3339))
	}
	for _, id := range ids {
		if !cataloged[id] {
			fmt.Fprintf(tw, "%s\t(not in catalog)\t-\t-\t-\n", id)
		}
	}
	return tw.Flush()
}
