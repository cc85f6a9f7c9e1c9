// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/renameio"
	"github.com/spf13/pflag"

	"github.com/mingnus/blk-archive/cmd/blk-archive/cli"
	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/stream"
)

func catCommand(stdout io.Writer) *cli.Command {
	var (
		common   archiveFlags
		streamID string
		output   string
	)

	return &cli.Command{
		Name:    "cat",
		Summary: "Write the content of a stream",
		Description: `Resolve a stream's mapping against the content store and write its
bytes to stdout, or atomically to --output.`,
		Usage: "blk-archive cat --archive DIR --stream ID [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVarP(&streamID, "stream", "s", "", "stream ID (required)")
			flagSet.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			logger, err := common.validate("cat", logger)
			if err != nil {
				return err
			}
			if streamID == "" {
				return fmt.Errorf("--stream is required")
			}

			entries, err := stream.ReadEntries(archive.StreamPath(common.archive, streamID))
			if err != nil {
				return err
			}
			data, err := archive.OpenData(common.archive, archive.DataOptions{Logger: logger})
			if err != nil {
				return err
			}
			defer data.Close()

			if output == "" {
				buffered := bufio.NewWriter(stdout)
				if _, err := stream.Resolve(entries, data, buffered); err != nil {
					return err
				}
				return buffered.Flush()
			}

			file, err := renameio.TempFile("", output)
			if err != nil {
				return err
			}
			defer file.Cleanup()
			buffered := bufio.NewWriter(file)
			written, err := stream.Resolve(entries, data, buffered)
			if err != nil {
				return err
			}
			if err := buffered.Flush(); err != nil {
				return err
			}
			if err := file.CloseAtomicallyReplace(); err != nil {
				return err
			}
			logger.Info("stream written", "stream", streamID, "output", output, "bytes", written)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Restore a stream to an image file",
				Command:     "blk-archive cat --archive /srv/archive --stream 3f2a9c0d1e4b5a6f -o root.img",
			},
		},
	}
}

func dumpStreamCommand(stdout io.Writer) *cli.Command {
	var (
		common   archiveFlags
		streamID string
	)

	return &cli.Command{
		Name:    "dump-stream",
		Summary: "Print the mapping entries of a stream",
		Usage:   "blk-archive dump-stream --archive DIR --stream ID",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump-stream", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.StringVarP(&streamID, "stream", "s", "", "stream ID (required)")
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if _, err := common.validate("dump-stream", logger); err != nil {
				return err
			}
			if streamID == "" {
				return fmt.Errorf("--stream is required")
			}
			return dumpStream(stdout, archive.StreamPath(common.archive, streamID))
		},
	}
}

func dumpStream(stdout io.Writer, path string) error {
	entries, err := stream.ReadEntries(path)
	if err != nil {
		return err
	}
	buffered := bufio.NewWriter(stdout)
	for i, entry := range entries {
		fmt.Fprintf(buffered, "%8d  %v\n", i, entry)
	}
	return buffered.Flush()
}
