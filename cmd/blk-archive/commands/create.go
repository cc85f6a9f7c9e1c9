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
	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/config"
)

// configFlags select the configuration of an archive being created:
// a base file, then individual overrides.
type configFlags struct {
	configFile        string
	blockSize         uint64
	dataCompression   string
	streamCompression string
}

func (f *configFlags) register(flagSet *pflag.FlagSet) {
	defaults := config.Default()
	flagSet.StringVar(&f.configFile, "config", "", "YAML configuration to start from")
	flagSet.Uint64Var(&f.blockSize, "block-size", defaults.BlockSize, "stream block size in bytes")
	flagSet.StringVar(&f.dataCompression, "data-compression", defaults.DataCompression, "data slab codec: none, lz4 or zstd")
	flagSet.StringVar(&f.streamCompression, "stream-compression", defaults.StreamCompression, "stream slab codec: none, lz4 or zstd")
}

// resolve builds the configuration: base (or the --config file when
// given) with every explicitly set flag applied over it.
func (f *configFlags) resolve(flagSet *pflag.FlagSet, base *config.Config) (*config.Config, error) {
	cfg := *base
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if flagSet.Changed("block-size") {
		cfg.BlockSize = f.blockSize
	}
	if flagSet.Changed("data-compression") {
		cfg.DataCompression = f.dataCompression
	}
	if flagSet.Changed("stream-compression") {
		cfg.StreamCompression = f.streamCompression
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func createCommand(stdout io.Writer) *cli.Command {
	var (
		common  archiveFlags
		options configFlags
		flagSet *pflag.FlagSet
	)

	return &cli.Command{
		Name:    "create",
		Summary: "Create an empty archive",
		Description: `Create an empty archive in a new or empty directory.

The configuration starts from the built-in defaults, or from --config
when given, and individual flags override it. The new archive ID is
printed on success.`,
		Usage: "blk-archive create --archive DIR [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("create", pflag.ContinueOnError)
			common.register(flagSet)
			options.register(flagSet)
			return flagSet
		},
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			logger, err := common.validate("create", logger)
			if err != nil {
				return err
			}
			cfg, err := options.resolve(flagSet, config.Default())
			if err != nil {
				return err
			}

			stored, err := archive.Create(common.archive, cfg)
			if err != nil {
				return err
			}
			logger.Info("archive created",
				"archive_id", stored.ArchiveID,
				"block_size", stored.BlockSize,
				"data_compression", stored.DataCompression,
			)
			fmt.Fprintln(stdout, stored.ArchiveID)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Create an archive with 64 KiB blocks",
				Command:     "blk-archive create --archive /srv/archive --block-size 65536",
			},
		},
	}
}
