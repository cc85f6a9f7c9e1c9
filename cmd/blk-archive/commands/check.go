// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/mingnus/blk-archive/cmd/blk-archive/cli"
	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/check"
	"github.com/mingnus/blk-archive/lib/slab"
)

// exitDamaged is the exit code of a check that found damage.
const exitDamaged = 2

func checkCommand(stdout, stderr io.Writer) *cli.Command {
	var (
		common  archiveFlags
		workers int
	)

	return &cli.Command{
		Name:    "check",
		Summary: "Verify every stored record against its hash",
		Description: `Rehash every record of every data slab and compare it with the
hash-index entry recorded for it.

Exits 0 when the archive is intact, 2 when damage was found (the damage
is reported on stderr), and 1 when the check could not run.`,
		Usage: "blk-archive check --archive DIR [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.IntVarP(&workers, "workers", "j", runtime.NumCPU(), "slab ranges verified concurrently")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := noArgs(args); err != nil {
				return err
			}
			logger, err := common.validate("check", logger)
			if err != nil {
				return err
			}
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1, got %d", workers)
			}

			result, err := check.Check(ctx, common.archive, check.Options{Workers: workers, Logger: logger})
			if isDamage(err) {
				fmt.Fprintf(stderr, "archive damaged: %v\n", err)
				return &cli.ExitError{Code: exitDamaged}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "ok: %d slabs, %d records verified\n", result.Slabs, result.Records)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Check with four workers",
				Command:     "blk-archive check --archive /srv/archive -j 4",
			},
		},
	}
}

// isDamage reports whether err describes a damaged archive rather than
// a failure to examine it.
func isDamage(err error) bool {
	if err == nil {
		return false
	}
	var (
		integrity *check.IntegrityError
		checksum  *slab.ChecksumError
		mismatch  *archive.CountMismatchError
		magic     *slab.MagicError
		truncated *slab.TruncatedError
	)
	return errors.As(err, &integrity) ||
		errors.As(err, &checksum) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &magic) ||
		errors.As(err, &truncated) ||
		errors.Is(err, slab.ErrOffsetsStale) ||
		errors.Is(err, check.ErrTooManySlabs)
}
