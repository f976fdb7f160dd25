package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/scan"
	"github.com/morozRed/parenthunter/internal/zdb"
)

func RunScan(cmd *cobra.Command, args []string) error {
	target, err := ParseTarget(args[0])
	if err != nil {
		return err
	}
	targets, err := ParseParents(args[1:])
	if err != nil {
		return err
	}

	start, err := cmd.Flags().GetInt64("start")
	if err != nil {
		return fmt.Errorf("failed to read --start flag: %w", err)
	}
	end, err := OptionalStringFlag(cmd, "end")
	if err != nil {
		return err
	}
	r, err := ParseRange(start, end)
	if err != nil {
		return err
	}
	verbose, err := OptionalBoolFlag(cmd, "verbose", false)
	if err != nil {
		return err
	}
	debug, err := OptionalBoolFlag(cmd, "debug", false)
	if err != nil {
		return err
	}
	resume, err := OptionalStringFlag(cmd, "resume")
	if err != nil {
		return err
	}
	if resume == "" {
		if resume, err = OptionalStringFlag(cmd, "load-pickle"); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	logger := newLogger(stderr, debug)

	opts := cfg.QuerierOptions()
	opts.Logger = logger
	querier, err := zdb.NewQuerier(opts)
	if err != nil {
		return err
	}

	storeOpts := []parentmap.StoreOption{
		parentmap.WithSaveRetries(cfg.Checkpoint.SaveRetries),
		parentmap.WithLogger(logger),
	}
	var store *parentmap.Store
	var cache *parentmap.Cache
	if resume != "" {
		store, cache, err = parentmap.OpenStore(resume, storeOpts...)
		if err != nil {
			return err
		}
		if meta := store.Metadata(); meta.Target != "" && meta.Target != target {
			logger.Warn("checkpoint was written for a different target", "checkpoint_target", meta.Target, "target", target)
		}
	} else {
		path := parentmap.DefaultPath(cfg.DataDir, target, time.Now(), os.Getpid())
		store = parentmap.NewStore(path, target, storeOpts...)
		cache = parentmap.NewCache()
	}
	cache.SetInterval(cfg.Checkpoint.Interval)

	if verbose {
		fmt.Fprintf(stderr, "looking for parent(s): %v\n", targets.Values())
		fmt.Fprintf(stderr, "checkpoint: %s (%d cached)\n", store.Path(), cache.Len())
	}

	progress := newScanProgressReporter(stderr, verbose)
	reporter := scan.NewReporter(cmd.OutOrStdout(), verbose)
	scanner := &scan.Scanner{
		Target:       target,
		Targets:      targets,
		Cache:        cache,
		Querier:      querier,
		Checkpointer: store,
		Logger:       logger,
		OnID:         progress.Update,
		FlushOnExit:  cfg.Checkpoint.FlushOnExit,
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	summary, err := scanner.Run(ctx, r, func(m scan.MatchRecord) error {
		progress.Clear()
		return reporter.Report(m)
	})
	progress.Done(summary)
	logger.Debug("scan summary",
		"processed", summary.Processed,
		"queried", summary.Queried,
		"cache_hits", summary.CacheHits,
		"matches", summary.Matches,
		"saves", summary.Saves,
		"last_id", uint64(summary.LastID),
	)

	if errors.Is(err, context.Canceled) {
		if verbose {
			fmt.Fprintf(stderr, "scan interrupted at id %d; resume with --resume %s\n", summary.LastID, store.Path())
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan of %s aborted after id %d: %w", target, summary.LastID, err)
	}
	if verbose {
		fmt.Fprintf(stderr, "scanned %d ids (%d queried, %d cached), %d matches\n",
			summary.Processed, summary.Queried, summary.CacheHits, summary.Matches)
	}
	return nil
}
