package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/parenthunter/internal/fileutil"
	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/scan"
)

type InspectSummary struct {
	Path      string             `json:"path"`
	Version   string             `json:"version"`
	ScanID    string             `json:"scan_id,omitempty"`
	Target    string             `json:"target,omitempty"`
	PID       int                `json:"pid,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Entries   int                `json:"entries"`
	NoParent  int                `json:"no_parent"`
	LowestID  uint64             `json:"lowest_id"`
	HighestID uint64             `json:"highest_id"`
	Parents   []int64            `json:"parents,omitempty"`
	Matches   []scan.MatchRecord `json:"matches,omitempty"`
}

func RunInspect(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	verbose, err := OptionalBoolFlag(cmd, "verbose", false)
	if err != nil {
		return err
	}
	targets, err := ParseParents(args[1:])
	if err != nil {
		return err
	}

	cp, err := parentmap.LoadCheckpoint(args[0])
	if err != nil {
		return err
	}
	cache := parentmap.FromEntries(cp.Entries)

	summary := InspectSummary{
		Path:      args[0],
		Version:   cp.Version,
		ScanID:    cp.ScanID,
		Target:    cp.Target,
		PID:       cp.PID,
		CreatedAt: cp.CreatedAt,
		UpdatedAt: cp.UpdatedAt,
		Entries:   cache.Len(),
	}
	ids := cache.IDs()
	if len(ids) > 0 {
		summary.LowestID = uint64(ids[0])
		summary.HighestID = uint64(ids[len(ids)-1])
	}
	for _, id := range ids {
		if parent, _ := cache.Get(id); parent.IsNone() {
			summary.NoParent++
		}
	}
	if targets.Len() > 0 {
		summary.Parents = targets.Values()
		summary.Matches = scan.MatchCache(cache, targets)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, summary)
	}

	fmt.Fprintf(out, "checkpoint: %s (version %s)\n", summary.Path, summary.Version)
	fmt.Fprintf(out, "target: %s scan_id=%s pid=%d\n", summary.Target, summary.ScanID, summary.PID)
	fmt.Fprintf(out, "created: %s updated: %s\n", formatTime(summary.CreatedAt), formatTime(summary.UpdatedAt))
	fmt.Fprintf(out, "entries: %d (no parent: %d) ids: %d..%d\n", summary.Entries, summary.NoParent, summary.LowestID, summary.HighestID)
	if targets.Len() == 0 {
		return nil
	}

	fmt.Fprintf(out, "matches for %v: %d\n", summary.Parents, len(summary.Matches))
	reporter := scan.NewReporter(out, verbose)
	for _, m := range summary.Matches {
		if err := reporter.Report(m); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
