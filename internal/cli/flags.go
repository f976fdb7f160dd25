package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/scan"
)

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

func OptionalBoolFlag(cmd *cobra.Command, name string, fallback bool) (bool, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return fallback, nil
	}
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return fallback, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}

// ParseTarget accepts a single pool or dataset name with no embedded whitespace.
func ParseTarget(raw string) (string, error) {
	fields := strings.Fields(raw)
	if len(fields) != 1 || fields[0] != raw {
		return "", fmt.Errorf("target %q must be a single token without whitespace", raw)
	}
	return raw, nil
}

func ParseParents(args []string) (scan.TargetSet, error) {
	parents := make([]int64, 0, len(args))
	for _, arg := range args {
		value, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return scan.TargetSet{}, fmt.Errorf("invalid parent id %q: must be an integer", arg)
		}
		parents = append(parents, value)
	}
	return scan.NewTargetSet(parents...), nil
}

// ParseRange builds the scan range from --start and --end. end may be an
// integer, or "inf"/"unbounded"/"" for a scan that never ends on its own.
// An end below start yields an empty range, not an error.
func ParseRange(start int64, end string) (scan.Range, error) {
	if start < 0 {
		return scan.Range{}, fmt.Errorf("--start must be >= 0, got %d", start)
	}

	switch strings.ToLower(strings.TrimSpace(end)) {
	case "", "inf", "+inf", "infinity", "unbounded":
		return scan.Unbounded(parentmap.ObjectID(start)), nil
	}

	value, err := strconv.ParseUint(strings.TrimSpace(end), 10, 64)
	if err != nil {
		return scan.Range{}, fmt.Errorf("invalid --end %q: must be a non-negative integer or inf", end)
	}

	return scan.Bounded(parentmap.ObjectID(start), parentmap.ObjectID(value)), nil
}
