package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parenthunter",
		Short: "Find pool objects whose parent is one of the given ids",
		Long: `parenthunter walks object ids of a ZFS pool or dataset in ascending order,
asks zdb for each object's parent, and prints the objects whose parent is in
the list you give it.

Resolved id -> parent pairs are checkpointed under ~/.parenthunter/ so an
interrupted scan can be resumed with --resume without asking zdb again.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default: <data dir>/config.yaml)")

	scanCmd := &cobra.Command{
		Use:   "scan <target> [parent...]",
		Short: "Scan object ids of <target> and print objects with a matching parent",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunScan,
	}
	scanCmd.Flags().Int64("start", 1, "First object id to inspect")
	scanCmd.Flags().String("end", "inf", "Last object id to inspect (integer or inf)")
	scanCmd.Flags().BoolP("verbose", "v", false, "Print id and parent for matches and show progress")
	scanCmd.Flags().Bool("debug", false, "Log every zdb invocation and checkpoint save")
	scanCmd.Flags().String("resume", "", "Resume from an existing checkpoint file")
	scanCmd.Flags().String("load-pickle", "", "Alias of --resume")
	_ = scanCmd.Flags().MarkHidden("load-pickle")

	inspectCmd := &cobra.Command{
		Use:   "inspect <checkpoint> [parent...]",
		Short: "Summarize a checkpoint and list stored matches without running zdb",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunInspect,
	}
	inspectCmd.Flags().Bool("json", false, "Print machine-readable output")
	inspectCmd.Flags().BoolP("verbose", "v", false, "Print id and parent for matches")

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check zdb availability and the checkpoint directory",
		Args:  cobra.NoArgs,
		RunE:  RunDoctor,
	}
	doctorCmd.Flags().Bool("json", false, "Print machine-readable doctor output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parenthunter %s\n", version)
		},
	}

	rootCmd.AddCommand(
		scanCmd,
		inspectCmd,
		doctorCmd,
		versionCmd,
	)

	return rootCmd
}
