package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/parenthunter/internal/config"
	"github.com/morozRed/parenthunter/internal/fileutil"
)

type DoctorSummary struct {
	Mode        string         `json:"mode"`
	Config      *config.Config `json:"config"`
	ToolPath    string         `json:"tool_path,omitempty"`
	ToolFound   bool           `json:"tool_found"`
	DataDirOK   bool           `json:"data_dir_ok"`
	Checkpoints int            `json:"checkpoints"`
	Missing     []string       `json:"missing,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Healthy     bool           `json:"healthy"`
}

func RunDoctor(cmd *cobra.Command, args []string) error {
	return runDoctorWithLookPath(cmd, exec.LookPath)
}

func runDoctorWithLookPath(cmd *cobra.Command, lookPath func(file string) (string, error)) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	summary := DoctorSummary{Mode: "doctor", Config: cfg}

	if resolved, err := lookPath(cfg.Tool.Path); err == nil {
		summary.ToolFound = true
		summary.ToolPath = resolved
	} else {
		summary.Missing = append(summary.Missing, fmt.Sprintf("inspection tool %q", cfg.Tool.Path))
		summary.Suggestions = append(summary.Suggestions, "install zfs utilities or set tool.path / "+config.EnvTool)
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		summary.Missing = append(summary.Missing, "writable data dir "+cfg.DataDir)
		summary.Suggestions = append(summary.Suggestions, "set data_dir or "+config.EnvDataDir+" to a writable directory")
	} else if probe, err := os.CreateTemp(cfg.DataDir, ".doctor-*"); err != nil {
		summary.Missing = append(summary.Missing, "writable data dir "+cfg.DataDir)
		summary.Suggestions = append(summary.Suggestions, "set data_dir or "+config.EnvDataDir+" to a writable directory")
	} else {
		probe.Close()
		_ = os.Remove(probe.Name())
		summary.DataDirOK = true
		matches, _ := filepath.Glob(filepath.Join(cfg.DataDir, "parent_map_*.json"))
		summary.Checkpoints = len(matches)
	}

	sort.Strings(summary.Missing)
	summary.Healthy = len(summary.Missing) == 0

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.PrintJSON(out, summary)
	}

	status := "issues"
	if summary.Healthy {
		status = "ok"
	}
	fmt.Fprintf(out, "doctor: %s\n", status)
	fmt.Fprintf(out, "tool: %s found=%t %s\n", cfg.Tool.Path, summary.ToolFound, summary.ToolPath)
	fmt.Fprintf(out, "data dir: %s writable=%t checkpoints=%d\n", cfg.DataDir, summary.DataDirOK, summary.Checkpoints)
	if cfg.Source != "" {
		fmt.Fprintf(out, "config: %s\n", cfg.Source)
	}
	if len(summary.Missing) > 0 {
		fmt.Fprintf(out, "missing (%d): %s\n", len(summary.Missing), strings.Join(summary.Missing, ", "))
	}
	for _, suggestion := range summary.Suggestions {
		fmt.Fprintf(out, "next: %s\n", suggestion)
	}
	return nil
}
