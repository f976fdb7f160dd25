package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/parenthunter/internal/config"
	"github.com/morozRed/parenthunter/internal/parentmap"
)

const fakeZDB = `#!/bin/sh
echo "$4" >> "@LOG@"
case "$4" in
  3) printf 'Object 3\n\tpath\t/a\n\tparent\t10\n' ;;
  4) printf 'Object 4\n\tparent\t11\n' ;;
  6) exit 2 ;;
  7) printf 'Object 7\n\tparent\t10\n\tparent\t10\n' ;;
  *) printf 'Object %s\n\tsize\t512\n' "$4" ;;
esac
`

type scanEnv struct {
	dataDir string
	logPath string
}

func setupScanEnv(t *testing.T) scanEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake zdb is a shell script")
	}
	root := t.TempDir()
	env := scanEnv{
		dataDir: filepath.Join(root, "data"),
		logPath: filepath.Join(root, "calls.log"),
	}
	toolPath := filepath.Join(root, "zdb")
	mustWriteFile(t, toolPath, strings.ReplaceAll(fakeZDB, "@LOG@", env.logPath))
	require.NoError(t, os.Chmod(toolPath, 0755))
	t.Setenv(config.EnvDataDir, env.dataDir)
	t.Setenv(config.EnvTool, toolPath)
	t.Setenv(config.EnvQueryRate, "")
	return env
}

func (e scanEnv) enableFlushOnExit(t *testing.T) {
	t.Helper()
	mustWriteFile(t, filepath.Join(e.dataDir, config.ConfigFileName), "checkpoint:\n  flush_on_exit: true\n")
}

func (e scanEnv) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Fields(string(data))
}

func (e scanEnv) checkpoints(t *testing.T, target string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(e.dataDir, "parent_map_"+target+"_*.json"))
	require.NoError(t, err)
	return matches
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestScanReportsMatchesTerse(t *testing.T) {
	env := setupScanEnv(t)

	stdout, _, err := runRoot(t, "scan", "tank/data", "10", "--end", "5")
	require.NoError(t, err)
	assert.Equal(t, "3\n", stdout)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, env.calls(t))
	assert.Empty(t, env.checkpoints(t, "tank-data"), "no periodic save is due before the 20th entry")
}

func TestScanFlushOnExitWritesCheckpoint(t *testing.T) {
	env := setupScanEnv(t)
	env.enableFlushOnExit(t)

	_, _, err := runRoot(t, "scan", "tank/data", "10", "--end", "5")
	require.NoError(t, err)

	checkpoints := env.checkpoints(t, "tank-data")
	require.Len(t, checkpoints, 1)
	cp, err := parentmap.LoadCheckpoint(checkpoints[0])
	require.NoError(t, err)
	assert.Equal(t, "tank/data", cp.Target)
	assert.Equal(t, map[parentmap.ObjectID]parentmap.ParentID{
		1: parentmap.None,
		2: parentmap.None,
		3: parentmap.Parent(10),
		4: parentmap.Parent(11),
		5: parentmap.None,
	}, cp.Entries)
}

func TestScanVerboseAndToleratedExit(t *testing.T) {
	setupScanEnv(t)

	stdout, stderr, err := runRoot(t, "scan", "tank", "10", "11", "--start", "3", "--end", "6", "--verbose")
	require.NoError(t, err)
	assert.Equal(t, "id: 3 parent: 10\nid: 4 parent: 11\n", stdout)
	assert.Contains(t, stderr, "looking for parent(s): [10 11]")
}

func TestScanResumeSkipsCachedIDs(t *testing.T) {
	env := setupScanEnv(t)
	env.enableFlushOnExit(t)
	resumePath := filepath.Join(t.TempDir(), "resume.json")

	store := parentmap.NewStore(resumePath, "tank", parentmap.WithSaveRetries(0))
	cache := parentmap.FromEntries(map[parentmap.ObjectID]parentmap.ParentID{
		1: parentmap.None,
		2: parentmap.Parent(10),
	})
	require.NoError(t, store.Save(cache))

	stdout, _, err := runRoot(t, "scan", "tank", "10", "--end", "3", "--resume", resumePath)
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n", stdout)
	assert.Equal(t, []string{"3"}, env.calls(t))

	cp, err := parentmap.LoadCheckpoint(resumePath)
	require.NoError(t, err)
	assert.Len(t, cp.Entries, 3)
}

func TestScanEmptyRangeIsNoop(t *testing.T) {
	env := setupScanEnv(t)

	stdout, _, err := runRoot(t, "scan", "tank", "10", "--start", "5", "--end", "1")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, env.calls(t))
}

func TestScanDuplicateParentLinesFails(t *testing.T) {
	setupScanEnv(t)

	_, _, err := runRoot(t, "scan", "tank", "--start", "7", "--end", "8")
	require.Error(t, err)
	assert.True(t, errors.Is(err, parentmap.ErrConsistency))
}

func TestScanMissingToolFails(t *testing.T) {
	setupScanEnv(t)
	t.Setenv(config.EnvTool, filepath.Join(t.TempDir(), "no-such-zdb"))

	_, _, err := runRoot(t, "scan", "tank", "--end", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inspection command")
}

func TestScanRejectsBadArguments(t *testing.T) {
	setupScanEnv(t)

	cases := [][]string{
		{"scan", "tank data", "1"},
		{"scan", "tank", "ten"},
		{"scan", "tank", "--start", "-1"},
		{"scan", "tank", "--end", "soon"},
		{"scan", "tank", "--resume", filepath.Join(t.TempDir(), "missing.json")},
	}
	for _, args := range cases {
		_, _, err := runRoot(t, args...)
		assert.Error(t, err, "expected %v to fail", args)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange(1, "inf")
	require.NoError(t, err)
	assert.Nil(t, r.End)
	assert.Equal(t, parentmap.ObjectID(1), r.Start)

	r, err = ParseRange(0, "10")
	require.NoError(t, err)
	require.NotNil(t, r.End)
	assert.Equal(t, parentmap.ObjectID(10), *r.End)
	assert.False(t, r.Empty())

	r, err = ParseRange(4, "3")
	require.NoError(t, err)
	assert.True(t, r.Empty())
}

func TestParseTarget(t *testing.T) {
	_, err := ParseTarget("tank/data")
	require.NoError(t, err)
	for _, bad := range []string{"", " tank", "tank data", "tank\t"} {
		_, err := ParseTarget(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestInspectListsStoredMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	cache := parentmap.FromEntries(map[parentmap.ObjectID]parentmap.ParentID{
		1: parentmap.None,
		2: parentmap.Parent(7),
		5: parentmap.Parent(8),
		9: parentmap.Parent(7),
	})
	require.NoError(t, parentmap.NewStore(path, "tank", parentmap.WithSaveRetries(0)).Save(cache))

	stdout, _, err := runRoot(t, "inspect", path, "7")
	require.NoError(t, err)
	for _, expected := range []string{"target: tank", "entries: 4 (no parent: 1) ids: 1..9", "matches for [7]: 2", "\n2\n9\n"} {
		assert.Contains(t, stdout, expected)
	}

	stdout, _, err = runRoot(t, "inspect", path, "8", "--json")
	require.NoError(t, err)
	var summary InspectSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 4, summary.Entries)
	require.Len(t, summary.Matches, 1)
	assert.Equal(t, parentmap.ObjectID(5), summary.Matches[0].ID)
}

func TestDoctorReportsMissingTool(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	t.Setenv(config.EnvTool, "zdb")
	t.Setenv(config.EnvQueryRate, "")

	cmd := NewRootCommand("test")
	doctorCmd, _, err := cmd.Find([]string{"doctor"})
	require.NoError(t, err)
	require.NoError(t, doctorCmd.Flags().Set("json", "true"))
	var stdout bytes.Buffer
	doctorCmd.SetOut(&stdout)

	lookPath := func(file string) (string, error) {
		return "", errors.New("not found")
	}
	require.NoError(t, runDoctorWithLookPath(doctorCmd, lookPath))

	var summary DoctorSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.False(t, summary.Healthy)
	assert.False(t, summary.ToolFound)
	assert.True(t, summary.DataDirOK)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "parenthunter test\n", stdout)
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
