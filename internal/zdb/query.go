// Package zdb runs the pool inspection tool for single objects and extracts
// the parent id from whatever text it prints.
package zdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/morozRed/parenthunter/internal/parentmap"
)

const (
	DefaultTool        = "zdb"
	DefaultParentLabel = "parent"
)

// DefaultArgs are passed to the tool ahead of the target and object id.
var DefaultArgs = []string{"-L", "-dddd"}

// CommandRunner executes name with args and returns combined stdout/stderr and
// the exit code. err is reserved for failures to run the command at all.
type CommandRunner func(ctx context.Context, name string, args ...string) (output string, exitCode int, err error)

// QueryError is an inspection failure that the tolerance policy does not cover.
type QueryError struct {
	Command  string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *QueryError) Error() string {
	cmdline := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.Err != nil {
		return fmt.Sprintf("inspection command `%s` failed (exit %d): %v", cmdline, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("inspection command `%s` failed (exit %d): %s", cmdline, e.ExitCode, strings.TrimSpace(e.Output))
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Result is what one inspection produced.
type Result struct {
	// Parents holds every parent value found, in output order. Normally zero or one.
	Parents []int64
	// Output is the raw captured text.
	Output string
	// ExitCode of the tool; non-zero only when tolerated.
	ExitCode int
}

type Options struct {
	Tool        string
	Args        []string
	ParentLabel string
	// TolerateExitCodes lists non-zero exit codes treated as "no data". Empty
	// means every non-zero exit is tolerated.
	TolerateExitCodes []int
	// QueryRate caps invocations per second. Zero disables throttling.
	QueryRate float64
	Runner    CommandRunner
	Logger    *slog.Logger
}

// Querier invokes the inspection tool once per object id.
type Querier struct {
	tool     string
	args     []string
	label    string
	tolerate map[int]bool
	limiter  *rate.Limiter
	runner   CommandRunner
	logger   *slog.Logger
}

func NewQuerier(opts Options) (*Querier, error) {
	tool := strings.TrimSpace(opts.Tool)
	if tool == "" {
		tool = DefaultTool
	}
	args := opts.Args
	if args == nil {
		args = DefaultArgs
	}
	label := strings.TrimSpace(opts.ParentLabel)
	if label == "" {
		label = DefaultParentLabel
	}
	if opts.QueryRate < 0 {
		return nil, errors.New("query rate must be >= 0")
	}
	runner := opts.Runner
	if runner == nil {
		runner = defaultRunner
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Querier{
		tool:   tool,
		args:   append([]string(nil), args...),
		label:  label,
		runner: runner,
		logger: logger,
	}
	if len(opts.TolerateExitCodes) > 0 {
		q.tolerate = make(map[int]bool, len(opts.TolerateExitCodes))
		for _, code := range opts.TolerateExitCodes {
			q.tolerate[code] = true
		}
	}
	if opts.QueryRate > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(opts.QueryRate), 1)
	}
	return q, nil
}

// Query inspects one object of target. A tolerated non-zero exit yields a
// Result built from whatever output was captured.
func (q *Querier) Query(ctx context.Context, target string, id parentmap.ObjectID) (Result, error) {
	if strings.TrimSpace(target) == "" || len(strings.Fields(target)) != 1 {
		return Result{}, fmt.Errorf("invalid target %q: must be a single token", target)
	}
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	args := make([]string, 0, len(q.args)+2)
	args = append(args, q.args...)
	args = append(args, target, id.String())

	q.logger.Debug("running inspection", "command", q.tool, "args", args)
	output, exitCode, err := q.runner(ctx, q.tool, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &QueryError{Command: q.tool, Args: args, ExitCode: exitCode, Output: output, Err: err}
	}
	if exitCode != 0 {
		if !q.tolerates(exitCode) {
			return Result{}, &QueryError{Command: q.tool, Args: args, ExitCode: exitCode, Output: output}
		}
		q.logger.Debug("tolerated inspection exit", "id", uint64(id), "exit_code", exitCode, "output_len", len(output))
	}

	parents, skipped := ParseParentOutput(output, q.label)
	for _, line := range skipped {
		q.logger.Debug("unparseable parent line", "id", uint64(id), "line", line)
	}
	q.logger.Debug("inspection done", "id", uint64(id), "output_len", len(output), "parents", len(parents))

	return Result{Parents: parents, Output: output, ExitCode: exitCode}, nil
}

func (q *Querier) tolerates(exitCode int) bool {
	if q.tolerate == nil {
		return true
	}
	return q.tolerate[exitCode]
}

// ParseParentOutput returns the parent value of every line carrying label as a
// whitespace-delimited token; the value is the last token on that line. Lines
// whose last token is not an integer are returned in skipped.
func ParseParentOutput(output string, label string) (parents []int64, skipped []string) {
	if output == "" || !strings.Contains(output, label) {
		return nil, nil
	}

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !hasLabel(fields[:len(fields)-1], label) {
			continue
		}
		value, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			skipped = append(skipped, strings.TrimSpace(line))
			continue
		}
		parents = append(parents, value)
	}
	return parents, skipped
}

func hasLabel(fields []string, label string) bool {
	for _, field := range fields {
		if field == label {
			return true
		}
	}
	return false
}

func defaultRunner(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return string(out), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return string(out), exitErr.ExitCode(), nil
	}
	return string(out), -1, err
}
