package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/scan"
)

type scanProgressReporter struct {
	w       io.Writer
	enabled bool
	start   time.Time
	spinner int
	lastLen int
}

// newScanProgressReporter only draws when verbose and w is a terminal.
func newScanProgressReporter(w io.Writer, verbose bool) *scanProgressReporter {
	enabled := false
	if f, ok := w.(*os.File); ok && verbose {
		stat, err := f.Stat()
		enabled = err == nil && (stat.Mode()&os.ModeCharDevice) != 0
	}
	return &scanProgressReporter{
		w:       w,
		enabled: enabled,
		start:   time.Now(),
	}
}

func (r *scanProgressReporter) Update(id parentmap.ObjectID) {
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	r.printStatus(fmt.Sprintf("%s checking id: %d", frame, id))
}

// Clear blanks the status line so a match can be printed on a clean line.
func (r *scanProgressReporter) Clear() {
	if !r.enabled || r.lastLen == 0 {
		return
	}
	fmt.Fprintf(r.w, "\r%s\r", strings.Repeat(" ", r.lastLen))
	r.lastLen = 0
}

func (r *scanProgressReporter) Done(summary scan.Summary) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("scan stopped at id %d (%d ids, %d queried, %d matches in %s)",
		summary.LastID, summary.Processed, summary.Queried, summary.Matches, elapsed))
	fmt.Fprintln(r.w)
}

func (r *scanProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.w, "\r%s", status)
}
