// Package scan walks object ids of a pool in ascending order, resolves each
// id's parent through the cache or the inspection tool, and reports objects
// whose parent is in the target set.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/morozRed/parenthunter/internal/parentmap"
	"github.com/morozRed/parenthunter/internal/zdb"
)

// Querier resolves one object through the inspection tool.
type Querier interface {
	Query(ctx context.Context, target string, id parentmap.ObjectID) (zdb.Result, error)
}

// Checkpointer persists the full cache.
type Checkpointer interface {
	Save(c *parentmap.Cache) error
}

// Range is an ascending id range. A nil End means the scan never finishes on
// its own and runs until the context is cancelled.
type Range struct {
	Start parentmap.ObjectID
	End   *parentmap.ObjectID
}

func Bounded(start, end parentmap.ObjectID) Range {
	return Range{Start: start, End: &end}
}

func Unbounded(start parentmap.ObjectID) Range {
	return Range{Start: start}
}

// Empty reports whether r contains no ids, i.e. End is below Start.
func (r Range) Empty() bool {
	return r.End != nil && *r.End < r.Start
}

func (r Range) String() string {
	if r.End == nil {
		return fmt.Sprintf("[%d, inf)", r.Start)
	}
	return fmt.Sprintf("[%d, %d]", r.Start, *r.End)
}

// Summary counts what a run did.
type Summary struct {
	Processed int                `json:"processed"`
	Queried   int                `json:"queried"`
	CacheHits int                `json:"cache_hits"`
	Matches   int                `json:"matches"`
	Saves     int                `json:"saves"`
	LastID    parentmap.ObjectID `json:"last_id"`
}

// EmitFunc receives matches in ascending id order. Returning an error aborts the run.
type EmitFunc func(MatchRecord) error

// Scanner holds everything one scan needs. It is not safe for concurrent use.
type Scanner struct {
	Target       string
	Targets      TargetSet
	Cache        *parentmap.Cache
	Querier      Querier
	Checkpointer Checkpointer
	Logger       *slog.Logger
	// OnID, when set, is called before each id is processed.
	OnID func(id parentmap.ObjectID)
	// FlushOnExit saves entries added since the last periodic save when the
	// range is exhausted or ctx is cancelled. Off, only the periodic saves happen.
	FlushOnExit bool

	savedAt int
}

// Run processes ids of r in ascending order. It stops at the end of the range,
// on the first fatal error, or when ctx is cancelled, in which case ctx.Err()
// is returned. An empty range processes nothing. With FlushOnExit, entries
// added since the last save are flushed on completion and on cancellation,
// never after a fatal error.
func (s *Scanner) Run(ctx context.Context, r Range, emit EmitFunc) (Summary, error) {
	var summary Summary
	if err := s.validate(); err != nil {
		return summary, err
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.savedAt = s.Cache.Len()

	logger.Debug("scan started", "target", s.Target, "range", r.String(), "cached", s.Cache.Len(), "targets", s.Targets.Values())

	id := r.Start
	for !r.Empty() {
		if err := ctx.Err(); err != nil {
			if flushErr := s.flush(&summary); flushErr != nil {
				return summary, flushErr
			}
			logger.Debug("scan cancelled", "last_id", uint64(summary.LastID))
			return summary, err
		}

		if s.OnID != nil {
			s.OnID(id)
		}
		if err := s.step(ctx, id, emit, &summary); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				continue
			}
			return summary, err
		}

		if (r.End != nil && id >= *r.End) || id == math.MaxUint64 {
			break
		}
		id++
	}

	if err := s.flush(&summary); err != nil {
		return summary, err
	}
	logger.Debug("scan finished", "processed", summary.Processed, "queried", summary.Queried, "matches", summary.Matches)
	return summary, nil
}

func (s *Scanner) step(ctx context.Context, id parentmap.ObjectID, emit EmitFunc, summary *Summary) error {
	if parent, ok := s.Cache.Get(id); ok {
		summary.CacheHits++
		summary.Processed++
		summary.LastID = id
		return s.report(id, parent, emit, summary)
	}

	result, err := s.Querier.Query(ctx, s.Target, id)
	if err != nil {
		return err
	}
	summary.Queried++

	if len(result.Parents) == 0 {
		if err := s.insert(id, parentmap.None, summary); err != nil {
			return err
		}
	}
	for _, value := range result.Parents {
		parent := parentmap.Parent(value)
		if err := s.insert(id, parent, summary); err != nil {
			return err
		}
		if err := s.report(id, parent, emit, summary); err != nil {
			return err
		}
	}

	summary.Processed++
	summary.LastID = id
	return nil
}

func (s *Scanner) insert(id parentmap.ObjectID, parent parentmap.ParentID, summary *Summary) error {
	if err := s.Cache.Insert(id, parent); err != nil {
		return fmt.Errorf("inspection of object %d is inconsistent: %w", id, err)
	}
	if s.Cache.CheckpointDue() {
		return s.save(summary)
	}
	return nil
}

func (s *Scanner) report(id parentmap.ObjectID, parent parentmap.ParentID, emit EmitFunc, summary *Summary) error {
	m, ok := Evaluate(id, parent, s.Targets)
	if !ok {
		return nil
	}
	summary.Matches++
	if emit == nil {
		return nil
	}
	return emit(m)
}

func (s *Scanner) save(summary *Summary) error {
	if s.Checkpointer == nil {
		return nil
	}
	if err := s.Checkpointer.Save(s.Cache); err != nil {
		return err
	}
	s.savedAt = s.Cache.Len()
	summary.Saves++
	return nil
}

func (s *Scanner) flush(summary *Summary) error {
	if !s.FlushOnExit || s.Cache.Len() == s.savedAt {
		return nil
	}
	return s.save(summary)
}

func (s *Scanner) validate() error {
	if s.Cache == nil {
		return errors.New("scanner cache is required")
	}
	if s.Querier == nil {
		return errors.New("scanner querier is required")
	}
	return nil
}
