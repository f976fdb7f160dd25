package scan

import (
	"fmt"
	"io"
	"sort"

	"github.com/morozRed/parenthunter/internal/parentmap"
)

// TargetSet is the immutable set of parent ids a scan reports matches for.
type TargetSet struct {
	parents map[int64]struct{}
}

func NewTargetSet(parents ...int64) TargetSet {
	set := TargetSet{parents: make(map[int64]struct{}, len(parents))}
	for _, p := range parents {
		set.parents[p] = struct{}{}
	}
	return set
}

// Contains reports membership. None is never a member.
func (s TargetSet) Contains(parent parentmap.ParentID) bool {
	v, ok := parent.Value()
	if !ok {
		return false
	}
	_, found := s.parents[v]
	return found
}

func (s TargetSet) Len() int {
	return len(s.parents)
}

// Values returns the set members in ascending order.
func (s TargetSet) Values() []int64 {
	out := make([]int64, 0, len(s.parents))
	for p := range s.parents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})
	return out
}

// MatchRecord is one object whose parent is in the target set.
type MatchRecord struct {
	ID     parentmap.ObjectID `json:"id"`
	Parent int64              `json:"parent"`
}

// Evaluate returns a match when parent belongs to targets.
func Evaluate(id parentmap.ObjectID, parent parentmap.ParentID, targets TargetSet) (MatchRecord, bool) {
	if !targets.Contains(parent) {
		return MatchRecord{}, false
	}
	v, _ := parent.Value()
	return MatchRecord{ID: id, Parent: v}, true
}

// Reporter writes match records: "id: N parent: P" when verbose, the bare id otherwise.
type Reporter struct {
	w       io.Writer
	verbose bool
}

func NewReporter(w io.Writer, verbose bool) *Reporter {
	return &Reporter{w: w, verbose: verbose}
}

func (r *Reporter) Report(m MatchRecord) error {
	var err error
	if r.verbose {
		_, err = fmt.Fprintf(r.w, "id: %d parent: %d\n", m.ID, m.Parent)
	} else {
		_, err = fmt.Fprintf(r.w, "%d\n", m.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to write match for id %d: %w", m.ID, err)
	}
	return nil
}

// MatchCache evaluates every entry of c in ascending id order without querying.
func MatchCache(c *parentmap.Cache, targets TargetSet) []MatchRecord {
	matches := make([]MatchRecord, 0)
	for _, id := range c.IDs() {
		parent, _ := c.Get(id)
		if m, ok := Evaluate(id, parent, targets); ok {
			matches = append(matches, m)
		}
	}
	return matches
}
