package scan

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/parenthunter/internal/parentmap"
)

func TestEvaluate(t *testing.T) {
	targets := NewTargetSet(10, 20)

	m, ok := Evaluate(3, parentmap.Parent(10), targets)
	require.True(t, ok)
	assert.Equal(t, MatchRecord{ID: 3, Parent: 10}, m)

	_, ok = Evaluate(4, parentmap.Parent(11), targets)
	assert.False(t, ok)

	_, ok = Evaluate(5, parentmap.None, targets)
	assert.False(t, ok)

	_, ok = Evaluate(6, parentmap.Parent(0), NewTargetSet())
	assert.False(t, ok)
}

func TestReporterFormats(t *testing.T) {
	var terse, verbose bytes.Buffer
	require.NoError(t, NewReporter(&terse, false).Report(MatchRecord{ID: 3, Parent: 10}))
	require.NoError(t, NewReporter(&verbose, true).Report(MatchRecord{ID: 3, Parent: 10}))

	assert.Equal(t, "3\n", terse.String())
	assert.Equal(t, "id: 3 parent: 10\n", verbose.String())
}

func TestTargetSetValuesSorted(t *testing.T) {
	set := NewTargetSet(9, 1, 5, 1)
	assert.Equal(t, []int64{1, 5, 9}, set.Values())
	assert.Equal(t, 3, set.Len())
}

func TestMatchCache(t *testing.T) {
	c := parentmap.FromEntries(map[parentmap.ObjectID]parentmap.ParentID{
		9: parentmap.Parent(7),
		1: parentmap.None,
		2: parentmap.Parent(7),
		5: parentmap.Parent(8),
	})
	assert.Equal(t, []MatchRecord{{ID: 2, Parent: 7}, {ID: 9, Parent: 7}}, MatchCache(c, NewTargetSet(7)))
}
