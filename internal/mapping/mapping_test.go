package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestApplyCreatesDeletesUpdates(t *testing.T) {
	completed := datePtr(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	m := Mapping{
		{GoogleID: "g1", NotionID: "n1"},
		{GoogleID: "g2", NotionID: "n2"},
	}
	d := Delta{
		Created: []Entry{{GoogleID: "g3", NotionID: "n3", CompletedAt: completed}},
		Deleted: []string{"g2"},
		Updated: []CompletionUpdate{{GoogleID: "g1", CompletedAt: completed}},
	}

	out := Apply(m, d)
	require.Len(t, out, 2)

	e1, ok := out.ByGoogleID("g1")
	require.True(t, ok)
	assert.Equal(t, "n1", e1.NotionID)
	require.NotNil(t, e1.CompletedAt)
	assert.Equal(t, *completed, *e1.CompletedAt)

	_, ok = out.ByGoogleID("g2")
	assert.False(t, ok)

	e3, ok := out.ByNotionID("n3")
	require.True(t, ok)
	assert.Equal(t, "g3", e3.GoogleID)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	m := Mapping{{GoogleID: "g1", NotionID: "n1"}}
	_ = Apply(m, Delta{
		Deleted: []string{"g1"},
		Updated: []CompletionUpdate{{GoogleID: "g1", CompletedAt: datePtr(time.Now())}},
	})
	assert.Nil(t, m[0].CompletedAt)
	assert.Len(t, m, 1)
}

func TestApplyIdempotent(t *testing.T) {
	completed := datePtr(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	m := Mapping{
		{GoogleID: "g1", NotionID: "n1"},
		{GoogleID: "g2", NotionID: "n2"},
	}
	d := Delta{
		Created: []Entry{{GoogleID: "g3", NotionID: "n3"}},
		Deleted: []string{"g1"},
		Updated: []CompletionUpdate{{GoogleID: "g2", CompletedAt: completed}},
	}

	once := Apply(m, d)
	twice := Apply(once, d)
	assert.Equal(t, once, twice)
}

func TestApplySkipsCreateForDeletedID(t *testing.T) {
	// A pair created and deleted in the same delta must not survive.
	out := Apply(Mapping{}, Delta{
		Created: []Entry{{GoogleID: "g1", NotionID: "n1"}},
		Deleted: []string{"g1"},
	})
	assert.Empty(t, out)
}

func TestPruneRetention(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	m := Mapping{
		{GoogleID: "g1", NotionID: "n1", CompletedAt: datePtr(now.AddDate(0, 0, -8))},
		{GoogleID: "g2", NotionID: "n2", CompletedAt: datePtr(now.AddDate(0, 0, -6))},
		{GoogleID: "g3", NotionID: "n3"},
	}

	out := Prune(m, now, 7)
	require.Len(t, out, 2)
	_, ok := out.ByGoogleID("g1")
	assert.False(t, ok, "entry completed 8 days ago should be pruned")
	_, ok = out.ByGoogleID("g2")
	assert.True(t, ok, "entry completed 6 days ago should be kept")
	_, ok = out.ByGoogleID("g3")
	assert.True(t, ok, "entry without completion date is never pruned")
}

func TestPruneBoundary(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	m := Mapping{
		{GoogleID: "g1", NotionID: "n1", CompletedAt: datePtr(now.AddDate(0, 0, -7))},
	}
	out := Prune(m, now, 7)
	assert.Empty(t, out, "exactly retentionDays old counts as expired")
}
