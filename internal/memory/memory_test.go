package memory

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func collect(seq func(func(Fact) bool)) []string {
	var out []string
	for f := range seq {
		out = append(out, f.Content)
	}
	return out
}

func TestRetrieveRanksOverlappingFacts(t *testing.T) {
	s := New(WithClock(fixedClock(time.Unix(0, 0))))
	s.Store("circle area equals pi times radius squared", SourceKnowledge)
	s.Store("email delivery uses smtp", SourceKnowledge)

	got := collect(s.Retrieve("circle area", 5))
	assert.Equal(t, []string{"circle area equals pi times radius squared"}, got)
}

func TestRetrieveOrdering(t *testing.T) {
	s := New(WithClock(fixedClock(time.Unix(0, 0))))
	s.StoreScored("circle radius is 3", SourceTool, 0.5)
	s.Store("circle area is 28.27", SourceTool)
	s.Store("circle area was requested", SourcePerception)
	s.Store("unrelated fact", SourceSystem)

	got := collect(s.Retrieve("circle area", 10))
	assert.Equal(t, []string{
		"circle area was requested",
		"circle area is 28.27",
		"circle radius is 3",
	}, got)
}

func TestRetrieveTiesFallBackToInsertionOrder(t *testing.T) {
	now := time.Unix(100, 0)
	s := New(WithClock(func() time.Time { return now }))
	s.Store("sum of 2 and 3", SourceTool)
	s.Store("sum of 4 and 5", SourceTool)

	assert.Equal(t, []string{"sum of 2 and 3", "sum of 4 and 5"}, collect(s.Retrieve("sum", 5)))
}

func TestRetrieveIsFiniteAndSingleUse(t *testing.T) {
	s := New()
	for i := 0; i < 10; i++ {
		s.Store("factorial result", SourceTool)
	}
	seq := s.Retrieve("factorial", 3)
	assert.Len(t, collect(seq), 3)
	assert.Empty(t, collect(seq))

	assert.Empty(t, collect(s.Retrieve("nothing matches", 3)))
	assert.Empty(t, collect(s.Retrieve("factorial", 0)))
}

func TestRetrieveAboveDropsWeakMatches(t *testing.T) {
	s := New()
	s.StoreScored("circle hint", SourceKnowledge, 0.2)
	s.Store("circle area computed", SourceTool)

	assert.Equal(t, []string{"circle area computed"}, collect(s.RetrieveAbove("circle area", 5, 0.3)))
}

func TestPreferencesAndContextAreLastWriteWins(t *testing.T) {
	s := New(WithPreferences(map[string]string{"units": "metric"}))
	s.SetPreference("units", "imperial")
	s.SetContext(KeyOriginalRequest, "first")
	s.SetContext(KeyOriginalRequest, "second")

	assert.Equal(t, "imperial", s.Preferences()["units"])
	assert.Equal(t, "second", s.Request())

	ctx := s.Context()
	ctx[KeyOriginalRequest] = "mutated"
	assert.Equal(t, "second", s.Request())
}

func TestStoreClampsRelevance(t *testing.T) {
	s := New()
	assert.Equal(t, 1.0, s.StoreScored("a", SourceTool, 7).Relevance)
	assert.Equal(t, 0.0, s.StoreScored("b", SourceTool, -1).Relevance)
	assert.Equal(t, 2, s.Len())
}

func TestFileSinkPersistsWholeState(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	s := New()
	s.SetContext(KeyOriginalRequest, "Add 2 and 3")
	s.Store("add(a=2, b=3) = 5", SourceTool)
	require.NoError(t, s.Persist(context.Background(), sink, "20260101-120000-abcd"))

	snap, err := sink.Load("20260101-120000-abcd")
	require.NoError(t, err)
	assert.Equal(t, "20260101-120000-abcd", snap.SessionID)
	require.Len(t, snap.Facts, 1)
	assert.Equal(t, "Add 2 and 3", snap.Context[KeyOriginalRequest])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

type trackingSink struct {
	openErr  error
	writeErr error
	closed   bool
}

func (s *trackingSink) Open(context.Context, string) (Writer, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s, nil
}

func (s *trackingSink) Write(context.Context, Snapshot) error { return s.writeErr }

func (s *trackingSink) Close() error {
	s.closed = true
	return nil
}

func TestPersistAlwaysClosesWriter(t *testing.T) {
	sink := &trackingSink{writeErr: errors.New("disk full")}
	err := New().Persist(context.Background(), sink, "s")
	assert.Equal(t, xerrors.CodePersistenceFailure, xerrors.CodeOf(err))
	assert.True(t, sink.closed)

	err = New().Persist(context.Background(), &trackingSink{openErr: errors.New("denied")}, "s")
	assert.Equal(t, xerrors.CodePersistenceFailure, xerrors.CodeOf(err))
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"circle", "area", "radius"}, Keywords("What is the circle area, radius = 3 for a circle?"))
	assert.True(t, slices.Contains(Keywords("number_list_to_sum"), "number_list_to_sum"))
}

func TestNewSessionID(t *testing.T) {
	id := NewSessionID(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Regexp(t, `^20260102-030405-[0-9a-f]{8}$`, id)
}
