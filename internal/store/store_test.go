package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/stretchr/testify/require"
)

func session(id string, status activity.Status) *activity.Session {
	return &activity.Session{
		ID:     id,
		Kind:   activity.KindRPS,
		Status: status,
		Phase:  activity.PhaseLobby,
		Participants: []*activity.Participant{
			{UserID: "alice", Joined: true},
			{UserID: "bob"},
		},
		Scores: map[string]int{"alice": 0, "bob": 0},
	}
}

func TestArcade_Store_Memory_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore()
	_, ok := m.Load("missing")
	require.False(t, ok)

	m.Save(session("s1", activity.StatusPending))
	got, ok := m.Load("s1")
	require.True(t, ok)
	require.Equal(t, "s1", got.ID)

	m.Delete("s1")
	_, ok = m.Load("s1")
	require.False(t, ok)
}

func TestArcade_Store_Memory_ListFilters(t *testing.T) {
	t.Parallel()

	m := NewMemoryStore()
	m.Save(session("s1", activity.StatusPending))
	m.Save(session("s2", activity.StatusRunning))
	m.Save(session("s3", activity.StatusEnded))

	all := m.List(nil)
	require.Len(t, all, 3)

	pending := m.List(func(s *activity.Session) bool { return s.Status == activity.StatusPending })
	require.Len(t, pending, 1)
	require.Equal(t, "s1", pending[0].ID)
}

func TestArcade_Store_Snapshot_PersistsAcrossRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := slog.New(slog.DiscardHandler)

	s1, err := NewSnapshotStore(&SnapshotConfig{Logger: log, Dir: dir})
	require.NoError(t, err)

	sess := session("s1", activity.StatusRunning)
	sess.Scores["alice"] = 128
	s1.Save(sess)
	s1.Save(session("s2", activity.StatusPending))
	s1.Delete("s2")

	s2, err := NewSnapshotStore(&SnapshotConfig{Logger: log, Dir: dir})
	require.NoError(t, err)

	got, ok := s2.Load("s1")
	require.True(t, ok)
	require.Equal(t, activity.StatusRunning, got.Status)
	require.Equal(t, 128, got.Scores["alice"])

	_, ok = s2.Load("s2")
	require.False(t, ok)
}

func TestArcade_Store_Snapshot_SkipsCorruptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := slog.New(slog.DiscardHandler)

	s1, err := NewSnapshotStore(&SnapshotConfig{Logger: log, Dir: dir})
	require.NoError(t, err)
	s1.Save(session("good", activity.StatusPending))

	require.NoError(t, writeFile(dir, "bad.json", []byte("{not json")))

	s2, err := NewSnapshotStore(&SnapshotConfig{Logger: log, Dir: dir})
	require.NoError(t, err)
	_, ok := s2.Load("good")
	require.True(t, ok)
	_, ok = s2.Load("bad")
	require.False(t, ok)
}

func writeFile(dir, name string, data []byte) error {
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func TestArcade_Store_Snapshot_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSnapshotStore(&SnapshotConfig{Dir: t.TempDir()})
	require.Error(t, err)
	_, err = NewSnapshotStore(&SnapshotConfig{Logger: slog.New(slog.DiscardHandler)})
	require.Error(t, err)
}
