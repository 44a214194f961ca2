package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.CreateInstance("Person", map[string]any{"person_id": "P1", "name": "Ada", "skills": []any{"welding"}})
	require.NoError(t, err)
	_, err = s.CreateInstance("Person", map[string]any{"person_id": "P/2", "name": "Bob"})
	require.NoError(t, err)
	_, err = s.CreateInstance("Team", map[string]any{"team_id": "T1"})
	require.NoError(t, err)
	require.NoError(t, s.AddLink("member_of", "P1", "T1"))
	require.NoError(t, s.AddLink("member_of", "P/2", "T1"))
	_, err = s.UpdateFields("Person", "P1", map[string]any{"age": 30})
	require.NoError(t, err)
	require.NoError(t, s.RemoveLink("member_of", "P/2", "T1"))
	require.NoError(t, s.DeleteInstance("Person", "P/2", false))
}

func TestFileJournalRoundTrip(t *testing.T) {
	pm := NewPathManager(t.TempDir(), "tmhna.ontology")
	s := newTestStore(t, WithJournal(NewFileJournal(pm)))
	populate(t, s)

	assert.FileExists(t, pm.InstancePath("Person", "P1"))
	assert.NoFileExists(t, pm.InstancePath("Person", "P/2"))
	assert.Equal(t, filepath.Join(pm.Root(), "links", "member_of.json"), pm.LinkPath("member_of"))

	reloaded := newTestStore(t, WithJournal(NewFileJournal(pm)))
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestFileJournalEmptyDirectory(t *testing.T) {
	pm := NewPathManager(t.TempDir(), "")
	s := newTestStore(t, WithJournal(NewFileJournal(pm)))
	ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "ontology.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := testRegistry(t)
	j, err := NewSQLiteJournal(db, reg)
	require.NoError(t, err)

	s := newTestStore(t, WithJournal(j))
	populate(t, s)

	j2, err := NewSQLiteJournal(db, reg)
	require.NoError(t, err)
	reloaded := newTestStore(t, WithJournal(j2))
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestCommitHookFailureRevertsJournal(t *testing.T) {
	pm := NewPathManager(t.TempDir(), "tmhna.ontology")
	s := newTestStore(t, WithJournal(NewFileJournal(pm)))
	populate(t, s)
	before := s.Snapshot()

	var ran []string
	_, err := s.Update(nil, func(tx *Tx) error {
		if _, err := tx.Update("Person", "P1", map[string]any{"age": 31}); err != nil {
			return err
		}
		if _, err := tx.Create("Person", map[string]any{"person_id": "P3", "name": "Cy"}); err != nil {
			return err
		}
		if err := tx.Unlink("member_of", "P1", "T1"); err != nil {
			return err
		}
		if err := tx.Link("member_of", "P3", "T1"); err != nil {
			return err
		}
		tx.OnCommit(func() error { ran = append(ran, "first"); return nil })
		tx.OnCommit(func() error { ran = append(ran, "second"); return errors.New("audit unavailable") })
		tx.OnCommit(func() error { ran = append(ran, "third"); return nil })
		return nil
	})
	require.EqualError(t, err, "audit unavailable")
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, before, s.Snapshot())

	reloaded := newTestStore(t, WithJournal(NewFileJournal(pm)))
	ok, err := reloaded.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, reloaded.Snapshot(), "journal restored")
}

func TestCommitHookRunsWithoutChanges(t *testing.T) {
	s := newTestStore(t)
	var ran bool
	cs, err := s.Update(nil, func(tx *Tx) error {
		tx.OnCommit(func() error { ran = true; return nil })
		return nil
	})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.True(t, ran)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "tmhna_plant", normalizeName("TMHNA_Plant"))
	assert.Equal(t, "has_part", normalizeName("has-part"))
	assert.Len(t, normalizeName("工厂"), 32, "non-ASCII names are hashed")
	assert.Equal(t, "default", normalizeNamespace(""))
}
