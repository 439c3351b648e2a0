package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsentry/pgsentry/internal/logger"
)

func writeAged(t *testing.T, dir, name string, ageDays int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("backup data"), 0o644))

	mtime := time.Now().AddDate(0, 0, -ageDays)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweep_DeletesOnlyExpiredArtifacts(t *testing.T) {
	dir := t.TempDir()

	fresh := writeAged(t, dir, "db_2024-01-08-020000.dump", 3)
	old1 := writeAged(t, dir, "db_2024-01-03-020000.dump", 8)
	old2 := writeAged(t, dir, "pg_base_backup_2024-01-01-020000.tar.gz", 10)

	sweeper := NewSweeper(logger.Nop())
	deleted, err := sweeper.Sweep(dir, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(old1)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(old2)
	assert.True(t, os.IsNotExist(err))

	// Idempotent: a second sweep with no new files deletes nothing.
	deleted, err = sweeper.Sweep(dir, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestSweep_IgnoresForeignFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()

	notes := writeAged(t, dir, "notes.txt", 30)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.dump"), 0o755))

	sweeper := NewSweeper(logger.Nop())
	deleted, err := sweeper.Sweep(dir, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	_, err = os.Stat(notes)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "subdir.dump"))
	assert.NoError(t, err)
}

func TestSweep_ZstArtifactsAreEligible(t *testing.T) {
	dir := t.TempDir()

	old := writeAged(t, dir, "db_2024-01-01-020000.dump.zst", 9)

	sweeper := NewSweeper(logger.Nop())
	deleted, err := sweeper.Sweep(dir, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestSweep_MissingDirectoryIsError(t *testing.T) {
	sweeper := NewSweeper(logger.Nop())
	_, err := sweeper.Sweep(filepath.Join(t.TempDir(), "nope"), 7)
	assert.Error(t, err)
}
