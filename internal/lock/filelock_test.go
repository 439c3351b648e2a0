package lock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "run.lock")
}

func TestAcquireAndRelease(t *testing.T) {
	path := lockPath(t)

	l, err := Acquire(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)

	require.NoError(t, l.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_SecondHolderRejected(t *testing.T) {
	path := lockPath(t)

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrLockActive)
}

func TestAcquire_AfterReleaseSucceeds(t *testing.T) {
	path := lockPath(t)

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())

	l2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestAcquire_StaleLockTakenOver(t *testing.T) {
	path := lockPath(t)

	stale := Content{PID: 99999, AcquiredAt: time.Now().Add(-24 * time.Hour)}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	content, err := readContent(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), content.PID)
}

func TestAcquire_UnreadableLockNotStolen(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := Acquire(path)
	assert.ErrorIs(t, err, ErrLockActive)
}

func TestRelease_Twice(t *testing.T) {
	path := lockPath(t)

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}
