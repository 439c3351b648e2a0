package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// staleTimeout: a lock whose owner has not refreshed it within this window
// is considered abandoned and may be taken over.
const staleTimeout = 6 * time.Hour

// ErrLockActive is returned when another invocation already holds the lock.
var ErrLockActive = errors.New("another backup run holds the lock")

// Content is what gets written into the lock file, for operators and for
// stale-lock detection.
type Content struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Lock is a file-based mutual exclusion guard for the backup directory.
// Exactly one run may hold it; overlapping scheduled invocations back off
// instead of corrupting shared state or double-uploading.
type Lock struct {
	path string
	held bool
}

// Acquire takes the lock at path atomically via O_CREATE|O_EXCL. An
// existing lock older than the stale timeout is removed and retried once,
// assuming its owner died without releasing.
func Acquire(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		err := tryCreate(path)
		if err == nil {
			return &Lock{path: path, held: true}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("access lock file %s: %w", path, err)
		}

		content, readErr := readContent(path)
		if readErr != nil {
			// Unreadable lock file: treat as active, do not steal it.
			return nil, fmt.Errorf("%w (unreadable lock at %s)", ErrLockActive, path)
		}

		age := time.Since(content.AcquiredAt)
		if age < staleTimeout {
			return nil, fmt.Errorf("%w: pid %d, acquired %s ago",
				ErrLockActive, content.PID, age.Truncate(time.Second))
		}

		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, fmt.Errorf("remove stale lock %s: %w", path, removeErr)
		}
	}

	return nil, fmt.Errorf("%w: contention at %s", ErrLockActive, path)
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

func tryCreate(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	content := Content{PID: os.Getpid(), AcquiredAt: time.Now()}
	return json.NewEncoder(f).Encode(content)
}

func readContent(path string) (Content, error) {
	var content Content
	data, err := os.ReadFile(path)
	if err != nil {
		return content, err
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return content, err
	}
	return content, nil
}
