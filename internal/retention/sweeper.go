package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pgsentry/pgsentry/internal/logger"
)

// artifactSuffixes are the file name endings this engine produces. Only
// files matching one of them are ever eligible for deletion.
var artifactSuffixes = []string{".dump", ".dump.zst", ".tar.gz"}

// Sweeper deletes expired backup artifacts from the local backup directory.
type Sweeper struct {
	log logger.Logger
}

func NewSweeper(log logger.Logger) *Sweeper {
	return &Sweeper{log: log}
}

// Sweep removes artifact files directly under dir whose modification time
// is older than olderThanDays. The filesystem's mtime is the source of
// truth; files at or newer than the threshold are never touched. Sweeping
// is idempotent: a second pass with no new files deletes nothing.
func (s *Sweeper) Sweep(dir string, olderThanDays int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory %s: %w", dir, err)
	}

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	deleted := 0
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("could not delete expired artifact", "path", path, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		s.log.Info("deleted expired artifact",
			"path", path,
			"age_days", int(time.Since(info.ModTime()).Hours()/24),
		)
		deleted++
	}

	return deleted, firstErr
}

func isArtifact(name string) bool {
	for _, suffix := range artifactSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
