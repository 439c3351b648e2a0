package upload

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"

	"github.com/pgsentry/pgsentry/internal/logger"
)

// RcloneClient copies files to remote storage by shelling out to rclone.
type RcloneClient struct {
	Binary string

	log logger.Logger
}

func NewRcloneClient(binary string, log logger.Logger) *RcloneClient {
	if binary == "" {
		binary = "rclone"
	}
	return &RcloneClient{Binary: binary, log: log}
}

// Copy uploads localPath to remote, keeping the local base name.
func (c *RcloneClient) Copy(ctx context.Context, localPath, remote string) error {
	dest := remote + "/" + path.Base(filepath.ToSlash(localPath))

	cmd := exec.CommandContext(ctx, c.Binary, "copyto", localPath, dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rclone copyto %s: %w: %s", dest, err, string(out))
	}

	c.log.Debug("uploaded artifact", "local", localPath, "remote", dest)
	return nil
}
