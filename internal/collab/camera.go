// internal/collab/camera.go
package collab

import (
	"context"
	"fmt"
	"os"
	"time"

	"mcp-food-log/internal/models"
)

// FileCamera "captures" by reading an image file. Permission is granted up
// front; an empty path behaves like a user dismissing the camera.
type FileCamera struct {
	Allowed bool
	Path    string
}

func (c *FileCamera) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.Allowed, nil
}

func (c *FileCamera) Capture(ctx context.Context) (*models.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	return &models.Photo{
		Data:       data,
		Source:     c.Path,
		CapturedAt: time.Now(),
	}, nil
}
