// internal/server/collaborators.go
package server

import (
	"context"
	"errors"

	"mcp-food-log/internal/models"
)

var errNoAnswer = errors.New("no answer supplied")

// requestCamera replays the permission result and photo carried by a tool call.
type requestCamera struct {
	granted bool
	photo   *models.Photo
}

func (c *requestCamera) RequestPermission(context.Context) (bool, error) {
	return c.granted, nil
}

func (c *requestCamera) Capture(context.Context) (*models.Photo, error) {
	return c.photo, nil
}

// answerPrompter answers quantity prompts from a food -> answer map.
type answerPrompter map[string]any

func (p answerPrompter) AskQuantity(_ context.Context, food, _ string) (float64, error) {
	answer, ok := p[food]
	if !ok {
		return 0, errNoAnswer
	}
	return quantityArg(answer), nil
}
