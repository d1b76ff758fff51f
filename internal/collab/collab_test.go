package collab

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCameraCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plate.jpg")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o644))

	cam := &FileCamera{Allowed: true, Path: path}
	ok, err := cam.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	photo, err := cam.Capture(context.Background())
	require.NoError(t, err)
	require.NotNil(t, photo)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, photo.Data)
	assert.Equal(t, path, photo.Source)
}

func TestFileCameraDeniedAndCancelled(t *testing.T) {
	cam := &FileCamera{}
	ok, err := cam.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	photo, err := cam.Capture(context.Background())
	require.NoError(t, err)
	assert.Nil(t, photo)
}

func TestFileCameraMissingFile(t *testing.T) {
	cam := &FileCamera{Allowed: true, Path: filepath.Join(t.TempDir(), "missing.jpg")}
	_, err := cam.Capture(context.Background())
	assert.Error(t, err)
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewLinePrompter(strings.NewReader("2\n\nabc\n1,5"), &out)
	ctx := context.Background()

	answers := make([]float64, 0, 4)
	for i := 0; i < 4; i++ {
		q, err := p.AskQuantity(ctx, "pasta", "g")
		require.NoError(t, err)
		answers = append(answers, q)
	}

	assert.Equal(t, []float64{2, 1, 1, 1.5}, answers)
	assert.Contains(t, out.String(), "Quantità di pasta?")
	assert.Contains(t, out.String(), "Inserisci quanta pasta c'è (g)")

	_, err := p.AskQuantity(ctx, "olio", "cucchiaio")
	assert.Error(t, err)
}
