package card

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func TestLoadFontSetFallsBack(t *testing.T) {
	dir := t.TempDir()
	notAFont := writeFile(t, dir, "fake.ttf", []byte("not a font"))

	fs := LoadFontSet([]string{"", "/no/such/font.ttf", notAFont}, nil)
	require.True(t, fs.IsFallback())
	require.Empty(t, fs.Source)

	faces, err := fs.NewFaces()
	require.NoError(t, err)
	defer faces.Close()
	require.NotNil(t, faces.Title)
	require.NotNil(t, faces.XSmall)
}

func TestLoadFontSetUsesFirstParsableFont(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "goregular.ttf", goregular.TTF)

	fs := LoadFontSet([]string{"/no/such/font.ttf", path}, nil)
	require.False(t, fs.IsFallback())
	require.Equal(t, path, fs.Source)

	faces, err := fs.NewFaces()
	require.NoError(t, err)
	defer faces.Close()

	// Title is drawn larger than the caption.
	require.Greater(t, faces.Title.Metrics().Height, faces.XSmall.Metrics().Height)

	img, err := NewEngine(fs, Institution{Name: "Test"}).Compose(janeDoe())
	require.NoError(t, err)
	require.Equal(t, Width, img.Bounds().Dx())
}
