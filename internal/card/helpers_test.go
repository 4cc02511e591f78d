package card

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func janeDoe() *Student {
	return &Student{
		FullName:   "Jane Doe",
		RegNo:      "AOP/2024/001",
		Course:     "Computer Science",
		Level:      "ND1",
		DOB:        "2001-05-10",
		BloodGroup: "O+",
		Sex:        "F",
	}
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testEngine(opts ...Option) *Engine {
	inst := DefaultInstitution()
	inst.LogoPath = ""
	return NewEngine(FallbackFontSet(), inst, opts...)
}

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

type countingObserver struct {
	skipped map[string]int
}

func (o *countingObserver) AssetSkipped(kind string) {
	if o.skipped == nil {
		o.skipped = map[string]int{}
	}
	o.skipped[kind]++
}
