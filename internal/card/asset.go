package card

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// ErrAssetMissing means no file was referenced or the file does not exist.
var ErrAssetMissing = errors.New("card: asset missing")

// Asset is the result of decoding an optional image: either Image is set,
// or Reason says why the element will be left blank.
type Asset struct {
	Image  image.Image
	Reason error
}

// Present reports whether the asset decoded successfully.
func (a Asset) Present() bool { return a.Image != nil }

// LoadAsset decodes the raster image at path. It never fails: a missing,
// unreadable or corrupt file yields an absent Asset.
func LoadAsset(path string) Asset {
	if path == "" {
		return Asset{Reason: ErrAssetMissing}
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Asset{Reason: ErrAssetMissing}
		}
		return Asset{Reason: fmt.Errorf("stat %s: %w", path, err)}
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Asset{Reason: fmt.Errorf("decode %s: %w", path, err)}
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Asset{Reason: fmt.Errorf("decode %s: empty image", path)}
	}
	return Asset{Image: img}
}
