package card

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Role selects the point size a piece of text is drawn with.
type Role int

const (
	RoleTitle Role = iota
	RoleBody
	RoleSmall
	RoleXSmall
)

var roleSizes = map[Role]float64{
	RoleTitle:  38,
	RoleBody:   22,
	RoleSmall:  18,
	RoleXSmall: 16,
}

// DefaultFontPaths are tried in order by LoadFontSet.
var DefaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/Library/Fonts/Arial.ttf",
	"C:/Windows/Fonts/arial.ttf",
}

// FontSet is the typeface shared by all renders. The parsed font is
// read-only; faces are created per render because opentype faces keep
// scratch buffers and must not be shared between goroutines.
type FontSet struct {
	// Source is the file the font was loaded from, empty for the fallback.
	Source string
	font   *opentype.Font
}

// FallbackFontSet uses the built-in 7x13 bitmap face for every role.
func FallbackFontSet() FontSet {
	return FontSet{}
}

// LoadFontSet returns a FontSet for the first path that parses as a
// TrueType/OpenType font, or the fallback when none does.
func LoadFontSet(paths []string, log logrus.FieldLogger) FontSet {
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("path", p).Warn("font file not usable")
			}
			continue
		}
		if log != nil {
			log.WithField("path", p).Info("card font loaded")
		}
		return FontSet{Source: p, font: f}
	}
	if log != nil {
		log.Warn("no system font found, using built-in fallback")
	}
	return FallbackFontSet()
}

// IsFallback reports whether the built-in bitmap face is in use.
func (fs FontSet) IsFallback() bool { return fs.font == nil }

// Faces holds one face per role for a single render.
type Faces struct {
	Title  font.Face
	Body   font.Face
	Small  font.Face
	XSmall font.Face
}

// NewFaces creates faces for one render. Callers must Close them.
func (fs FontSet) NewFaces() (Faces, error) {
	if fs.font == nil {
		f := basicfont.Face7x13
		return Faces{Title: f, Body: f, Small: f, XSmall: f}, nil
	}
	var out Faces
	for _, r := range []Role{RoleTitle, RoleBody, RoleSmall, RoleXSmall} {
		face, err := opentype.NewFace(fs.font, &opentype.FaceOptions{
			Size:    roleSizes[r],
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			out.Close()
			return Faces{}, fmt.Errorf("card: create face (size %v): %w", roleSizes[r], err)
		}
		out.set(r, face)
	}
	return out, nil
}

func (f *Faces) set(r Role, face font.Face) {
	switch r {
	case RoleTitle:
		f.Title = face
	case RoleBody:
		f.Body = face
	case RoleSmall:
		f.Small = face
	case RoleXSmall:
		f.XSmall = face
	}
}

// Close releases the faces. The basicfont face is a no-op.
func (f Faces) Close() {
	for _, face := range []font.Face{f.Title, f.Body, f.Small, f.XSmall} {
		if face != nil {
			_ = face.Close()
		}
	}
}
