package card

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Observer is told about optional elements that were left blank.
type Observer interface {
	AssetSkipped(kind string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for skipped assets.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithObserver registers o to be notified of skipped assets.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// Engine composes identity cards on the fixed template. It holds no mutable
// state, so one Engine may serve concurrent renders.
type Engine struct {
	fonts FontSet
	inst  Institution
	log   logrus.FieldLogger
	obs   Observer
}

// NewEngine returns an Engine drawing text with fonts and the header of inst.
func NewEngine(fonts FontSet, inst Institution, opts ...Option) *Engine {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	e := &Engine{fonts: fonts, inst: inst, log: quiet}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compose renders s onto a new Width x Height canvas. Missing or corrupt
// logo, photo and signature files leave their region blank. The only errors
// are a nil record, a payload the QR encoder rejects, and font face setup.
func (e *Engine) Compose(s *Student) (*image.RGBA, error) {
	if s == nil {
		return nil, ErrNilStudent
	}
	symbol, err := RenderQR(BuildQRText(s))
	if err != nil {
		return nil, err
	}
	faces, err := e.fonts.NewFaces()
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	fill(canvas, canvas.Bounds(), color.White)

	e.drawHeader(canvas, faces)
	e.drawPhoto(canvas, s.PhotoPath)

	rows := cardRows(s)
	for _, r := range rows {
		drawText(canvas, faces.Body, labelText, r.LabelAt, r.Label)
		drawText(canvas, faces.Body, bodyText, r.ValueAt, ":  "+r.Value)
	}
	e.drawSignature(canvas, rows[len(rows)-1], s.SignaturePath)

	e.drawQR(canvas, symbol, faces.XSmall, Caption(s))
	return canvas, nil
}

func (e *Engine) drawHeader(dst *image.RGBA, faces Faces) {
	fill(dst, HeaderRect, brandBlue)
	if logo, ok := e.asset("logo", e.inst.LogoPath); ok {
		overlay(dst, imaging.Resize(logo, logoSize, logoSize, imaging.Lanczos), LogoRect.Min)
	}
	drawText(dst, faces.Title, color.White, image.Pt(titleX, titleY), e.inst.Name)
	drawText(dst, faces.Small, color.White, image.Pt(titleX, addressY), e.inst.Address)
	drawText(dst, faces.Small, color.White, image.Pt(titleX, cardTypeY), e.inst.CardLabel)
}

func (e *Engine) drawPhoto(dst *image.RGBA, path string) {
	fill(dst, PhotoRect, placeholder)
	photo, ok := e.asset("photo", path)
	if !ok {
		return
	}
	inner := photoInner()
	overlay(dst, imaging.Resize(photo, inner.Dx(), inner.Dy(), imaging.Lanczos), inner.Min)
}

func (e *Engine) drawSignature(dst *image.RGBA, row Row, path string) {
	sig, ok := e.asset("signature", path)
	if !ok {
		return
	}
	box := signatureBox(row)
	overlay(dst, imaging.Fit(sig, box.Dx(), box.Dy(), imaging.Lanczos), box.Min)
}

func (e *Engine) drawQR(dst *image.RGBA, symbol image.Image, face font.Face, caption string) {
	scaled := imaging.Resize(symbol, QRRect.Dx(), QRRect.Dy(), imaging.Lanczos)
	xdraw.Draw(dst, QRRect, scaled, scaled.Bounds().Min, xdraw.Src)

	if at, ok := CaptionPlacement(face, caption); ok {
		drawText(dst, face, captionText, at, caption)
	}
}

// asset loads an optional image, reporting absence to the logger and observer.
func (e *Engine) asset(kind, path string) (image.Image, bool) {
	a := LoadAsset(path)
	if a.Present() {
		return a.Image, true
	}
	e.log.WithField("asset", kind).WithError(a.Reason).Debug("card asset skipped")
	if e.obs != nil {
		e.obs.AssetSkipped(kind)
	}
	return nil, false
}

// Caption is the human readable line printed under the QR panel.
func Caption(s *Student) string {
	return "REG:" + s.RegNo + " | " + s.FullName
}

// CaptionPlacement centres text under the QR panel. It reports false when
// the line would not fit inside the canvas; the caption is then dropped,
// never truncated.
func CaptionPlacement(face font.Face, text string) (image.Point, bool) {
	w := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()

	at := image.Pt(QRRect.Min.X+(qrPanel-w)/2, QRRect.Max.Y+captionGap)
	if at.Y+h > Height || at.X < 0 || at.X+w > Width {
		return image.Point{}, false
	}
	return at, true
}

func fill(dst *image.RGBA, r image.Rectangle, c color.Color) {
	xdraw.Draw(dst, r, image.NewUniform(c), image.Point{}, xdraw.Src)
}

func overlay(dst *image.RGBA, src image.Image, at image.Point) {
	b := src.Bounds()
	xdraw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, src, b.Min, xdraw.Over)
}

// drawText draws a single line with its top edge at at.Y.
func drawText(dst *image.RGBA, face font.Face, c color.Color, at image.Point, text string) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(at.X), Y: fixed.I(at.Y) + face.Metrics().Ascent},
	}
	d.DrawString(text)
}
