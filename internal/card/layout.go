package card

import (
	"image"
	"image/color"
)

// Card geometry in pixels. CR80 (3.375" x 2.125") at 300 DPI.
const (
	Width  = 1012
	Height = 638

	margin  = 26
	headerH = 118

	logoSize  = 96
	titleX    = margin + 110
	titleY    = 18
	addressY  = 58
	cardTypeY = 86

	photoW     = 300
	photoH     = 360
	photoInset = 8

	rowGap      = 34
	valueOffset = 190

	signLabel   = "Sign"
	signOffsetX = 210
	signOffsetY = -6
	signMaxW    = 280
	signMaxH    = 80

	qrPanel    = 220
	captionGap = 6
	previewW   = 324
	previewH   = 204
)

var (
	brandBlue   = color.RGBA{6, 61, 138, 255}
	placeholder = color.RGBA{246, 247, 251, 255}
	bodyText    = color.RGBA{20, 20, 20, 255}
	labelText   = color.RGBA{90, 90, 90, 255}
	captionText = color.RGBA{40, 40, 40, 255}
)

// Regions of the fixed template.
var (
	HeaderRect = image.Rect(0, 0, Width, headerH)
	LogoRect   = image.Rect(margin, (headerH-logoSize)/2, margin+logoSize, (headerH-logoSize)/2+logoSize)
	PhotoRect  = image.Rect(margin, headerH+margin, margin+photoW, headerH+margin+photoH)
	QRRect     = image.Rect(Width-qrPanel-margin, Height-qrPanel-margin, Width-margin, Height-margin)

	rowsOrigin = image.Pt(PhotoRect.Max.X+28, headerH+margin)
)

// Field is one labelled attribute printed on the card.
type Field struct {
	Label string
	Value string
}

// Row is a Field with the positions of its label and value text. Positions
// are the top-left corner of the text line.
type Row struct {
	Field
	LabelAt image.Point
	ValueAt image.Point
}

// StudentFields returns the card attributes in print order.
func StudentFields(s *Student) []Field {
	return []Field{
		{"Full Name", s.FullName},
		{"Sex", s.Sex},
		{"Date of Birth", s.DOB},
		{"Blood Group", s.BloodGroup},
		{"Course", s.Course},
		{"Reg No.", s.RegNo},
		{"Level", s.Level},
	}
}

// LayoutRows places fields top to bottom starting at origin, one every step
// pixels. Values start valueOffset pixels right of their label.
func LayoutRows(fields []Field, origin image.Point, valueOffset, step int) []Row {
	rows := make([]Row, len(fields))
	for i, f := range fields {
		y := origin.Y + i*step
		rows[i] = Row{
			Field:   f,
			LabelAt: image.Pt(origin.X, y),
			ValueAt: image.Pt(origin.X+valueOffset, y),
		}
	}
	return rows
}

// cardRows lays out the attribute rows followed by the signature row.
func cardRows(s *Student) []Row {
	fields := append(StudentFields(s), Field{Label: signLabel})
	return LayoutRows(fields, rowsOrigin, valueOffset, rowGap)
}

// signatureBox returns where the signature thumbnail is anchored relative to
// the signature row.
func signatureBox(r Row) image.Rectangle {
	at := image.Pt(r.LabelAt.X+signOffsetX, r.LabelAt.Y+signOffsetY)
	return image.Rectangle{Min: at, Max: at.Add(image.Pt(signMaxW, signMaxH))}
}

// photoInner is the part of the photo box covered by the photo.
func photoInner() image.Rectangle {
	return PhotoRect.Inset(photoInset)
}
