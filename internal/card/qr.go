package card

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"github.com/makiuchi-d/gozxing/qrcode/encoder"
	"github.com/skip2/go-qrcode"
)

// ErrQREncode is returned when the payload cannot be encoded as a QR symbol.
var ErrQREncode = errors.New("card: qr encode failed")

const (
	qrBoxSize = 6
	qrBorder  = 2
)

// BuildQRText returns the newline separated payload encoded in the card's QR
// symbol. Field values must not contain newlines.
func BuildQRText(s *Student) string {
	var b strings.Builder
	b.WriteString("REG:")
	b.WriteString(s.RegNo)
	b.WriteString("\nName: ")
	b.WriteString(s.FullName)
	b.WriteString("\nCourse: ")
	b.WriteString(s.Course)
	b.WriteString("\nLevel: ")
	b.WriteString(s.Level)
	b.WriteString("\nDOB: ")
	b.WriteString(s.DOB)
	return b.String()
}

// RenderQR encodes text at the highest error correction level using the
// smallest version that fits, and draws it black on white with a two module
// quiet zone and six pixels per module. Empty text yields a version 1 symbol.
func RenderQR(text string) (*image.Gray, error) {
	bitmap, err := qrModules(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQREncode, err)
	}

	n := len(bitmap)
	side := (n + 2*qrBorder) * qrBoxSize
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for y, line := range bitmap {
		for x, set := range line {
			if !set {
				continue
			}
			px := (x + qrBorder) * qrBoxSize
			py := (y + qrBorder) * qrBoxSize
			for dy := 0; dy < qrBoxSize; dy++ {
				for dx := 0; dx < qrBoxSize; dx++ {
					img.SetGray(px+dx, py+dy, color.Gray{Y: 0})
				}
			}
		}
	}
	return img, nil
}

// qrModules returns the symbol's dark modules without a quiet zone.
func qrModules(text string) ([][]bool, error) {
	if text == "" {
		return emptyModules()
	}
	q, err := qrcode.New(text, qrcode.Highest)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

// emptyModules encodes a zero length byte segment. go-qrcode refuses empty
// input, the zxing encoder does not.
func emptyModules() ([][]bool, error) {
	code, err := encoder.Encoder_encodeWithoutHint("", decoder.ErrorCorrectionLevel_H)
	if err != nil {
		return nil, err
	}
	m := code.GetMatrix()
	out := make([][]bool, m.GetHeight())
	for y := range out {
		out[y] = make([]bool, m.GetWidth())
		for x := range out[y] {
			out[y][x] = m.Get(x, y) == 1
		}
	}
	return out, nil
}
