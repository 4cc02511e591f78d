package card

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
)

// Physical CR80 size.
const (
	cr80WidthMM  = 85.725
	cr80HeightMM = 53.975
)

// Preview downscales a card to the on-screen preview size.
func Preview(card image.Image) *image.NRGBA {
	return imaging.Resize(card, previewW, previewH, imaging.Lanczos)
}

// EncodePNG writes img as a compressed PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

// WritePDF writes a single page document whose page is exactly the card,
// so a 1012x638 image prints at 300 DPI.
func WritePDF(w io.Writer, card image.Image, title string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, card); err != nil {
		return fmt.Errorf("card: encode page image: %w", err)
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: cr80WidthMM, Ht: cr80HeightMM},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetTitle(title, true)
	doc.SetCreator("idcard", true)
	doc.AddPage()

	opt := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("card", opt, &buf)
	doc.ImageOptions("card", 0, 0, cr80WidthMM, cr80HeightMM, false, opt, 0, "")
	if err := doc.Output(w); err != nil {
		return fmt.Errorf("card: write pdf: %w", err)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer("/", "-", `\`, "-")

// PDFFilename is the download name for a student's card.
func PDFFilename(regNo string) string {
	regNo = strings.TrimSpace(regNo)
	if regNo == "" {
		regNo = "student"
	}
	return filenameReplacer.Replace(regNo) + "_ID.pdf"
}
