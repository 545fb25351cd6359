package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Fallback draws the built-in single-page landscape certificate. It needs
// nothing beyond the context: no template file, no browser, no network.
// Its only failure mode is writing the output file.
type Fallback struct{}

func NewFallback() Fallback {
	return Fallback{}
}

func (Fallback) RenderPDF(rc Context) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetY(50)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 16, tr("Certificate of Participation"), "", 1, "C", false, 0, "")

	pdf.Ln(14)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, tr(rc.Name), "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 9, tr(fmt.Sprintf("For participating in %q", rc.EventTitle)), "", 1, "C", false, 0, "")

	pdf.Ln(14)
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, tr("Date: "+rc.Date), "", 1, "C", false, 0, "")

	var buf bytes.Buffer

	err := pdf.Output(&buf)

	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
