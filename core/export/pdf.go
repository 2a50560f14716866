package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/koscakluka/ema-transcript/core/items"
)

const (
	pdfMargin     = 20.0
	pdfPageBottom = 270.0
	pdfLineHeight = 5.0
)

// PDF writes the transcript as an A4 document. Core fonts only cover
// Latin-1, characters outside it are replaced by the translator.
func PDF(w io.Writer, snapshot []items.Item, generatedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetTitle("Call Transcript", true)
	pdf.SetCreationDate(generatedAt)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()
	textWidth := pageWidth - 2*pdfMargin

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(pdfMargin, 10)
	pdf.CellFormat(textWidth, 10, "Call Transcript", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(textWidth, 8, "Generated on: "+generatedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")

	y := 40.0
	for _, item := range Entries(snapshot) {
		if y > pdfPageBottom {
			pdf.AddPage()
			y = pdfMargin
		}

		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetXY(pdfMargin, y)
		pdf.CellFormat(textWidth, pdfLineHeight,
			translate(fmt.Sprintf("%s (%s)", RoleName(item.Role), formatTimestamp(item.Timestamp))),
			"", 1, "L", false, 0, "")
		y += 6

		pdf.SetFont("Helvetica", "", 10)
		lines := pdf.SplitText(translate(item.Text()), textWidth)
		for _, line := range lines {
			if y > pdfPageBottom {
				pdf.AddPage()
				y = pdfMargin
			}
			pdf.SetXY(pdfMargin, y)
			pdf.CellFormat(textWidth, pdfLineHeight, line, "", 1, "L", false, 0, "")
			y += pdfLineHeight
		}
		y += 10
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render transcript pdf: %w", err)
	}
	return nil
}
