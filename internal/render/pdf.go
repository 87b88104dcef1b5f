package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 20.0
	pdfListIndent = 6.0
)

var headingSizes = map[int]float64{1: 16, 2: 14, 3: 12}

// PDF lays the document out on A4 pages with the core Helvetica and Courier
// fonts. Text outside cp1252 is replaced by the font translator.
func PDF(doc Document) ([]byte, error) {
	created := doc.Created
	if created.IsZero() {
		// fpdf falls back to the wall clock for a zero date.
		created = time.Unix(0, 0).UTC()
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(true)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("tpagent", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "L", false)
	if doc.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, tr(doc.Subtitle), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	pageWidth, _ := pdf.GetPageSize()
	for _, b := range Parse(doc.Body) {
		switch b.Kind {
		case BlockHeading:
			size, ok := headingSizes[b.Level]
			if !ok {
				size = 11
			}
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, size*0.5, tr(b.Text), "", "L", false)
			pdf.Ln(1.5)
		case BlockParagraph:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetX(pdfMargin + float64(b.Depth)*pdfListIndent)
			pdf.MultiCell(0, 5.5, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		case BlockListItem:
			pdf.SetFont("Helvetica", "", 11)
			indent := pdfMargin + float64(b.Depth)*pdfListIndent
			pdf.SetX(indent)
			pdf.CellFormat(pdfListIndent, 5.5, tr(b.Marker()), "", 0, "L", false, 0, "")
			pdf.MultiCell(0, 5.5, tr(b.Text), "", "L", false)
			pdf.Ln(0.5)
		case BlockCode:
			pdf.SetFont("Courier", "", 9)
			pdf.SetFillColor(242, 242, 242)
			pdf.MultiCell(0, 4.5, tr(b.Text), "", "L", true)
			pdf.Ln(2)
		case BlockQuote:
			pdf.SetFont("Helvetica", "I", 11)
			pdf.SetX(pdfMargin + pdfListIndent)
			pdf.MultiCell(0, 5.5, tr(b.Text), "", "L", false)
			pdf.Ln(2)
		case BlockRule:
			y := pdf.GetY() + 2
			pdf.SetDrawColor(180, 180, 180)
			pdf.Line(pdfMargin, y, pageWidth-pdfMargin, y)
			pdf.Ln(5)
		case BlockTable:
			pdfTable(pdf, tr, b.Rows, pageWidth-2*pdfMargin)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, rows [][]string, width float64) {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	colWidth := width / float64(cols)
	pdf.SetDrawColor(160, 160, 160)
	for i, r := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(r) {
				cell = fitText(pdf, tr(r[c]), colWidth-2)
			}
			pdf.CellFormat(colWidth, 6, cell, "1", 0, "L", i == 0, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(2)
}

// fitText shortens s until it fits in width at the current font.
func fitText(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = strings.TrimRight(s[:len(s)-1], " ")
	}
	return s + "..."
}
