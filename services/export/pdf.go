package exportsvc

import (
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core/certificate"
)

// PDFRenderer renders certificates as landscape A4 documents.
type PDFRenderer struct{}

var _ certificate.PDFRenderer = PDFRenderer{} // interface compliance check

func NewPDFRenderer() PDFRenderer {
	return PDFRenderer{}
}

func (PDFRenderer) RenderCertificate(w io.Writer, data certificate.PDFData) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(data.Title, true)
	pdf.SetAuthor(data.AppName, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252

	width, height := pdf.GetPageSize()

	// border
	pdf.SetDrawColor(40, 70, 140)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetY(38)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(40, 70, 140)
	pdf.CellFormat(0, 14, tr("Certificate"), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.Ln(8)
	pdf.CellFormat(0, 8, tr("This certifies that"), "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(0, 14, tr(data.ParticipantName), "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 8, tr("has been awarded"), "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(40, 70, 140)
	pdf.MultiCell(0, 10, tr(data.Title), "", "C", false)

	if data.Description != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 12)
		pdf.SetTextColor(80, 80, 80)
		pdf.SetX(45)
		pdf.MultiCell(width-90, 6, tr(data.Description), "", "C", false)
	}

	// footer
	pdf.SetY(height - 42)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, tr(data.AppName+" - issued on "+data.IssuedAt.UTC().Format("January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(140, 140, 140)
	pdf.CellFormat(0, 5, "ID: "+data.CertificateID, "", 1, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering certificate PDF")
	}
	return nil
}
