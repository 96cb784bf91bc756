// Package receipts renders booking receipts as single-page PDFs with a QR
// code dispatchers can scan to verify the job on site.
package receipts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/hookline/tow-bookings/internal/domain"
)

type Generator struct {
	verifyBaseURL string
}

func NewGenerator(receiptBaseURL string) *Generator {
	return &Generator{verifyBaseURL: strings.TrimRight(receiptBaseURL, "/")}
}

func (g *Generator) Generate(detail *domain.BookingDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	pdf.SetAutoPageBreak(false, 0)

	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 15, "HOOKLINE TOWING RECEIPT")
	pdf.Ln(22)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 55, "F")

	pdf.SetXY(20, yStart+7)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "JOB SUMMARY")
	pdf.Ln(10)
	pdf.SetX(20)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Reference: %s", detail.ServiceNumber))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 8, fmt.Sprintf("Customer: %s", detail.CustomerName))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", detail.Status))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 8, fmt.Sprintf("Booked: %s", detail.CreatedAt.Format("02 Jan 2006 15:04")))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 8, fmt.Sprintf("Total Paid: %s", domain.FormatUSD(detail.TotalCents)))

	if g.verifyBaseURL != "" {
		verifyURL := fmt.Sprintf("%s/verify/%s", g.verifyBaseURL, detail.ServiceNumber)
		qrBytes, err := qrcode.Encode(verifyURL, qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode verification qr: %w", err)
		}
		pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qrBytes))
		pdf.ImageOptions("qr", 145, yStart+5, 45, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")
	}

	pdf.SetY(yStart + 63)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Scan the QR code to verify this job on site.")
	pdf.Ln(10)

	drawSectionTitle(pdf, "VEHICLE")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("%s %s, %s", detail.VehicleBrand, detail.VehicleModel, detail.VehicleColor))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Plate: %s   Size: %s", detail.VehiclePlate, detail.VehicleSize))
	pdf.Ln(10)

	drawSectionTitle(pdf, "ROUTE")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Pickup: %s", detail.PickupAddress))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Dropoff: %s", detail.DropoffAddress))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Distance: %.1f km (round trip billed)", detail.DistanceKm))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Truck: %s", detail.TruckCategory))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Scheduled: %s", detail.PickupAt.Format("Mon, 02 Jan 2006 15:04 MST")))
	pdf.Ln(10)

	drawSectionTitle(pdf, "PAYMENT")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Method: %s", detail.PaymentMethod))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Amount: %s", domain.FormatUSD(detail.TotalCents)))
	pdf.Ln(6)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(15, 285, 195, 285)
	pdf.SetY(288)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, "Hookline Towing. Keep this receipt for your records.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 9, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
}
