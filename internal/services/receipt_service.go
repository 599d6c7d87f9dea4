package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// ReceiptService renders a one page PDF summary of a booking.
type ReceiptService struct {
	bookings    *BookingService
	users       models.UserRepo
	techs       models.TechnicianRepo
	frontendURL string
	logger      *slog.Logger
}

func NewReceiptService(bookings *BookingService, users models.UserRepo, techs models.TechnicianRepo, frontendURL string, logger *slog.Logger) *ReceiptService {
	return &ReceiptService{
		bookings:    bookings,
		users:       users,
		techs:       techs,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (rs *ReceiptService) Generate(ctx context.Context, bookingID string, actor Actor) (*models.Booking, []byte, error) {
	b, err := rs.bookings.Get(ctx, bookingID, actor)
	if err != nil {
		return nil, nil, err
	}
	customer, err := rs.users.GetUserByID(ctx, b.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	techName := "Not assigned"
	if b.TechnicianID != nil {
		if tech, err := rs.techs.GetTechnicianByID(ctx, *b.TechnicianID); err == nil {
			techName = tech.Name
		} else {
			rs.logger.Warn("receipt without technician details", "booking_id", bookingID, "error", err)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 15, "REPAIRHUB BOOKING RECEIPT")
	pdf.Ln(18)
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 55, "F")
	pdf.SetXY(20, yStart+7)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "BOOKING SUMMARY")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Booking ID: " + b.ID.Hex(),
		"Service: " + b.ServiceName,
		fmt.Sprintf("Scheduled: %s %s", b.Date, b.Time),
		"Status: " + string(b.Status),
		fmt.Sprintf("Amount: %.2f", b.Amount),
	} {
		pdf.SetX(20)
		pdf.Cell(0, 8, tr(line))
		pdf.Ln(6)
	}

	qrBytes, err := qrcode.Encode(fmt.Sprintf("%s/bookings/%s", rs.frontendURL, b.ID.Hex()), qrcode.Medium, 256)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode receipt qr code: %w", err)
	}
	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qrBytes))
	pdf.ImageOptions("qr", 145, yStart+5, 45, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")

	pdf.SetY(yStart + 63)
	sectionTitle(pdf, "CUSTOMER")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(customer.Name+" | "+customer.Email))
	pdf.Ln(6)
	pdf.MultiCell(0, 8, tr("Address: "+b.Address), "", "", false)
	pdf.Ln(4)

	sectionTitle(pdf, "TECHNICIAN")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(techName))
	pdf.Ln(10)

	sectionTitle(pdf, "HISTORY")
	pdf.SetFont("Helvetica", "", 11)
	for _, h := range b.StatusHistory {
		pdf.Cell(0, 7, tr(fmt.Sprintf("%s  %s (%s)", h.At.Format("2006-01-02 15:04"), h.To, h.ActorRole)))
		pdf.Ln(6)
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(15, 285, 195, 285)
	pdf.SetY(288)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, "Thank you for choosing RepairHub.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return b, buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 9, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
}
