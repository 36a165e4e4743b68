// Package invoice renders a printable PDF for a placed order.
package invoice

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
)

const (
	Company = "Barelle Distribution"

	qrImage = "order-qr"
)

// turkishFold maps the Turkish letters missing from cp1252, the encoding of
// the core PDF fonts, to their closest Latin letter. ç, ö and ü are in
// cp1252 and pass through.
var turkishFold = strings.NewReplacer("ş", "s", "Ş", "S", "ğ", "g", "Ğ", "G", "ı", "i", "İ", "I")

func textEncoder(pdf *gofpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1252")
	return func(s string) string {
		return tr(turkishFold.Replace(s))
	}
}

// Render writes the invoice for o as a PDF. The QR code carries the order
// number so a courier can look the order up.
func Render(w io.Writer, o *order.Order) error {
	qrPNG, err := qrcode.Encode(o.OrderNumber, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("invoice: failed to encode qr code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := textEncoder(pdf)
	pdf.SetTitle("Invoice "+o.OrderNumber, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, Company)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Invoice for order "+o.OrderNumber)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Status: "+o.Status.String()+" / payment "+o.PaymentStatus.String())
	pdf.Ln(10)

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImage, imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions(qrImage, 160, 10, 35, 35, false, imageOpts, 0, "")

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 7, "Bill to")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 11)
	billTo := []string{o.CustomerName}
	if o.CustomerType == pricing.B2B {
		billTo = append(billTo, o.CompanyName, "Tax ID: "+o.TaxID)
	}
	billTo = append(billTo, o.CustomerEmail, o.CustomerPhone, deliveryLine(o))
	for _, line := range billTo {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}
	pdf.Ln(6)

	widths := []float64{95, 30, 20, 35}
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Product", "Price", "Qty", "Subtotal"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 11)
	for _, l := range o.Lines {
		pdf.CellFormat(widths[0], 7, tr(l.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, l.Price.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d", l.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, l.Subtotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	label := widths[0] + widths[1] + widths[2]
	totals := []struct {
		name  string
		value string
	}{
		{"Subtotal", o.Subtotal.StringFixed(2)},
		{"Delivery", o.DeliveryFee.StringFixed(2)},
		{"Total", o.Total.StringFixed(2)},
	}
	for _, t := range totals {
		if t.name == "Total" {
			pdf.SetFont("Arial", "B", 11)
		}
		pdf.CellFormat(label, 7, t.name, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, t.value, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Payment method: "+paymentLabel(o.PaymentMethod))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("invoice: failed to write pdf: %w", err)
	}
	return nil
}

func deliveryLine(o *order.Order) string {
	line := o.DeliveryAddress + ", " + o.DeliveryCity
	if o.DeliveryDistrict != "" {
		line += " / " + o.DeliveryDistrict
	}
	return line
}

func paymentLabel(m order.PaymentMethod) string {
	switch m {
	case order.PaymentCashOnDelivery:
		return "cash on delivery"
	case order.PaymentBankTransfer:
		return "bank transfer"
	case order.PaymentCard:
		return "card"
	}
	return string(m)
}
