package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"PosPrint/app/models"
)

// ErrEmptyBill is returned when a bill render is requested with no lines.
// An empty bill is not a valid printable state; an empty kitchen delta is
// handled upstream as a no-op instead.
var ErrEmptyBill = errors.New("cannot render a bill with no lines")

// DocumentKind distinguishes the two printable artifacts
type DocumentKind string

const (
	DocumentTicket DocumentKind = "ticket"
	DocumentBill   DocumentKind = "bill"
)

// RenderMode selects the layout backend
type RenderMode string

const (
	ModeRaster RenderMode = "raster"
	ModeText   RenderMode = "text"
)

// Alignment of a text row on the paper
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// TextRow is one formatted line of a text-mode document
type TextRow struct {
	Text     string
	Align    string
	Emphasis bool
	DoubleH  bool // double height for headings and the grand total
}

// BillMeta carries the per-document identifiers printed in the header
type BillMeta struct {
	BillNumber string
	TableRef   string // table number or takeaway token
	Waiter     string
	Timestamp  time.Time
}

// PrintableDocument is a fully laid-out ticket or bill, bound to a paper
// width class. It is immutable once produced; the encoder turns it into
// device bytes without touching the layout again.
type PrintableDocument struct {
	Kind  DocumentKind
	Mode  RenderMode
	Width models.PaperWidth

	// Text mode
	Rows []TextRow

	// Raster mode
	Canvas *RasterCanvas
}

// Renderer lays out tickets and bills for a given business identity
type Renderer struct {
	business *models.BusinessConfig
}

// NewRenderer creates a renderer bound to the business identity block
func NewRenderer(business *models.BusinessConfig) *Renderer {
	return &Renderer{business: business}
}

// RenderBill produces the customer-facing receipt. Raster is the primary
// mode; callers fall back to text when raster rendering or encoding fails.
func (r *Renderer) RenderBill(lines []models.OrderLine, totals *models.OrderTotals, meta BillMeta, width models.PaperWidth, mode RenderMode) (*PrintableDocument, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyBill
	}
	if mode == ModeRaster {
		return r.renderBillRaster(lines, totals, meta, width)
	}
	return r.renderBillText(lines, totals, meta, width)
}

// RenderTicket produces the kitchen ticket for a pending delta. Tickets are
// always text mode: the kitchen needs quantities and notes, not borders or
// prices.
func (r *Renderer) RenderTicket(delta []models.OrderLine, meta BillMeta, width models.PaperWidth) (*PrintableDocument, error) {
	cols := width.Columns()
	doc := &PrintableDocument{Kind: DocumentTicket, Mode: ModeText, Width: width}

	doc.Rows = append(doc.Rows,
		TextRow{Text: "KOT", Align: AlignCenter, Emphasis: true, DoubleH: true},
		TextRow{Text: r.business.Name, Align: AlignCenter},
		TextRow{Text: solidRule(cols)},
	)
	doc.Rows = append(doc.Rows, TextRow{Text: "KOT No: " + meta.BillNumber, Emphasis: true})
	if meta.TableRef != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "Table: " + meta.TableRef, Emphasis: true, DoubleH: true})
	}
	doc.Rows = append(doc.Rows, TextRow{Text: meta.Timestamp.Format("02-01-2006 15:04")})
	if meta.Waiter != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "Waiter: " + meta.Waiter})
	}
	doc.Rows = append(doc.Rows, TextRow{Text: dashedRule(cols)})

	for i := range delta {
		l := &delta[i]
		name := l.Name
		if l.Portion != "" {
			name += " (" + l.Portion + ")"
		}
		doc.Rows = append(doc.Rows, TextRow{
			Text:     fmt.Sprintf("%3d x %s", l.Quantity, truncate(name, cols-6)),
			Emphasis: true,
		})
		if l.Notes != "" {
			doc.Rows = append(doc.Rows, TextRow{Text: "    >> " + truncate(l.Notes, cols-7)})
		}
	}

	doc.Rows = append(doc.Rows,
		TextRow{Text: dashedRule(cols)},
		TextRow{Text: fmt.Sprintf("Items: %d", len(delta)), Align: AlignRight},
	)
	return doc, nil
}

// renderBillText lays the bill into a fixed character grid
func (r *Renderer) renderBillText(lines []models.OrderLine, totals *models.OrderTotals, meta BillMeta, width models.PaperWidth) (*PrintableDocument, error) {
	cols := width.Columns()
	doc := &PrintableDocument{Kind: DocumentBill, Mode: ModeText, Width: width}
	biz := r.business

	doc.Rows = append(doc.Rows, TextRow{Text: biz.Name, Align: AlignCenter, Emphasis: true, DoubleH: true})
	for _, optional := range []string{biz.Tagline, biz.Address} {
		if optional != "" {
			doc.Rows = append(doc.Rows, TextRow{Text: optional, Align: AlignCenter})
		}
	}
	if biz.Phone != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "Ph: " + biz.Phone, Align: AlignCenter})
	}

	banner := "TAX INVOICE"
	if biz.ShowVegMark {
		banner += " | VEG"
	}
	doc.Rows = append(doc.Rows,
		TextRow{Text: solidRule(cols)},
		TextRow{Text: banner, Align: AlignCenter, Emphasis: true},
		TextRow{Text: solidRule(cols)},
	)

	doc.Rows = append(doc.Rows, TextRow{Text: "Bill No: " + meta.BillNumber, Emphasis: true})
	if meta.TableRef != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "Table: " + meta.TableRef})
	}
	doc.Rows = append(doc.Rows, TextRow{Text: "Date: " + meta.Timestamp.Format("02-01-2006 15:04")})
	if meta.Waiter != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "Served by: " + meta.Waiter})
	}

	nameW, qtyW, rateW, amtW := billColumns(cols)
	doc.Rows = append(doc.Rows,
		TextRow{Text: dashedRule(cols)},
		TextRow{Text: billRow("ITEM", "QTY", "RATE", "AMT", nameW, qtyW, rateW, amtW), Emphasis: true},
		TextRow{Text: dashedRule(cols)},
	)

	for i := range lines {
		l := &lines[i]
		name := l.Name
		if l.Portion != "" {
			name += " (" + l.Portion + ")"
		}
		doc.Rows = append(doc.Rows, TextRow{Text: billRow(
			truncate(name, nameW),
			fmt.Sprintf("%d", l.Quantity),
			formatMoney(l.UnitPrice),
			formatMoney(l.LineTotal()),
			nameW, qtyW, rateW, amtW,
		)})
		if l.Notes != "" {
			doc.Rows = append(doc.Rows, TextRow{Text: "  " + truncate(l.Notes, cols-2)})
		}
	}

	doc.Rows = append(doc.Rows, TextRow{Text: dashedRule(cols)})
	doc.Rows = append(doc.Rows, totalRow(cols, "Subtotal", totals.Subtotal, false))
	if totals.Discount > 0 {
		label := "Discount"
		if totals.DiscountReason != "" {
			label = "Discount (" + totals.DiscountReason + ")"
		}
		doc.Rows = append(doc.Rows, totalRow(cols, label, -totals.Discount, false))
	}
	for _, tax := range totals.Taxes {
		doc.Rows = append(doc.Rows, totalRow(cols, tax.Name, tax.Amount, false))
	}
	if totals.RoundOff > MoneyEpsilon || totals.RoundOff < -MoneyEpsilon {
		doc.Rows = append(doc.Rows, totalRow(cols, "Round Off", totals.RoundOff, false))
	}
	doc.Rows = append(doc.Rows,
		TextRow{Text: partialRule(cols, 2)},
		totalRow(cols, "TOTAL", totals.FinalAmount, true),
		TextRow{Text: solidRule(cols)},
	)

	if biz.GSTIN != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "GSTIN: " + biz.GSTIN, Align: AlignCenter})
	}
	if biz.FSSAILicense != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: "FSSAI: " + biz.FSSAILicense, Align: AlignCenter})
	}
	if biz.ThankYouNote != "" {
		doc.Rows = append(doc.Rows, TextRow{Text: biz.ThankYouNote, Align: AlignCenter})
	}

	return doc, nil
}

// renderBillRaster draws the bill onto a pixel canvas sized to the paper's
// dot width, then trims the canvas to the cursor height
func (r *Renderer) renderBillRaster(lines []models.OrderLine, totals *models.OrderTotals, meta BillMeta, width models.PaperWidth) (*PrintableDocument, error) {
	biz := r.business
	c := NewRasterCanvas(width.Dots())

	c.DrawText(biz.Name, AlignCenter, 2, true)
	for _, optional := range []string{biz.Tagline, biz.Address} {
		if optional != "" {
			c.DrawText(optional, AlignCenter, 1, false)
		}
	}
	if biz.Phone != "" {
		c.DrawText("Ph: "+biz.Phone, AlignCenter, 1, false)
	}
	c.Space(4)
	c.Rule()

	banner := "TAX INVOICE"
	if biz.ShowVegMark {
		banner += " | VEG"
	}
	c.Box(banner)

	c.DrawText("Bill No: "+meta.BillNumber, AlignLeft, 1, true)
	if meta.TableRef != "" {
		c.DrawText("Table: "+meta.TableRef, AlignLeft, 1, false)
	}
	c.DrawText("Date: "+meta.Timestamp.Format("02-01-2006 15:04"), AlignLeft, 1, false)
	if meta.Waiter != "" {
		c.DrawText("Served by: "+meta.Waiter, AlignLeft, 1, false)
	}
	c.DashedRule()

	nameW, qtyW, rateW, amtW := billColumns(c.Columns())
	c.DrawText(billRow("ITEM", "QTY", "RATE", "AMT", nameW, qtyW, rateW, amtW), AlignLeft, 1, true)
	c.DashedRule()

	for i := range lines {
		l := &lines[i]
		name := l.Name
		if l.Portion != "" {
			name += " (" + l.Portion + ")"
		}
		c.DrawText(billRow(
			truncate(name, nameW),
			fmt.Sprintf("%d", l.Quantity),
			formatMoney(l.UnitPrice),
			formatMoney(l.LineTotal()),
			nameW, qtyW, rateW, amtW,
		), AlignLeft, 1, false)
		if l.Notes != "" {
			c.DrawText("  "+truncate(l.Notes, c.Columns()-2), AlignLeft, 1, false)
		}
	}
	c.DashedRule()

	c.DrawText(labelValue(c.Columns(), "Subtotal", formatMoney(totals.Subtotal)), AlignLeft, 1, false)
	if totals.Discount > 0 {
		label := "Discount"
		if totals.DiscountReason != "" {
			label = "Discount (" + totals.DiscountReason + ")"
		}
		c.DrawText(labelValue(c.Columns(), label, "-"+formatMoney(totals.Discount)), AlignLeft, 1, false)
	}
	for _, tax := range totals.Taxes {
		c.DrawText(labelValue(c.Columns(), tax.Name, formatMoney(tax.Amount)), AlignLeft, 1, false)
	}
	if totals.RoundOff > MoneyEpsilon || totals.RoundOff < -MoneyEpsilon {
		c.DrawText(labelValue(c.Columns(), "Round Off", formatSignedMoney(totals.RoundOff)), AlignLeft, 1, false)
	}
	c.PartialRule(2)
	c.DrawText(labelValue(c.Columns()/2, "TOTAL", formatMoney(totals.FinalAmount)), AlignRight, 2, true)
	c.Rule()

	// Machine-readable bill reference for reconciliation apps
	c.Space(6)
	if err := c.DrawQR(fmt.Sprintf("%s|%s|%.2f", biz.GSTIN, meta.BillNumber, totals.FinalAmount)); err == nil {
		c.Space(6)
	}

	if biz.GSTIN != "" {
		c.DrawText("GSTIN: "+biz.GSTIN, AlignCenter, 1, false)
	}
	if biz.FSSAILicense != "" {
		c.DrawText("FSSAI: "+biz.FSSAILicense, AlignCenter, 1, false)
	}
	if biz.ThankYouNote != "" {
		c.Space(4)
		c.DrawText(biz.ThankYouNote, AlignCenter, 1, false)
	}

	c.Border()

	return &PrintableDocument{Kind: DocumentBill, Mode: ModeRaster, Width: width, Canvas: c}, nil
}

// SelfTestDocument synthesizes the fixed diagnostic printout used to verify
// a printer without consuming an order
func (r *Renderer) SelfTestDocument(width models.PaperWidth) *PrintableDocument {
	cols := width.Columns()
	return &PrintableDocument{
		Kind:  DocumentTicket,
		Mode:  ModeText,
		Width: width,
		Rows: []TextRow{
			{Text: r.business.Name, Align: AlignCenter, Emphasis: true, DoubleH: true},
			{Text: solidRule(cols)},
			{Text: "*** PRINTER TEST ***", Align: AlignCenter, Emphasis: true},
			{Text: "Connection OK", Align: AlignCenter},
			{Text: "Printed: " + time.Now().Format("02-01-2006 15:04:05"), Align: AlignCenter},
			{Text: solidRule(cols)},
		},
	}
}

// Layout helpers

func billColumns(cols int) (nameW, qtyW, rateW, amtW int) {
	qtyW, rateW, amtW = 4, 7, 8
	nameW = cols - qtyW - rateW - amtW
	return
}

func billRow(name, qty, rate, amt string, nameW, qtyW, rateW, amtW int) string {
	return fmt.Sprintf("%-*s%*s%*s%*s", nameW, name, qtyW, qty, rateW, rate, amtW, amt)
}

func totalRow(cols int, label string, amount float64, grand bool) TextRow {
	return TextRow{
		Text:     labelValue(cols, label, formatSignedMoney(amount)),
		Align:    AlignLeft,
		Emphasis: grand,
		DoubleH:  grand,
	}
}

// labelValue right-aligns a value against its label across the full width
func labelValue(cols int, label, value string) string {
	pad := cols - len(label) - len(value)
	if pad < 1 {
		pad = 1
	}
	return label + strings.Repeat(" ", pad) + value
}

func solidRule(cols int) string {
	return strings.Repeat("=", cols)
}

func dashedRule(cols int) string {
	return strings.Repeat("-", cols)
}

// partialRule draws a rule over the right 1/div of the width
func partialRule(cols, div int) string {
	n := cols / div
	return strings.Repeat(" ", cols-n) + strings.Repeat("-", n)
}

func formatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func formatSignedMoney(amount float64) string {
	if amount < 0 {
		return fmt.Sprintf("-%.2f", -amount)
	}
	return fmt.Sprintf("%.2f", amount)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
