package services

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"PosPrint/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineWithFilePrinter(t *testing.T, role models.PrinterRole) (*ReceiptService, string) {
	t.Helper()
	db := testDB(t)
	out := filepath.Join(t.TempDir(), "printer.bin")
	require.NoError(t, db.Create(&models.PrinterConfig{
		Name:       "Station",
		Transport:  models.TransportFile,
		Address:    out,
		Role:       role,
		PaperWidth: models.PaperNarrow,
		IsDefault:  true,
		IsActive:   true,
		AutoCut:    true,
	}).Error)

	dispatcher := NewPrintDispatcher(db, NewPrinterService(db))
	return NewReceiptService(testBusiness(), dispatcher), out
}

func TestPrintBillEndToEnd(t *testing.T) {
	svc, out := pipelineWithFilePrinter(t, models.RoleCounter)

	session := NewOrderSession("B-2041", "T4")
	_, err := session.AddItem(models.OrderLine{ProductID: 1, Name: "Paneer Tikka", Quantity: 2, UnitPrice: 100, TaxRate: 5})
	require.NoError(t, err)

	totals, result, err := svc.PrintBill(session, nil, EncodeOptions{AutoCut: true})
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.InDelta(t, 210.0, totals.FinalAmount, MoneyEpsilon)

	payload, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte{ESC, '@'}))
	// Primary mode is raster, so the payload carries a GS v 0 block
	assert.True(t, bytes.Contains(payload, []byte{GS, 'v', '0'}))
	assert.True(t, bytes.HasSuffix(payload, []byte{GS, 'V', 66, 0}))
}

func TestPrintBillRejectsEmptySession(t *testing.T) {
	svc, _ := pipelineWithFilePrinter(t, models.RoleCounter)
	session := NewOrderSession("B-1", "T1")

	_, _, err := svc.PrintBill(session, nil, EncodeOptions{})
	assert.ErrorIs(t, err, ErrEmptyBill)
}

func TestPrintBillRejectsNegativeDiscount(t *testing.T) {
	svc, _ := pipelineWithFilePrinter(t, models.RoleCounter)
	session := NewOrderSession("B-1", "T1")
	session.AddItem(models.OrderLine{ProductID: 1, Name: "Tea", Quantity: 1, UnitPrice: 20})

	discount := &models.Discount{Kind: models.DiscountFixed, Value: -5}
	_, _, err := svc.PrintBill(session, discount, EncodeOptions{})
	assert.ErrorIs(t, err, ErrNegativeDiscount)
}

func TestPrintKitchenTicketCommitsOnSuccess(t *testing.T) {
	svc, out := pipelineWithFilePrinter(t, models.RoleKitchen)

	session := NewOrderSession("B-7", "T2")
	session.AddItem(models.OrderLine{ProductID: 1, Name: "Biryani", Quantity: 3, UnitPrice: 250})

	result, err := svc.PrintKitchenTicket(session)
	require.NoError(t, err)
	assert.True(t, result.Delivered)

	// Printed quantities advanced only after the successful send
	line := session.Lines()[0]
	assert.True(t, line.SentToKitchen)
	assert.Equal(t, 3, line.PrintedQuantity)
	assert.Empty(t, session.PendingDelta())

	payload, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Biryani")
	// Kitchen tickets never carry prices
	assert.NotContains(t, string(payload), "250")
}

func TestPrintKitchenTicketEmptyDeltaIsNoop(t *testing.T) {
	svc, out := pipelineWithFilePrinter(t, models.RoleKitchen)

	session := NewOrderSession("B-7", "T2")
	session.AddItem(models.OrderLine{ProductID: 1, Name: "Biryani", Quantity: 1, UnitPrice: 250})
	_, err := svc.PrintKitchenTicket(session)
	require.NoError(t, err)

	// Second send with nothing new prints nothing
	os.Remove(out)
	result, err := svc.PrintKitchenTicket(session)
	require.NoError(t, err)
	assert.Equal(t, "noop", result.Method)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPrintKitchenTicketFailureLeavesSessionUnchanged(t *testing.T) {
	// No printer, no queue, no dialog: dispatch must fail
	dispatcher := NewPrintDispatcher(nil, NewPrinterService(testDB(t)))
	svc := NewReceiptService(testBusiness(), dispatcher)

	session := NewOrderSession("B-8", "T3")
	session.AddItem(models.OrderLine{ProductID: 1, Name: "Biryani", Quantity: 2, UnitPrice: 250})

	_, err := svc.PrintKitchenTicket(session)
	assert.ErrorIs(t, err, ErrNoPrintMethod)

	line := session.Lines()[0]
	assert.False(t, line.SentToKitchen)
	assert.Zero(t, line.PrintedQuantity)
	assert.Len(t, session.PendingDelta(), 1)
}

func TestPrintSelfTest(t *testing.T) {
	db := testDB(t)
	out := filepath.Join(t.TempDir(), "printer.bin")
	printer := &models.PrinterConfig{
		Name: "Counter", Transport: models.TransportFile, Address: out,
		Role: models.RoleCounter, PaperWidth: models.PaperWide, IsActive: true, AutoCut: true,
	}
	require.NoError(t, db.Create(printer).Error)

	dispatcher := NewPrintDispatcher(db, NewPrinterService(db))
	svc := NewReceiptService(testBusiness(), dispatcher)

	require.NoError(t, svc.PrintSelfTest(printer))

	payload, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "PRINTER TEST")
}
