package services

import (
	"fmt"
	"log"

	"PosPrint/app/models"
)

// ReceiptService ties the pipeline together: totals, rendering, ESC/POS
// encoding and dispatch. It is the entry point order flows call into.
type ReceiptService struct {
	business   *models.BusinessConfig
	renderer   *Renderer
	encoder    *Encoder
	dispatcher *PrintDispatcher
}

// NewReceiptService builds the pipeline over a configured dispatcher
func NewReceiptService(business *models.BusinessConfig, dispatcher *PrintDispatcher) *ReceiptService {
	return &ReceiptService{
		business:   business,
		renderer:   NewRenderer(business),
		encoder:    &Encoder{},
		dispatcher: dispatcher,
	}
}

// PrintBill computes totals for the session, renders the customer bill and
// dispatches it to the counter printer. Raster rendering is preferred; if it
// fails the bill is re-rendered in text mode before giving up.
func (s *ReceiptService) PrintBill(session *OrderSession, discount *models.Discount, opts EncodeOptions) (*models.OrderTotals, *DispatchResult, error) {
	lines := session.Lines()

	totals, err := ComputeTotals(lines, discount, s.business.TaxMode)
	if err != nil {
		return nil, nil, err
	}

	meta := BillMeta{
		BillNumber: session.BillID,
		TableRef:   session.TableRef,
		Waiter:     session.Waiter,
		Timestamp:  session.OpenedAt,
	}

	width := s.printerWidth(models.RoleCounter)

	doc, err := s.renderer.RenderBill(lines, totals, meta, width, ModeRaster)
	if err == nil {
		if payload, encErr := s.encoder.Encode(doc, opts); encErr == nil {
			result, dispErr := s.dispatcher.Dispatch(session.BillID, doc, payload, models.RoleCounter, "bill")
			if dispErr == nil {
				return totals, result, nil
			}
			return totals, nil, dispErr
		}
		log.Printf("raster encode failed for bill %s, falling back to text", session.BillID)
	} else {
		log.Printf("raster render failed for bill %s, falling back to text: %v", session.BillID, err)
	}

	doc, err = s.renderer.RenderBill(lines, totals, meta, width, ModeText)
	if err != nil {
		return totals, nil, err
	}
	payload, err := s.encoder.Encode(doc, opts)
	if err != nil {
		return totals, nil, fmt.Errorf("failed to encode bill: %w", err)
	}
	result, err := s.dispatcher.Dispatch(session.BillID, doc, payload, models.RoleCounter, "bill")
	if err != nil {
		return totals, nil, err
	}
	return totals, result, nil
}

// PrintKitchenTicket sends the unsent portion of the order to the kitchen
// printer. The session is only marked as sent after delivery succeeds, so a
// failed print can simply be retried. An empty delta is a no-op.
func (s *ReceiptService) PrintKitchenTicket(session *OrderSession) (*DispatchResult, error) {
	delta := session.PendingDelta()
	if len(delta) == 0 {
		return &DispatchResult{Delivered: true, Method: "noop"}, nil
	}

	meta := BillMeta{
		BillNumber: session.BillID,
		TableRef:   session.TableRef,
		Waiter:     session.Waiter,
		Timestamp:  session.OpenedAt,
	}

	doc, err := s.renderer.RenderTicket(delta, meta, s.printerWidth(models.RoleKitchen))
	if err != nil {
		return nil, err
	}

	payload, err := s.encoder.Encode(doc, EncodeOptions{AutoCut: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode kitchen ticket: %w", err)
	}

	result, err := s.dispatcher.Dispatch(session.BillID, doc, payload, models.RoleKitchen, "kitchen")
	if err != nil {
		return nil, err
	}

	// Delivery (or durable queueing) succeeded; advance printed quantities
	session.CommitKitchenSend()
	return result, nil
}

// PrintSelfTest sends the diagnostic page to the given printer
func (s *ReceiptService) PrintSelfTest(printer *models.PrinterConfig) error {
	doc := s.renderer.SelfTestDocument(printer.PaperWidth)
	payload, err := s.encoder.Encode(doc, EncodeOptions{AutoCut: printer.AutoCut})
	if err != nil {
		return fmt.Errorf("failed to encode test page: %w", err)
	}
	if err := s.dispatcher.printers.Transfer(printer, payload); err != nil {
		return err
	}
	return nil
}

// printerWidth returns the configured paper width for a role, or the widest
// class when no printer is configured yet
func (s *ReceiptService) printerWidth(role models.PrinterRole) models.PaperWidth {
	if s.dispatcher == nil || s.dispatcher.printers == nil {
		return models.PaperWide
	}
	printer, err := s.dispatcher.printers.PrinterForRole(role)
	if err != nil || printer.PaperWidth == "" {
		return models.PaperWide
	}
	return printer.PaperWidth
}
