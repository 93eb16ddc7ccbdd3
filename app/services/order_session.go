package services

import (
	"errors"
	"fmt"
	"time"

	"PosPrint/app/models"
)

// Order session errors, surfaced before any I/O happens
var (
	ErrLineNotFound    = errors.New("order line not found")
	ErrLineLocked      = errors.New("quantity cannot drop below what was sent to the kitchen")
	ErrLineSent        = errors.New("line already sent to the kitchen and cannot be removed")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// OrderSession owns the canonical line list for one active order (a table
// session or a takeaway token) and tracks how much of each line has already
// been printed on a kitchen ticket. All mutation goes through its methods so
// the printed-quantity invariant (0 ≤ printed ≤ quantity, monotone) holds.
type OrderSession struct {
	BillID   string
	TableRef string // table number or takeaway token
	Waiter   string
	OpenedAt time.Time

	lines  []models.OrderLine
	nextID uint
}

// NewOrderSession creates an empty session for one bill
func NewOrderSession(billID, tableRef string) *OrderSession {
	return &OrderSession{
		BillID:   billID,
		TableRef: tableRef,
		OpenedAt: time.Now(),
		nextID:   1,
	}
}

// Lines returns a copy of the current order lines
func (s *OrderSession) Lines() []models.OrderLine {
	out := make([]models.OrderLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// AddItem adds a line to the order. When a line for the same product and
// portion already exists, is not custom-priced and is not yet fully printed,
// the quantity is merged into it instead of creating a duplicate row.
func (s *OrderSession) AddItem(line models.OrderLine) (*models.OrderLine, error) {
	if line.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	if !line.CustomPrice {
		for i := range s.lines {
			l := &s.lines[i]
			if l.ProductID == line.ProductID && l.Portion == line.Portion &&
				!l.CustomPrice && l.PrintedQuantity < l.Quantity {
				l.Quantity += line.Quantity
				l.UpdatedAt = time.Now()
				return l, nil
			}
		}
	}

	line.ID = s.nextID
	s.nextID++
	line.SentToKitchen = false
	line.PrintedQuantity = 0
	line.CreatedAt = time.Now()
	line.UpdatedAt = line.CreatedAt
	s.lines = append(s.lines, line)
	return &s.lines[len(s.lines)-1], nil
}

// UpdateQuantity changes a line's quantity. Increases are always allowed;
// a decrease below the printed quantity signals ErrLineLocked because those
// portions are already on a kitchen ticket.
func (s *OrderSession) UpdateQuantity(lineID uint, quantity int) error {
	line := s.find(lineID)
	if line == nil {
		return fmt.Errorf("line %d: %w", lineID, ErrLineNotFound)
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if quantity < line.PrintedQuantity {
		return fmt.Errorf("line %d: %w", lineID, ErrLineLocked)
	}
	line.Quantity = quantity
	line.UpdatedAt = time.Now()
	return nil
}

// SetNotes updates the free-text note on a line
func (s *OrderSession) SetNotes(lineID uint, notes string) error {
	line := s.find(lineID)
	if line == nil {
		return fmt.Errorf("line %d: %w", lineID, ErrLineNotFound)
	}
	line.Notes = notes
	line.UpdatedAt = time.Now()
	return nil
}

// RemoveLine removes a line that has not been sent to the kitchen yet
func (s *OrderSession) RemoveLine(lineID uint) error {
	for i := range s.lines {
		if s.lines[i].ID == lineID {
			if s.lines[i].SentToKitchen {
				return fmt.Errorf("line %d: %w", lineID, ErrLineSent)
			}
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("line %d: %w", lineID, ErrLineNotFound)
}

// PendingDelta returns the lines owed to the kitchen since the last ticket:
// unsent lines in full, and for sent lines only the incremental quantity.
// An empty result means there is nothing new to send, which is a no-op for
// the caller, not an error.
func (s *OrderSession) PendingDelta() []models.OrderLine {
	var delta []models.OrderLine
	for i := range s.lines {
		l := s.lines[i]
		switch {
		case !l.SentToKitchen:
			delta = append(delta, l)
		case l.Quantity > l.PrintedQuantity:
			d := l
			d.Quantity = l.Quantity - l.PrintedQuantity
			delta = append(delta, d)
		}
	}
	return delta
}

// CommitKitchenSend marks every pending delta as printed. It must only be
// called after the transport reported success; on failure the session is left
// untouched so a retry recomputes the same delta.
func (s *OrderSession) CommitKitchenSend() {
	now := time.Now()
	for i := range s.lines {
		l := &s.lines[i]
		if !l.SentToKitchen || l.Quantity > l.PrintedQuantity {
			l.SentToKitchen = true
			l.PrintedQuantity = l.Quantity
			l.SentToKitchenAt = &now
			l.UpdatedAt = now
		}
	}
}

func (s *OrderSession) find(lineID uint) *models.OrderLine {
	for i := range s.lines {
		if s.lines[i].ID == lineID {
			return &s.lines[i]
		}
	}
	return nil
}
