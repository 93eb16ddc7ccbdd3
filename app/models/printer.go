package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// PrinterRole represents the station a printer serves
type PrinterRole string

const (
	RoleKitchen PrinterRole = "kitchen"
	RoleCounter PrinterRole = "counter"
	RoleBar     PrinterRole = "bar"
)

func (r PrinterRole) String() string {
	return string(r)
}

func (r *PrinterRole) Scan(value interface{}) error {
	*r = PrinterRole(value.(string))
	return nil
}

func (r PrinterRole) Value() (driver.Value, error) {
	return string(r), nil
}

// PaperWidth is the physical receipt roll width class
type PaperWidth string

const (
	PaperNarrow PaperWidth = "narrow" // 58mm rolls
	PaperMedium PaperWidth = "medium" // 76mm rolls
	PaperWide   PaperWidth = "wide"   // 80mm rolls
)

// Dots returns the printable dot width at 203 DPI for this paper class
func (w PaperWidth) Dots() int {
	switch w {
	case PaperNarrow:
		return 384
	case PaperMedium:
		return 432
	default:
		return 576
	}
}

// Columns returns the character grid width for text-mode printing
func (w PaperWidth) Columns() int {
	switch w {
	case PaperNarrow:
		return 32
	case PaperMedium:
		return 42
	default:
		return 48
	}
}

// Printer transport kinds
const (
	TransportUSB     = "usb"
	TransportNetwork = "network"
	TransportQueued  = "queued"
	TransportFile    = "file" // output to a file, for diagnostics
)

// DefaultNetworkPort is the raw listener port thermal printers expose
const DefaultNetworkPort = 9100

// PrinterConfig represents a configured physical or virtual printer
type PrinterConfig struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	Name       string      `gorm:"not null" json:"name"`
	Transport  string      `json:"transport"`   // "usb", "network", "queued", "file"
	Address    string      `json:"address"`     // "vvvv:pppp" vendor:product for USB, host for network
	Port       int         `json:"port"`        // network printers only
	Model      string      `json:"model"`
	Role       PrinterRole `gorm:"index" json:"role"`
	PaperWidth PaperWidth  `json:"paper_width"`
	IsDefault  bool        `json:"is_default"`
	IsActive   bool        `gorm:"default:true" json:"is_active"`
	AutoCut    bool        `gorm:"default:true" json:"auto_cut"`
	CashDrawer bool        `json:"cash_drawer"` // has a drawer wired to the printer
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NetworkAddr returns host:port for a network printer
func (c *PrinterConfig) NetworkAddr() string {
	port := c.Port
	if port == 0 {
		port = DefaultNetworkPort
	}
	return fmt.Sprintf("%s:%d", c.Address, port)
}

// DetectedPrinter represents a printer found during discovery,
// before it is saved as a PrinterConfig
type DetectedPrinter struct {
	Name       string      `json:"name"`
	Transport  string      `json:"transport"`
	Address    string      `json:"address"`
	Port       int         `json:"port"`
	Model      string      `json:"model"`
	Role       PrinterRole `json:"role"`
	PaperWidth PaperWidth  `json:"paper_width"`
}

// JobKind distinguishes kitchen tickets from customer bills
type JobKind string

const (
	JobKindTicket JobKind = "ticket"
	JobKindBill   JobKind = "bill"
)

// JobStatus is the lifecycle state of a queued print job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// PrintJob is a durable print request picked up by the agent loop when
// no direct transport was available at submission time
type PrintJob struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BillID    string      `gorm:"index" json:"bill_id"`
	Kind      JobKind     `gorm:"index" json:"kind"`
	Role      PrinterRole `json:"role"`
	Status    JobStatus   `gorm:"index" json:"status"`
	Payload   []byte      `gorm:"type:blob" json:"-"` // encoded device bytes
	Origin    string      `json:"origin"`             // "pos", "waiter_app"
	LastError string      `json:"last_error"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
