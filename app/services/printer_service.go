package services

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PosPrint/app/models"

	"gorm.io/gorm"
)

// TransferErrorKind classifies transport failures so each can carry its own
// remediation hint
type TransferErrorKind string

const (
	TransferDeviceMissing TransferErrorKind = "device_missing"
	TransferOpenFailed    TransferErrorKind = "open_failed"
	TransferWriteFailed   TransferErrorKind = "write_failed"
	TransferTimeout       TransferErrorKind = "timeout"
)

var transferHints = map[TransferErrorKind]string{
	TransferDeviceMissing: "check the cable and that the printer is powered on",
	TransferOpenFailed:    "power cycle the printer or try another port",
	TransferWriteFailed:   "power cycle the printer and check for a paper jam",
	TransferTimeout:       "check the network connection to the printer",
}

// TransferError is a transport failure with a user-facing remediation hint
type TransferError struct {
	Kind    TransferErrorKind
	Printer string
	Err     error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("printer %s: %s", e.Printer, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (" + e.Hint() + ")"
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Hint returns the remediation suggestion for this failure
func (e *TransferError) Hint() string {
	return transferHints[e.Kind]
}

// ErrNoPrinterForRole is returned when no active printer serves a role
var ErrNoPrinterForRole = errors.New("no active printer configured for role")

// PrinterService performs the actual byte transfer to physical printers and
// resolves which configured printer serves a given role
type PrinterService struct {
	db      *gorm.DB
	usbRoot string // sysfs USB device tree, override in tests
	devRoot string // character device directory for usblp nodes
	timeout time.Duration
}

// NewPrinterService creates a printer service backed by the configured registry
func NewPrinterService(db *gorm.DB) *PrinterService {
	return &PrinterService{
		db:      db,
		usbRoot: "/sys/bus/usb/devices",
		devRoot: "/dev/usb",
		timeout: 5 * time.Second,
	}
}

// PrinterForRole returns the default active printer for a role, falling back
// to any active printer with that role
func (s *PrinterService) PrinterForRole(role models.PrinterRole) (*models.PrinterConfig, error) {
	var config models.PrinterConfig
	err := s.db.Where("role = ? AND is_default = ? AND is_active = ?", role, true, true).
		First(&config).Error
	if err == nil {
		return &config, nil
	}
	err = s.db.Where("role = ? AND is_active = ?", role, true).First(&config).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrinterForRole, role)
	}
	return &config, nil
}

// SetDefault marks one printer as the default and only default for its role,
// activating it at the same time
func (s *PrinterService) SetDefault(printerID uint) error {
	var printer models.PrinterConfig
	if err := s.db.First(&printer, printerID).Error; err != nil {
		return fmt.Errorf("printer %d not found: %w", printerID, err)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PrinterConfig{}).
			Where("role = ? AND id <> ?", printer.Role, printer.ID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&printer).Updates(map[string]interface{}{
			"is_default": true,
			"is_active":  true,
		}).Error
	})
}

// Transfer writes an encoded payload to the printer. The device is opened,
// written and closed on every call; cleanup runs on every exit path.
func (s *PrinterService) Transfer(config *models.PrinterConfig, payload []byte) error {
	switch config.Transport {
	case models.TransportUSB:
		return s.transferUSB(config, payload)
	case models.TransportNetwork:
		return s.transferNetwork(config, payload)
	case models.TransportFile:
		return s.transferFile(config, payload)
	default:
		return fmt.Errorf("transport %q has no direct transfer", config.Transport)
	}
}

// Probe is a lightweight connectivity check that does not consume paper
func (s *PrinterService) Probe(config *models.PrinterConfig) error {
	switch config.Transport {
	case models.TransportUSB:
		_, err := s.resolveUSBNode(config)
		return err
	case models.TransportNetwork:
		conn, err := net.DialTimeout("tcp", config.NetworkAddr(), s.timeout)
		if err != nil {
			return s.classifyDialErr(config, err)
		}
		defer conn.Close()
		conn.SetWriteDeadline(time.Now().Add(s.timeout))
		if _, err := conn.Write(StatusProbe()); err != nil {
			return s.classifyNetErr(config, err)
		}
		// Not every firmware answers the probe; reaching the listener is
		// enough for a health indication.
		return nil
	case models.TransportFile:
		return nil
	default:
		return fmt.Errorf("transport %q cannot be probed", config.Transport)
	}
}

func (s *PrinterService) transferUSB(config *models.PrinterConfig, payload []byte) error {
	node, err := s.resolveUSBNode(config)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(node, os.O_WRONLY, 0)
	if err != nil {
		return &TransferError{Kind: TransferOpenFailed, Printer: config.Name, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return &TransferError{Kind: TransferWriteFailed, Printer: config.Name, Err: err}
	}
	return nil
}

func (s *PrinterService) transferNetwork(config *models.PrinterConfig, payload []byte) error {
	conn, err := net.DialTimeout("tcp", config.NetworkAddr(), s.timeout)
	if err != nil {
		return s.classifyDialErr(config, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := conn.Write(payload); err != nil {
		return s.classifyNetErr(config, err)
	}
	return nil
}

func (s *PrinterService) transferFile(config *models.PrinterConfig, payload []byte) error {
	f, err := os.Create(config.Address)
	if err != nil {
		return &TransferError{Kind: TransferOpenFailed, Printer: config.Name, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return &TransferError{Kind: TransferWriteFailed, Printer: config.Name, Err: err}
	}
	return nil
}

// resolveUSBNode maps a vendor:product address to the usblp character device
// by scanning the sysfs USB tree
func (s *PrinterService) resolveUSBNode(config *models.PrinterConfig) (string, error) {
	vendor, product, ok := strings.Cut(strings.ToLower(config.Address), ":")
	if !ok {
		return "", &TransferError{
			Kind:    TransferDeviceMissing,
			Printer: config.Name,
			Err:     fmt.Errorf("invalid usb address %q, want vendor:product", config.Address),
		}
	}

	entries, err := os.ReadDir(s.usbRoot)
	if err != nil {
		return "", &TransferError{Kind: TransferDeviceMissing, Printer: config.Name, Err: err}
	}

	for _, entry := range entries {
		dir := filepath.Join(s.usbRoot, entry.Name())
		if readSysfsAttr(dir, "idVendor") != vendor || readSysfsAttr(dir, "idProduct") != product {
			continue
		}
		// The usblp interface directory names the lpN node
		matches, _ := filepath.Glob(filepath.Join(dir, "*", "usblp*"))
		for _, m := range matches {
			return filepath.Join(s.devRoot, filepath.Base(m)), nil
		}
		// Device present but no usblp binding; try the first node
		return filepath.Join(s.devRoot, "lp0"), nil
	}

	return "", &TransferError{
		Kind:    TransferDeviceMissing,
		Printer: config.Name,
		Err:     fmt.Errorf("no usb device %s connected", config.Address),
	}
}

// classifyDialErr distinguishes an unreachable printer from a slow one
func (s *PrinterService) classifyDialErr(config *models.PrinterConfig, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransferError{Kind: TransferTimeout, Printer: config.Name, Err: err}
	}
	return &TransferError{Kind: TransferDeviceMissing, Printer: config.Name, Err: err}
}

func (s *PrinterService) classifyNetErr(config *models.PrinterConfig, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransferError{Kind: TransferTimeout, Printer: config.Name, Err: err}
	}
	return &TransferError{Kind: TransferWriteFailed, Printer: config.Name, Err: err}
}

// readSysfsAttr reads a single sysfs attribute, empty on failure
func readSysfsAttr(dir, attr string) string {
	data, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
