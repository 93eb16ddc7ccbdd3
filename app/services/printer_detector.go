package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PosPrint/app/models"

	"github.com/grandcat/zeroconf"
)

// thermalVendors is the whitelist of USB vendor ids known to ship ESC/POS
// thermal printers. Discovery only considers devices from these vendors.
var thermalVendors = map[string]string{
	"04b8": "Epson",
	"0519": "Star Micronics",
	"1504": "Bixolon",
	"1d90": "Citizen",
	"0fe6": "Rongta",
	"0483": "Xprinter",
}

// mDNS service types raw-socket thermal printers announce themselves under
var printerServiceTypes = []string{"_pdl-datastream._tcp", "_printer._tcp"}

// roleRule maps name keywords to a printer role. Rules are evaluated in
// order; the first match wins, and counter is the fallback.
type roleRule struct {
	keywords []string
	role     models.PrinterRole
}

var roleRules = []roleRule{
	{keywords: []string{"kitchen", "kot", "cocina"}, role: models.RoleKitchen},
	{keywords: []string{"bar", "beverage", "drink"}, role: models.RoleBar},
}

// RoleForName classifies a printer by its reported name
func RoleForName(name string) models.PrinterRole {
	lower := strings.ToLower(name)
	for _, rule := range roleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.role
			}
		}
	}
	return models.RoleCounter
}

// WidthForName infers the paper width class from width hints in the device
// name, defaulting to the widest supported class
func WidthForName(name string) models.PaperWidth {
	switch {
	case strings.Contains(name, "58"):
		return models.PaperNarrow
	case strings.Contains(name, "76"):
		return models.PaperMedium
	default:
		return models.PaperWide
	}
}

// PrinterDetector enumerates candidate thermal printers on the local USB bus
// and the local network
type PrinterDetector struct {
	usbRoot       string // sysfs USB device tree, override in tests
	browseTimeout time.Duration
}

// NewPrinterDetector creates a detector with the standard device roots
func NewPrinterDetector() *PrinterDetector {
	return &PrinterDetector{
		usbRoot:       "/sys/bus/usb/devices",
		browseTimeout: 3 * time.Second,
	}
}

// Discover enumerates USB and network printers, skipping devices already
// present in the configuration. An empty result is a normal state, not an
// error: it simply means no printer is reachable right now.
func (d *PrinterDetector) Discover(ctx context.Context, existing []models.PrinterConfig) []models.DetectedPrinter {
	var found []models.DetectedPrinter
	found = append(found, d.DetectUSB()...)
	found = append(found, d.DetectNetwork(ctx)...)

	var fresh []models.DetectedPrinter
	for _, p := range found {
		if !alreadyConfigured(p, existing) {
			fresh = append(fresh, p)
		}
	}
	return fresh
}

// DetectUSB scans the USB bus for whitelisted thermal printer vendors
func (d *PrinterDetector) DetectUSB() []models.DetectedPrinter {
	var printers []models.DetectedPrinter

	entries, err := os.ReadDir(d.usbRoot)
	if err != nil {
		// No bus to scan (or no permission); treat as nothing found
		return printers
	}

	for _, entry := range entries {
		dir := filepath.Join(d.usbRoot, entry.Name())
		vendor := readSysfsAttr(dir, "idVendor")
		vendorName, ok := thermalVendors[vendor]
		if !ok {
			continue
		}
		product := readSysfsAttr(dir, "idProduct")
		if product == "" {
			continue
		}

		// Best effort; an unreadable product string must not abort discovery
		name := readSysfsAttr(dir, "product")
		if name == "" {
			name = vendorName + " Thermal Printer"
		}

		printers = append(printers, models.DetectedPrinter{
			Name:       name,
			Transport:  models.TransportUSB,
			Address:    fmt.Sprintf("%s:%s", vendor, product),
			Model:      name,
			Role:       RoleForName(name),
			PaperWidth: WidthForName(name),
		})
	}

	return printers
}

// DetectNetwork browses mDNS for raw-socket printer announcements
func (d *PrinterDetector) DetectNetwork(ctx context.Context) []models.DetectedPrinter {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Printf("discovery: mDNS resolver unavailable: %v", err)
		return nil
	}

	var printers []models.DetectedPrinter
	for _, service := range printerServiceTypes {
		browseCtx, cancel := context.WithTimeout(ctx, d.browseTimeout)
		entries := make(chan *zeroconf.ServiceEntry)

		go func() {
			if err := resolver.Browse(browseCtx, service, "local.", entries); err != nil {
				log.Printf("discovery: browse %s failed: %v", service, err)
			}
		}()

		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			port := entry.Port
			if port == 0 {
				port = models.DefaultNetworkPort
			}
			name := entry.Instance
			if name == "" {
				name = "Network Thermal Printer"
			}
			printers = append(printers, models.DetectedPrinter{
				Name:       name,
				Transport:  models.TransportNetwork,
				Address:    entry.AddrIPv4[0].String(),
				Port:       port,
				Model:      name,
				Role:       RoleForName(name),
				PaperWidth: WidthForName(name),
			})
		}
		cancel()
	}

	return printers
}

// alreadyConfigured matches a detected device against the registry by its
// transport address so re-running discovery never duplicates printers
func alreadyConfigured(p models.DetectedPrinter, existing []models.PrinterConfig) bool {
	for i := range existing {
		e := &existing[i]
		if e.Transport != p.Transport {
			continue
		}
		switch p.Transport {
		case models.TransportUSB:
			if strings.EqualFold(e.Address, p.Address) {
				return true
			}
		case models.TransportNetwork:
			if e.Address == p.Address && (e.Port == p.Port || e.Port == 0 && p.Port == models.DefaultNetworkPort) {
				return true
			}
		}
	}
	return false
}
