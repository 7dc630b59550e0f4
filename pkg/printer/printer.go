// Package printer provides raw transports for thermal ticket printers.
// Ticket layout is owned by the callers; this package only moves bytes.
package printer

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	probeTimeout = 2 * time.Second
)

// Printer sends raw bytes to a physical till printer.
type Printer interface {
	Print(data []byte) error
	Close() error
	IsConnected() bool
}

// PrintLines joins lines with newlines, terminates the job with a paper feed
// and sends it through p.
func PrintLines(p Printer, lines []string) error {
	return p.Print([]byte(strings.Join(lines, "\n") + "\n\n\n"))
}

// NewPrinterFromConfig selects a transport by type: "usb" writes to a device
// file ("/dev/usb/lp0"), "network" dials TCP ("192.168.1.100:9100"), "none"
// or empty discards jobs.
func NewPrinterFromConfig(printerType, usbPath, address string) (Printer, error) {
	switch printerType {
	case "usb":
		if usbPath == "" {
			return nil, fmt.Errorf("printer: usb type needs a device path")
		}
		return NewUSBPrinter(usbPath), nil
	case "network":
		if address == "" {
			return nil, fmt.Errorf("printer: network type needs an address")
		}
		return NewNetworkPrinter(address), nil
	case "none", "null", "":
		return NewNullPrinter(), nil
	default:
		return nil, fmt.Errorf("printer: unknown type %q (use usb, network, or none)", printerType)
	}
}

// deviceFilePrinter opens the device file per job so a jammed printer never
// pins a file handle.
type deviceFilePrinter struct {
	path string
}

// NewUSBPrinter returns a printer backed by a USB device file.
func NewUSBPrinter(devicePath string) Printer {
	return &deviceFilePrinter{path: devicePath}
}

func (p *deviceFilePrinter) Print(data []byte) error {
	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("printer: open %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.path, err)
	}
	return nil
}

func (p *deviceFilePrinter) Close() error { return nil }

func (p *deviceFilePrinter) IsConnected() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// tcpPrinter dials per job, matching how raw-socket thermal printers expect
// short-lived connections.
type tcpPrinter struct {
	address string
}

// NewNetworkPrinter returns a printer reached over TCP; address must include
// the port.
func NewNetworkPrinter(address string) Printer {
	return &tcpPrinter{address: address}
}

func (p *tcpPrinter) Print(data []byte) error {
	conn, err := net.DialTimeout("tcp", p.address, dialTimeout)
	if err != nil {
		return fmt.Errorf("printer: dial %s: %w", p.address, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.address, err)
	}
	return nil
}

func (p *tcpPrinter) Close() error { return nil }

func (p *tcpPrinter) IsConnected() bool {
	conn, err := net.DialTimeout("tcp", p.address, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

type nullPrinter struct{}

// NewNullPrinter returns a printer that discards every job, for environments
// without hardware.
func NewNullPrinter() Printer { return nullPrinter{} }

func (nullPrinter) Print([]byte) error { return nil }
func (nullPrinter) Close() error       { return nil }
func (nullPrinter) IsConnected() bool  { return false }
