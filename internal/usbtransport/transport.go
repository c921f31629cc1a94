/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * USB bulk transport, backed by gousb
 */

// Package usbtransport implements the USB transport (C1): claiming
// the ADB interface, bulk read/write with timeout, and classification
// of USB-layer errors into the domain error taxonomy.
package usbtransport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/xDvir/adbr-server/internal/logging"
)

// InterfaceMatch describes the (class, subclass, protocol) triple
// identifying the ADB interface on a device
type InterfaceMatch struct {
	Class    uint8
	SubClass uint8
	Protocol uint8
}

// BulkTransport is the capability set adbconn.Conn needs from a
// claimed device connection: bulk read/write with cancellation, and
// teardown. *Transport implements it; tests substitute an in-memory
// fake instead of a real USB device.
type BulkTransport interface {
	BulkWrite(ctx context.Context, data []byte) error
	BulkRead(ctx context.Context, buf []byte) error
	Close() error
}

// DefaultInterfaceMatch is the standard ADB interface triple
var DefaultInterfaceMatch = InterfaceMatch{Class: 0xff, SubClass: 0x42, Protocol: 0x01}

// Addr identifies a USB device by bus/address, stable only for the
// lifetime of one physical attachment
type Addr struct {
	Bus     int
	Address int
}

// String implements fmt.Stringer
func (a Addr) String() string {
	return fmt.Sprintf("%03d.%03d", a.Bus, a.Address)
}

// Transport is a claimed ADB bulk-transfer endpoint pair on one USB device
type Transport struct {
	Addr   Addr
	Serial string
	Vendor uint16
	Prod   uint16

	log *logging.Logger

	mu      sync.Mutex
	dev     *gousb.Device
	cfg     *gousb.Config
	iface   *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	closed  bool
}

// Open claims the ADB interface on dev, picking the first interface
// matching m. Fails with ErrDeviceNotFound, ErrUnauthorized, or
// ErrConnection.
func Open(dev *gousb.Device, m InterfaceMatch, log *logging.Logger) (t *Transport, err error) {
	var cfgNum int
	var ifNum int
	var setting gousb.InterfaceSetting
	found := false

	for _, cfg := range dev.Desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if !found && alt.Class == gousb.Class(m.Class) &&
					alt.SubClass == gousb.Class(m.SubClass) &&
					alt.Protocol == gousb.Protocol(m.Protocol) {
					cfgNum = cfg.Number
					ifNum = intf.Number
					setting = alt
					found = true
				}
			}
		}
	}

	if !found {
		return nil, ErrDeviceNotFound
	}

	t = &Transport{
		Addr:   Addr{Bus: dev.Desc.Bus, Address: dev.Desc.Address},
		Serial: "",
		Vendor: uint16(dev.Desc.Vendor),
		Prod:   uint16(dev.Desc.Product),
		log:    log,
		dev:    dev,
	}

	t.Serial, _ = dev.SerialNumber()

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		err = classifyErr(err)
		goto ERROR
	}
	t.cfg = cfg

	t.iface, err = cfg.Interface(ifNum, setting.Alternate)
	if err != nil {
		err = classifyErr(err)
		goto ERROR
	}

	for _, ep := range setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn && t.in == nil {
			t.in, err = t.iface.InEndpoint(ep.Number)
			if err != nil {
				err = classifyErr(err)
				goto ERROR
			}
		}
		if ep.Direction == gousb.EndpointDirectionOut && t.out == nil {
			t.out, err = t.iface.OutEndpoint(ep.Number)
			if err != nil {
				err = classifyErr(err)
				goto ERROR
			}
		}
		if t.in != nil && t.out != nil {
			break
		}
	}

	if t.in == nil || t.out == nil {
		err = ErrConnection
		goto ERROR
	}

	return t, nil

ERROR:
	t.release()
	return nil, err
}

// BulkWrite writes the whole of data to the OUT endpoint
func (t *Transport) BulkWrite(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrConnection
	}

	_, err := t.out.WriteContext(ctx, data)
	if err != nil {
		return classifyErr(err)
	}
	return nil
}

// BulkRead reads exactly len(buf) bytes from the IN endpoint,
// repeating short reads of at most 64 KiB until buf is full. A 0-byte
// read is reported as ErrConnection (device gone).
func (t *Transport) BulkRead(ctx context.Context, buf []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrConnection
	}

	const chunk = 64 * 1024
	got := 0

	for got < len(buf) {
		end := got + chunk
		if end > len(buf) {
			end = len(buf)
		}

		n, err := t.in.ReadContext(ctx, buf[got:end])
		if n == 0 && err == nil {
			return ErrConnection
		}
		if err != nil && err != io.EOF {
			return classifyErr(err)
		}

		got += n
	}

	return nil
}

// Reset performs a USB port reset of the device (gousb Device.Reset)
func (t *Transport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrConnection
	}

	return classifyErr(t.dev.Reset())
}

// Close releases the claimed interface and closes the underlying device
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.release()
}

func (t *Transport) release() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if t.iface != nil {
		t.iface.Close()
	}
	if t.cfg != nil {
		t.cfg.Close()
	}
	if t.dev != nil {
		return t.dev.Close()
	}
	return nil
}

// DefaultTimeout is a 10 s bulk transfer budget. BulkRead and BulkWrite
// do not apply it; they are bounded only by their ctx.
const DefaultTimeout = 10 * time.Second
