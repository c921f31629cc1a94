/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Device discovery: a Scanner enumerates attached devices, the
 * discovery loop filters out already-known serials and connects the rest
 */

package registry

import (
	"context"

	"github.com/google/gousb"

	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/usbtransport"
)

// ScannedDevice is one attached device a Scanner found, not yet
// wrapped in a Conn
type ScannedDevice struct {
	Serial string
	found  usbtransport.Found
}

// Scanner enumerates attached devices exposing the ADB interface.
// Implementations may filter by transport (USB here; spec.md's
// Non-goals exclude the emulator/TCP transport a second scanner could
// cover).
type Scanner interface {
	Scan(ctx context.Context) ([]ScannedDevice, error)
}

// USBScanner implements Scanner over a shared libusb context
type USBScanner struct {
	usbCtx      *gousb.Context
	match       usbtransport.InterfaceMatch
	vendorAllow []uint16
}

// NewUSBScanner wraps usbCtx (owned by the caller for the daemon's
// lifetime) for device enumeration
func NewUSBScanner(usbCtx *gousb.Context, match usbtransport.InterfaceMatch, vendorAllow []uint16) *USBScanner {
	return &USBScanner{usbCtx: usbCtx, match: match, vendorAllow: vendorAllow}
}

// Scan enumerates attached devices matching the ADB interface triple.
// ctx is accepted for interface symmetry with a future network
// scanner; USB enumeration itself is not cancellable mid-call.
func (s *USBScanner) Scan(ctx context.Context) ([]ScannedDevice, error) {
	found, err := usbtransport.Scan(s.usbCtx, s.match, s.vendorAllow)
	if err != nil {
		return nil, err
	}

	out := make([]ScannedDevice, 0, len(found))
	for _, f := range found {
		if f.Serial == "" {
			continue
		}
		out = append(out, ScannedDevice{Serial: f.Serial, found: f})
	}
	return out, nil
}

// Open claims the ADB interface on the scanned device, returning a
// usable bulk transport
func (s ScannedDevice) Open(match usbtransport.InterfaceMatch, log *logging.Logger) (*usbtransport.Transport, error) {
	return usbtransport.Open(s.found.Device(), match, log)
}
