/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Enumerates attached USB devices exposing the ADB interface
 */

package usbtransport

import (
	"github.com/google/gousb"
)

// Found describes one attached device matching the ADB interface triple
type Found struct {
	Addr   Addr
	Serial string
	Vendor uint16
	Prod   uint16
	dev    *gousb.Device
}

// Scan enumerates attached devices whose descriptor carries an
// interface matching m, filtered by vendorAllow (empty = allow any
// vendor). ctx must be released by the caller once scanning is done
// for the process lifetime (it is typically kept open for the life
// of the daemon).
func Scan(ctx *gousb.Context, m InterfaceMatch, vendorAllow []uint16) ([]Found, error) {
	var found []Found

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if !vendorAllowed(uint16(desc.Vendor), vendorAllow) {
			return false
		}
		return hasInterface(desc, m)
	})
	if err != nil && len(devs) == 0 {
		return nil, err
	}

	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		found = append(found, Found{
			Addr:   Addr{Bus: dev.Desc.Bus, Address: dev.Desc.Address},
			Serial: serial,
			Vendor: uint16(dev.Desc.Vendor),
			Prod:   uint16(dev.Desc.Product),
			dev:    dev,
		})
	}

	return found, nil
}

// Device returns the opened gousb.Device behind a Found entry, for
// passing to Open. The caller takes ownership of closing it (via
// Transport.Close) once a Transport has been created from it.
func (f Found) Device() *gousb.Device {
	return f.dev
}

func vendorAllowed(vendor uint16, allow []uint16) bool {
	if len(allow) == 0 {
		return true
	}
	for _, v := range allow {
		if v == vendor {
			return true
		}
	}
	return false
}

func hasInterface(desc *gousb.DeviceDesc, m InterfaceMatch) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.Class(m.Class) &&
					alt.SubClass == gousb.Class(m.SubClass) &&
					alt.Protocol == gousb.Protocol(m.Protocol) {
					return true
				}
			}
		}
	}
	return false
}
