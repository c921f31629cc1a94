/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Discovery and monitor loops: find new devices and authenticate them,
 * then periodically re-verify connected ones and retry the rest
 */

package registry

import (
	"context"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/usbtransport"
)

// Scan/monitor cadence, mirrored from original_source's
// SCANNING_INTERVAL_MS and AdbServer::MONITORING_INTERVAL_MS
const (
	scanInterval    = 1 * time.Second
	monitorInterval = 500 * time.Millisecond
)

const (
	ConnectEvent    = "connect"
	DisconnectEvent = "disconnect"
)

// HookFunc fires a connect/disconnect hook for serial; nil is a valid
// no-op dispatcher
type HookFunc func(serial, event string)

// DiscoveryLoop scans for attached devices every scanInterval, skips
// any serial already known (connected or mid-connection), and attempts
// to authenticate each new one in its own goroutine
func DiscoveryLoop(ctx context.Context, reg *Registry, scanner Scanner, match usbtransport.InterfaceMatch, keyDir string, connectTimeout time.Duration, log *logging.Logger, hook HookFunc) {
	for {
		if ctx.Err() != nil {
			return
		}

		found, err := scanner.Scan(ctx)
		if err == nil {
			for _, sd := range found {
				if !reg.IsNewDevice(sd.Serial) {
					continue
				}
				reg.Reserve(sd.Serial)
				go connectDevice(ctx, reg, sd, match, keyDir, connectTimeout, log, hook)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(scanInterval):
		}
	}
}

func connectDevice(ctx context.Context, reg *Registry, sd ScannedDevice, match usbtransport.InterfaceMatch, keyDir string, timeout time.Duration, log *logging.Logger, hook HookFunc) {
	transport, err := sd.Open(match, log)
	if err != nil {
		reg.Remove(sd.Serial)
		return
	}

	conn := adbconn.NewConn(transport, log)

	if err := conn.SendConnect(ctx, timeout); err != nil {
		conn.Close()
		reg.Remove(sd.Serial)
		return
	}

	err = adbconn.Authenticate(ctx, conn, keyDir, timeout)
	if err == nil {
		dev := NewDevice(sd.Serial, conn, true, StatusAvailable)
		reg.Insert(dev)
		if hook != nil {
			go hook(sd.Serial, ConnectEvent)
		}
		return
	}

	if _, unauthorized := err.(*adbconn.UnauthorizedError); unauthorized {
		reg.Insert(NewDevice(sd.Serial, conn, true, StatusUnauthorized))
		return
	}

	dev := NewDevice(sd.Serial, conn, true, StatusOffline)
	dev.SetStatus(StatusOffline, err.Error())
	reg.Insert(dev)
}

// MonitorLoop re-verifies each connected device once its status-scaled
// interval has passed, and drops unauthorized/offline entries on the
// same cadence so DiscoveryLoop retries them
func MonitorLoop(ctx context.Context, reg *Registry, log *logging.Logger, hook HookFunc) {
	for {
		if ctx.Err() != nil {
			return
		}

		reg.ForEach(func(serial string, dev *Device) {
			if dev == nil || !dev.MonitoringIntervalPassed() {
				return
			}

			status, _ := dev.Status()
			switch status {
			case StatusAvailable:
				if err := dev.Conn.VerifyConnectionStatus(); err != nil {
					dev.CloseGracefully()
					dev.Conn.Close()
					reg.Remove(serial)
					if hook != nil {
						go hook(serial, DisconnectEvent)
					}
				}
			default:
				// Unauthorized/offline devices are dropped so the next
				// discovery pass re-attempts the connection handshake.
				reg.Remove(serial)
			}

			dev.UpdateLastMonitored()
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(monitorInterval):
		}
	}
}
