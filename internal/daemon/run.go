/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Top-level daemon wiring: USB discovery/monitor loops, connect/
 * disconnect hooks, the control socket, and the client-facing TCP
 * listener, all sharing one registry and one libusb context
 */

package daemon

import (
	"context"
	"time"

	"github.com/google/gousb"

	"github.com/xDvir/adbr-server/internal/config"
	"github.com/xDvir/adbr-server/internal/dispatch"
	"github.com/xDvir/adbr-server/internal/hooks"
	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/registry"
	"github.com/xDvir/adbr-server/internal/usbtransport"
)

const connectTimeout = 10 * time.Second

// Run starts USB discovery/monitoring, the connect/disconnect hook
// executor, the control socket and the client listener, then blocks
// serving clients until ctx is cancelled -- either by the caller's own
// signal handling, or by a "/shutdown" request on the control socket,
// which invokes cancel.
func Run(ctx context.Context, cancel context.CancelFunc, addr string, port int, log *logging.Logger) error {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	match := usbtransport.InterfaceMatch{
		Class:    uint8(config.Conf.InterfaceClass),
		SubClass: uint8(config.Conf.InterfaceSubtype),
		Protocol: uint8(config.Conf.InterfaceProto),
	}

	reg := registry.New()
	scanner := registry.NewUSBScanner(usbCtx, match, config.Conf.VendorAllowList)
	exec := hooks.NewExecutor(log)

	hook := registry.HookFunc(func(serial, event string) {
		exec.Dispatch(serial, event)
	})

	keyDir := config.KeyDirOrDefault()

	go registry.DiscoveryLoop(ctx, reg, scanner, match, keyDir, connectTimeout, log, hook)
	go registry.MonitorLoop(ctx, reg, log, hook)

	stopCtrlsock, err := StartCtrlsock(reg, log, cancel)
	if err != nil {
		return err
	}
	defer stopCtrlsock()

	listener, err := NewClientListener(addr, port)
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Info(' ', "adbr-server listening on port %d", port)

	disp := dispatch.New(reg, log)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go disp.HandleClient(ctx, conn)
	}
}
