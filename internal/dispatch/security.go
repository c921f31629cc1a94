/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * reboot:<arg> / root: / unroot: / remount: / enable-verity: /
 * disable-verity: one-shot privileged commands
 */

package dispatch

import (
	"context"
	"net"

	"github.com/xDvir/adbr-server/internal/handlers"
	"github.com/xDvir/adbr-server/internal/registry"
)

func (d *Dispatcher) handleReboot(ctx context.Context, client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	if err := handlers.Reboot(ctx, dev.Conn, request, opTimeout); err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleSecurity(ctx context.Context, client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}

	var (
		response string
		err      error
	)
	switch request {
	case rootCommand:
		response, err = handlers.Root(ctx, dev.Conn, opTimeout)
	case unrootCommand:
		response, err = handlers.Unroot(ctx, dev.Conn, opTimeout)
	case remountCommand:
		response, err = handlers.Remount(ctx, dev.Conn, opTimeout)
	case enableVerityCommand:
		response, err = handlers.EnableVerity(ctx, dev.Conn, opTimeout)
	case disableVerityCommand:
		response, err = handlers.DisableVerity(ctx, dev.Conn, opTimeout)
	}
	if err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, []byte(response))
}
