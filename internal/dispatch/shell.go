/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * shell:<cmd> / shell: dispatch to the C7 handler. Unlike the other
 * host commands, success carries no OKAY/FAIL framing: the client
 * socket becomes a raw pass-through to the device stream.
 */

package dispatch

import (
	"context"
	"net"

	"github.com/xDvir/adbr-server/internal/handlers"
	"github.com/xDvir/adbr-server/internal/registry"
)

func (d *Dispatcher) handleShell(ctx context.Context, client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}

	if request == "shell:" || request == "shell:\x00" {
		return handlers.OpenShellSession(ctx, dev.Conn, client, "shell:")
	}
	return handlers.ShellCommand(ctx, dev.Conn, client, request)
}
