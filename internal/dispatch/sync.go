/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * sync: dispatch to the C8 handler
 */

package dispatch

import (
	"context"
	"net"

	"github.com/xDvir/adbr-server/internal/handlers"
	"github.com/xDvir/adbr-server/internal/registry"
)

func (d *Dispatcher) handleSync(ctx context.Context, client net.Conn, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	return handlers.HandleSync(ctx, dev.Conn, client, syncTimeout)
}
