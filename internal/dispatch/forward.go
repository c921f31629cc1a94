/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * host:forward:/reverse:forward: request parsing, delegating the
 * actual bind/teardown work to the registry
 */

package dispatch

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/xDvir/adbr-server/internal/handlers"
	"github.com/xDvir/adbr-server/internal/registry"
)

const reverseSetupTimeout = 2 * time.Second

func (d *Dispatcher) handleForwardSet(ctx context.Context, client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}

	spec := request[len(forwardCommand):]
	noRebind := false
	if strings.HasPrefix(spec, forwardNoRebindTag) {
		noRebind = true
		spec = spec[len(forwardNoRebindTag):]
	}

	info, err := handlers.ParseForwardInfo(spec)
	if err != nil {
		return writeFail(client, err.Error())
	}

	if err := registry.SetForward(ctx, dev, info, noRebind); err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleForwardKill(client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	localSpec := request[len(killForwardCommand):]
	if err := registry.RemoveForward(dev, localSpec); err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleForwardKillAll(client net.Conn, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	registry.RemoveAllForwards(dev)
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleForwardList(client net.Conn, dev *registry.Device) error {
	if dev == nil {
		return writeOkay(client, nil)
	}
	return writeOkay(client, []byte(registry.ListForwardsText(dev)))
}

func (d *Dispatcher) handleReverseSet(ctx context.Context, client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}

	spec := request[len(reverseForwardCommand):]
	info, err := handlers.ParseReverseInfo(spec)
	if err != nil {
		return writeFail(client, err.Error())
	}

	if err := registry.SetReverse(ctx, dev, info, reverseSetupTimeout); err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleReverseKill(client net.Conn, request string, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	deviceSpec := request[len(reverseKillCommand):]
	if err := registry.RemoveReverse(dev, deviceSpec); err != nil {
		return writeFail(client, err.Error())
	}
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleReverseKillAll(client net.Conn, dev *registry.Device) error {
	if dev == nil {
		return writeFail(client, "no device selected")
	}
	registry.RemoveAllReverses(dev)
	return writeOkay(client, nil)
}

func (d *Dispatcher) handleReverseList(client net.Conn, dev *registry.Device) error {
	if dev == nil {
		return writeOkay(client, nil)
	}
	return writeOkay(client, []byte(registry.ListReversesText(dev)))
}
