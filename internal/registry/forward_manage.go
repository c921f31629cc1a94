/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * host:forward:/reverse:forward: registration against a device,
 * grounded on original_source's server/port_forward.rs and
 * server/port_reverse.rs handlers
 */

package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xDvir/adbr-server/internal/handlers"
)

// forwardSetupTimeout is handed to StartForward as the timeout for the
// device's replies on each forwarded client stream; SetForward itself
// waits only for the local listener to bind
const forwardSetupTimeout = 400 * time.Millisecond

// SetForward registers a host:forward: listener against dev, replacing
// any existing forward for the same local spec unless noRebind is set
func SetForward(ctx context.Context, dev *Device, info handlers.ForwardInfo, noRebind bool) error {
	localKey := info.Local.String()

	if existing, ok := dev.GetPortForward(localKey); ok {
		if noRebind {
			return fmt.Errorf("port forward already exists for local %s: cannot rebind (no-rebind specified)", localKey)
		}
		existing.Stop()
		dev.RemovePortForward(localKey)
	}

	result := make(chan error, 1)
	forward := handlers.StartForward(ctx, dev.Conn, info, forwardSetupTimeout, result)
	if err := <-result; err != nil {
		return err
	}

	dev.InsertPortForward(localKey, forward)
	return nil
}

// RemoveForward stops and drops the forward registered under localSpec
func RemoveForward(dev *Device, localSpec string) error {
	forward, ok := dev.GetPortForward(localSpec)
	if !ok {
		return fmt.Errorf("listener '%s' not found", localSpec)
	}
	forward.Stop()
	dev.RemovePortForward(localSpec)
	return nil
}

// RemoveAllForwards stops and drops every forward registered on dev
func RemoveAllForwards(dev *Device) {
	for key, forward := range dev.AllPortForwards() {
		forward.Stop()
		dev.RemovePortForward(key)
	}
}

// ListForwardsText renders dev's forwards the way "host:list-forward" does
func ListForwardsText(dev *Device) string {
	var b strings.Builder
	for _, forward := range dev.AllPortForwards() {
		fmt.Fprintf(&b, "%s %s %s\n", dev.Serial, forward.Info.Local, forward.Info.Remote)
	}
	return b.String()
}

// SetReverse registers a reverse:forward: stream against dev, replacing
// any existing reverse for the same device spec
func SetReverse(ctx context.Context, dev *Device, info handlers.ReverseInfo, timeout time.Duration) error {
	deviceKey := info.Device.String()

	if existing, ok := dev.AllPortReverses()[deviceKey]; ok {
		existing.Stop()
		dev.RemovePortReverse(deviceKey)
	}

	result := make(chan error, 1)
	reverse := handlers.StartReverse(ctx, dev.Conn, info, timeout, result)
	if err := <-result; err != nil {
		return err
	}

	dev.InsertPortReverse(deviceKey, reverse)
	return nil
}

// RemoveReverse stops and drops the reverse registered under deviceSpec
func RemoveReverse(dev *Device, deviceSpec string) error {
	reverses := dev.AllPortReverses()
	reverse, ok := reverses[deviceSpec]
	if !ok {
		return fmt.Errorf("reverse listener '%s' not found", deviceSpec)
	}
	reverse.Stop()
	dev.RemovePortReverse(deviceSpec)
	return nil
}

// RemoveAllReverses stops and drops every reverse registered on dev
func RemoveAllReverses(dev *Device) {
	for key, reverse := range dev.AllPortReverses() {
		reverse.Stop()
		dev.RemovePortReverse(key)
	}
}

// ListReversesText renders dev's reverses the way "reverse:list-forward" does
func ListReversesText(dev *Device) string {
	var b strings.Builder
	for _, reverse := range dev.AllPortReverses() {
		fmt.Fprintf(&b, "%s %s\n", reverse.Info.Device, reverse.Info.Host)
	}
	return b.String()
}
