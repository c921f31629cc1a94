/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Client dispatcher (C12): one task per accepted TCP client. Parses
 * "%04x"-length-prefixed ADB host requests, selects a device, and
 * invokes the C7-C10 handlers or the C11 registry's forward/reverse
 * management.
 */

package dispatch

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/registry"
)

// serverVersion is reported verbatim by host:version, matching the
// wire CNXN version this daemon advertises
const serverVersion = 0x01000000

const (
	requestLengthDigits = 4
	opTimeout           = 5 * time.Second
	syncTimeout         = 10 * time.Second
)

const (
	transportAnyCommand      = "host:transport-any"
	transportEmulatorCommand = "host:transport-emulator-any"
	transportUSBCommand      = "host:transport-usb"
	transportLocalCommand    = "host:transport-local"
	transportSerialCommand   = "host:transport:"
	versionCommand           = "host:version"
	getStateCommand          = "host:get-state"
	getSerialnoCommand       = "host:get-serialno"
	getDevpathCommand        = "host:get-devpath"
	devicesCommand           = "host:devices"
	forwardCommand           = "host:forward:"
	forwardNoRebindTag       = "norebind:"
	killForwardCommand       = "host:killforward:"
	killForwardAllCommand    = "host:killforward-all"
	listForwardCommand       = "host:list-forward"
	reverseForwardCommand    = "reverse:forward:"
	reverseKillCommand       = "reverse:killforward:"
	reverseKillAllCommand    = "reverse:killforward-all"
	reverseListCommand       = "reverse:list-forward"
	shellCommand             = "shell:"
	syncCommand              = "sync:"
	rebootCommand            = "reboot:"
	rootCommand              = "root:"
	unrootCommand            = "unroot:"
	remountCommand           = "remount:"
	enableVerityCommand      = "enable-verity:"
	disableVerityCommand     = "disable-verity:"
)

// Dispatcher routes ADB host requests accepted on the client socket to
// the registry and the C7-C10 handlers
type Dispatcher struct {
	reg *registry.Registry
	log *logging.Logger
}

// New builds a Dispatcher backed by reg
func New(reg *registry.Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{reg: reg, log: log}
}

// HandleClient reads and answers host requests on client until it
// enters a terminal mode (shell/sync/forward/reverse setup hands the
// socket off to its own handler) or the client disconnects
func (d *Dispatcher) HandleClient(ctx context.Context, client net.Conn) {
	defer client.Close()

	var chosen *registry.Device

	for {
		request, err := readRequest(client)
		if err != nil {
			return
		}

		terminal, err := d.dispatch(ctx, client, request, &chosen)
		if err != nil {
			d.log.Debug(' ', "dispatch: %q failed: %s", request, err)
			writeFail(client, err.Error())
		}
		if terminal {
			return
		}
	}
}

// dispatch handles one request, returning true if the connection's
// remaining lifetime now belongs to a handler that took over the
// socket (shell, sync, forward/reverse setup already replied)
func (d *Dispatcher) dispatch(ctx context.Context, client net.Conn, request string, chosen **registry.Device) (bool, error) {
	switch {
	case request == transportAnyCommand, request == transportUSBCommand, request == transportLocalCommand:
		dev, err := d.chooseAny()
		if err != nil {
			return false, err
		}
		*chosen = dev
		return false, writeOkay(client, nil)

	case request == transportEmulatorCommand:
		return false, fmt.Errorf("no emulator device found")

	case strings.HasPrefix(request, transportSerialCommand):
		serial := request[len(transportSerialCommand):]
		dev, ok := d.reg.Get(serial)
		if !ok {
			return false, fmt.Errorf("device '%s' not found", serial)
		}
		*chosen = dev
		return false, writeOkay(client, nil)

	case request == versionCommand:
		_, err := client.Write([]byte(fmt.Sprintf("OKAY%08x", serverVersion)))
		return false, err

	case request == devicesCommand:
		return false, writeOkay(client, []byte(d.reg.ListText()))

	case request == getStateCommand:
		if *chosen == nil {
			return false, errNoDeviceSelected()
		}
		status, _ := (*chosen).Status()
		return false, writeOkay(client, []byte(status.String()))

	case request == getSerialnoCommand:
		if *chosen == nil {
			return false, errNoDeviceSelected()
		}
		return false, writeOkay(client, []byte((*chosen).Serial))

	case request == getDevpathCommand:
		if *chosen == nil {
			return false, errNoDeviceSelected()
		}
		return false, writeOkay(client, []byte((*chosen).Serial))

	case strings.HasPrefix(request, forwardCommand):
		return true, d.handleForwardSet(ctx, client, request, *chosen)

	case strings.HasPrefix(request, killForwardCommand):
		return true, d.handleForwardKill(client, request, *chosen)

	case request == killForwardAllCommand:
		return true, d.handleForwardKillAll(client, *chosen)

	case request == listForwardCommand:
		return true, d.handleForwardList(client, *chosen)

	case strings.HasPrefix(request, reverseForwardCommand):
		return true, d.handleReverseSet(ctx, client, request, *chosen)

	case strings.HasPrefix(request, reverseKillCommand):
		return true, d.handleReverseKill(client, request, *chosen)

	case request == reverseKillAllCommand:
		return true, d.handleReverseKillAll(client, *chosen)

	case request == reverseListCommand:
		return true, d.handleReverseList(client, *chosen)

	case strings.HasPrefix(request, shellCommand):
		return true, d.handleShell(ctx, client, request, *chosen)

	case request == syncCommand:
		return true, d.handleSync(ctx, client, *chosen)

	case strings.HasPrefix(request, rebootCommand):
		return true, d.handleReboot(ctx, client, request, *chosen)

	case request == rootCommand, request == unrootCommand, request == remountCommand,
		request == enableVerityCommand, request == disableVerityCommand:
		return true, d.handleSecurity(ctx, client, request, *chosen)

	default:
		return true, fmt.Errorf("unknown ADBr server command")
	}
}

// chooseAny picks any currently-AVAILABLE device; only USB transport
// exists in this daemon so transport-any/-usb/-local are equivalent
func (d *Dispatcher) chooseAny() (*registry.Device, error) {
	for _, dev := range d.reg.All() {
		if status, _ := dev.Status(); status == registry.StatusAvailable {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("no devices/emulators found")
}

func errNoDeviceSelected() error {
	return fmt.Errorf("no device selected")
}

// readRequest reads one "%04x"-length-prefixed ASCII host request
func readRequest(r io.Reader) (string, error) {
	var lenBuf [requestLengthDigits]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(lenBuf[:]), 16, 32)
	if err != nil {
		return "", fmt.Errorf("invalid request length %q: %w", lenBuf, err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeOkay answers OKAY, optionally followed by a %04x-length-prefixed payload
func writeOkay(w io.Writer, payload []byte) error {
	return writeFramed(w, "OKAY", payload)
}

// writeFail answers FAIL with a %04x-length-prefixed error message
func writeFail(w io.Writer, reason string) error {
	return writeFramed(w, "FAIL", []byte(reason))
}

func writeFramed(w io.Writer, status string, payload []byte) error {
	if len(payload) == 0 {
		_, err := io.WriteString(w, status)
		return err
	}
	_, err := fmt.Fprintf(w, "%s%04x%s", status, len(payload), payload)
	return err
}
