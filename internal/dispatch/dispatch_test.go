/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Dispatcher command routing and wire framing
 */

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/registry"
)

func sendRequest(t *testing.T, conn net.Conn, request string) {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%04x%s", len(request), request); err != nil {
		t.Fatalf("write request: %s", err)
	}
}

func readAll(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read reply: %s", err)
	}
	return buf[:n]
}

func newTestDispatcher() (*Dispatcher, net.Conn, net.Conn) {
	server, client := net.Pipe()
	reg := registry.New()
	disp := New(reg, logging.NewLogger())
	return disp, server, client
}

func TestVersionCommand(t *testing.T) {
	disp, server, client := newTestDispatcher()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go disp.HandleClient(ctx, server)

	sendRequest(t, client, versionCommand)
	got := readAll(t, client)

	want := fmt.Sprintf("OKAY%08x", serverVersion)
	if string(got) != want {
		t.Errorf("host:version reply = %q, want %q", got, want)
	}
}

func TestDevicesCommandEmptyRegistry(t *testing.T) {
	disp, server, client := newTestDispatcher()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go disp.HandleClient(ctx, server)

	sendRequest(t, client, devicesCommand)
	got := readAll(t, client)

	payload := "No devices found"
	want := fmt.Sprintf("OKAY%04x%s", len(payload), payload)
	if string(got) != want {
		t.Errorf("host:devices reply = %q, want %q", got, want)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	disp, server, client := newTestDispatcher()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go disp.HandleClient(ctx, server)

	sendRequest(t, client, "host:no-such-command")
	got := readAll(t, client)

	if !bytes.HasPrefix(got, []byte("FAIL")) {
		t.Errorf("unknown command reply = %q, want FAIL prefix", got)
	}
}

func TestGetStateWithoutSelectedDeviceFails(t *testing.T) {
	disp, server, client := newTestDispatcher()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go disp.HandleClient(ctx, server)

	sendRequest(t, client, getStateCommand)
	got := readAll(t, client)

	if !bytes.HasPrefix(got, []byte("FAIL")) {
		t.Errorf("host:get-state without transport = %q, want FAIL prefix", got)
	}
}

func TestTransportUnknownSerialFails(t *testing.T) {
	disp, server, client := newTestDispatcher()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go disp.HandleClient(ctx, server)

	sendRequest(t, client, transportSerialCommand+"nonexistent-serial")
	got := readAll(t, client)

	if !bytes.HasPrefix(got, []byte("FAIL")) {
		t.Errorf("host:transport: for unknown serial = %q, want FAIL prefix", got)
	}
}

func TestWriteFramedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeOkay(&buf, []byte("hello")); err != nil {
		t.Fatalf("writeOkay: %s", err)
	}

	want := "OKAY0005hello"
	if buf.String() != want {
		t.Errorf("writeOkay = %q, want %q", buf.String(), want)
	}
}

func TestReadRequest(t *testing.T) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%04x%s", len("host:version"), "host:version")

	got, err := readRequest(&buf)
	if err != nil {
		t.Fatalf("readRequest: %s", err)
	}
	if got != "host:version" {
		t.Errorf("readRequest = %q, want %q", got, "host:version")
	}
}
