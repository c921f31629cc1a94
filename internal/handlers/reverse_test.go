/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Reverse connector retry/report-once behavior
 */

package handlers

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

// freePort grabs an ephemeral TCP port and releases it immediately, so
// the first dial against it observes ECONNREFUSED until the caller
// starts listening.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("freePort: %s", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// TestDialWithRetryReportsOnceThenSucceeds reproduces a refused first
// attempt followed by a successful second one: dialWithRetry must post
// to result exactly once (on the first ECONNREFUSED) and return a live
// connection once the host starts listening.
func TestDialWithRetryReportsOnceThenSucceeds(t *testing.T) {
	port := freePort(t)
	host := ForwardSpec{Kind: KindTCP, Port: uint16(port)}
	info := ReverseInfo{Host: host}

	result := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := dialWithRetry(ctx, info, result)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("first result = %v, want nil (refused-but-retryable)", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first result report")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	select {
	case <-connCh:
	case err := <-errCh:
		t.Fatalf("dialWithRetry failed: %s", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for successful dial")
	}

	select {
	case extra := <-result:
		t.Errorf("result reported a second time: %v, want exactly one report", extra)
	default:
	}
}
