/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Shell handler (C7): bare interactive shell and one-shot shell command
 */

package handlers

import (
	"bytes"
	"context"
	"net"
	"strings"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
)

const (
	shellCommandTimeout  = 15 * time.Second
	shellBugreportz      = "shell:bugreportz"
	bugreportzTimeout    = 100 * time.Second
	shellCommandReadTick = 250 * time.Millisecond
	shellInputReadTick   = 50 * time.Millisecond
)

// commandTimeout picks the one-shot command budget: bugreportz gets a
// much longer allowance than an ordinary command
func commandTimeout(command string) time.Duration {
	if strings.HasPrefix(command, shellBugreportz) {
		return bugreportzTimeout
	}
	return shellCommandTimeout
}

// ShellCommand runs a single one-shot command: OPEN(command), read the
// OKAY, then drain the device's output straight into the client socket
// until CLSE or timeout
func ShellCommand(ctx context.Context, conn *adbconn.Conn, client net.Conn, command string) error {
	timeout := commandTimeout(command)

	txn, err := conn.SendOpen(ctx, command)
	if err != nil {
		return err
	}

	okay, err := conn.ReadOkay(ctx, txn, timeout)
	if err != nil {
		return err
	}
	txn.RemoteID = okay.Arg0

	return drainToWriter(ctx, conn, txn, timeout, client)
}

// OpenShellSession runs a bare interactive shell: OPEN, OKAY, then a
// loop that alternately drains device output to the client and reads
// client input to forward as WRTE, until the client closes
func OpenShellSession(ctx context.Context, conn *adbconn.Conn, client net.Conn, command string) error {
	txn, err := conn.SendOpen(ctx, command)
	if err != nil {
		return err
	}

	okay, err := conn.ReadOkay(ctx, txn, shellCommandTimeout)
	if err != nil {
		return err
	}
	txn.RemoteID = okay.Arg0

	readTimeout := shellCommandReadTick

	buf := make([]byte, 64*1024)
	for {
		if err := drainToWriter(ctx, conn, txn, readTimeout, client); err != nil {
			return err
		}

		n, err := client.Read(buf)
		if n == 0 || err != nil {
			return nil
		}

		data := buf[:n]
		if bytes.HasSuffix(data, []byte("\n")) {
			readTimeout = shellCommandReadTick
		} else {
			readTimeout = shellInputReadTick
		}

		if err := conn.SendWrite(ctx, txn, data); err != nil {
			return err
		}
	}
}
