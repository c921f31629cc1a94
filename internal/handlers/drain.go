/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Shared draining helpers built on Conn.ReadUntilNoPacketLeft: every
 * handler that forwards a device's WRTE stream somewhere (a client
 * socket, an in-memory buffer) does so by consuming that channel until
 * it closes, which happens on the first Timeout or CLSE.
 */

package handlers

import (
	"context"
	"io"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
)

// drainToWriter copies every WRTE payload for txn to w, in order, until
// the device falls silent (Timeout) or closes the stream (CLSE)
func drainToWriter(ctx context.Context, conn *adbconn.Conn, txn adbconn.Transaction, timeout time.Duration, w io.Writer) error {
	for step := range conn.ReadUntilNoPacketLeft(ctx, txn, timeout) {
		if step.Err != nil {
			return step.Err
		}
		if _, err := w.Write(step.Msg.Data); err != nil {
			return err
		}
	}
	return nil
}

// drainToBuffer accumulates every WRTE payload for txn and returns the
// concatenation, used where the caller needs the whole response before
// acting on it (the port forward relay in forward.go)
func drainToBuffer(ctx context.Context, conn *adbconn.Conn, txn adbconn.Transaction, timeout time.Duration) ([]byte, error) {
	var buf []byte
	for step := range conn.ReadUntilNoPacketLeft(ctx, txn, timeout) {
		if step.Err != nil {
			return nil, step.Err
		}
		buf = append(buf, step.Msg.Data...)
	}
	return buf, nil
}
