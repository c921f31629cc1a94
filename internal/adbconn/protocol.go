/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Protocol operations (C5): send CNXN/AUTH/OPEN/OKAY/WRTE/CLSE and
 * receive expected packets with timeout
 */

package adbconn

import (
	"context"
	"os"
	"time"

	"github.com/xDvir/adbr-server/internal/adbproto"
)

// SendConnect sends the CNXN packet opening the connection, using the
// local hostname in the banner ("host::<hostname>\0")
func (c *Conn) SendConnect(ctx context.Context, timeout time.Duration) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return c.Write(ctx, adbproto.NewConnect(hostname))
}

// SendOpen allocates a fresh local id and sends OPEN(local_id, 0, cmd),
// returning the new transaction with RemoteID still unknown
func (c *Conn) SendOpen(ctx context.Context, cmd string) (Transaction, error) {
	txn := Transaction{LocalID: c.NextLocalID()}
	msg := adbproto.NewMessage(adbproto.CmdOPEN, txn.LocalID, 0, []byte(cmd))
	if err := c.Write(ctx, msg); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// SendOkay sends OKAY for the given transaction
func (c *Conn) SendOkay(ctx context.Context, txn Transaction) error {
	msg := adbproto.NewMessage(adbproto.CmdOKAY, txn.LocalID, txn.RemoteID, nil)
	return c.Write(ctx, msg)
}

// SendClose sends CLSE for the given transaction
func (c *Conn) SendClose(ctx context.Context, txn Transaction) error {
	msg := adbproto.NewMessage(adbproto.CmdCLSE, txn.LocalID, txn.RemoteID, nil)
	return c.Write(ctx, msg)
}

// SendWrite sends WRTE carrying data for the given transaction
func (c *Conn) SendWrite(ctx context.Context, txn Transaction, data []byte) error {
	msg := adbproto.NewMessage(adbproto.CmdWRTE, txn.LocalID, txn.RemoteID, data)
	return c.Write(ctx, msg)
}

// ReadOkay reads the next OKAY belonging to txn
func (c *Conn) ReadOkay(ctx context.Context, txn Transaction, timeout time.Duration) (*adbproto.Message, error) {
	return c.ReadExpected(ctx, []adbproto.Command{adbproto.CmdOKAY}, nil, txn, timeout)
}

// ReadWrite reads the next WRTE belonging to txn
func (c *Conn) ReadWrite(ctx context.Context, txn Transaction, timeout time.Duration) (*adbproto.Message, error) {
	return c.ReadExpected(ctx, []adbproto.Command{adbproto.CmdWRTE}, nil, txn, timeout)
}

// ReadClose reads the next CLSE belonging to txn. A Timeout is treated
// as success, since the device may close the stream silently.
func (c *Conn) ReadClose(ctx context.Context, txn Transaction, timeout time.Duration) error {
	_, err := c.ReadExpected(ctx, []adbproto.Command{adbproto.CmdCLSE}, nil, txn, timeout)
	if err == ErrTimeout {
		return nil
	}
	return err
}

// ReadUntilNoPacketLeft yields messages for txn until the first
// Timeout (stop, not an error) or CLSE (stop, nothing emitted). Every
// emitted WRTE is OKAY'd before being returned to the caller.
func (c *Conn) ReadUntilNoPacketLeft(ctx context.Context, txn Transaction, timeout time.Duration) <-chan MessageOrErr {
	return c.readUntil(ctx, nil, txn, timeout)
}

// ReadUntilAuthOrOpen is ReadUntilNoPacketLeft restricted to {AUTH, OPEN}
func (c *Conn) ReadUntilAuthOrOpen(ctx context.Context, txn Transaction, timeout time.Duration) <-chan MessageOrErr {
	return c.readUntil(ctx, []adbproto.Command{adbproto.CmdAUTH, adbproto.CmdOPEN}, txn, timeout)
}

// MessageOrErr carries one step of a ReadUntil* stream
type MessageOrErr struct {
	Msg *adbproto.Message
	Err error
}

func (c *Conn) readUntil(ctx context.Context, expectedCmds []adbproto.Command, txn Transaction, timeout time.Duration) <-chan MessageOrErr {
	out := make(chan MessageOrErr)

	go func() {
		defer close(out)

		for {
			msg, err := c.ReadExpected(ctx, expectedCmds, nil, txn, timeout)
			if err == ErrTimeout {
				return
			}
			if err != nil {
				out <- MessageOrErr{Err: err}
				return
			}

			if msg.Command == adbproto.CmdCLSE {
				return
			}

			if msg.Command == adbproto.CmdWRTE {
				if err := c.SendOkay(ctx, txn); err != nil {
					out <- MessageOrErr{Err: err}
					return
				}
			}

			out <- MessageOrErr{Msg: msg}
		}
	}()

	return out
}
