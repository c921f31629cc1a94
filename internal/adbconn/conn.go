/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Device I/O: pairs header+payload reads, verifies checksum, and
 * demultiplexes packets into the per-stream packet store
 */

package adbconn

import (
	"context"
	"time"

	"github.com/xDvir/adbr-server/internal/adbproto"
	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/usbtransport"
)

// Polling parameters for ReadExpected's packet-store/transport loop
const (
	headerPollTimeout  = 50 * time.Millisecond
	sleepBetweenmisses = 500 * time.Millisecond
)

// Conn serializes access to a USB transport and demultiplexes inbound
// packets through a Store, so multiple logical streams can share one
// physical connection
type Conn struct {
	transport usbtransport.BulkTransport
	store     *adbproto.Store
	alloc     localIDAllocator
	log       *logging.Logger
}

// NewConn wraps transport with packet framing and a demultiplexing
// packet store
func NewConn(transport usbtransport.BulkTransport, log *logging.Logger) *Conn {
	return &Conn{
		transport: transport,
		store:     adbproto.NewStore(),
		log:       log,
	}
}

// Close releases the underlying transport
func (c *Conn) Close() error {
	if c.transport == nil {
		return nil
	}
	return c.transport.Close()
}

// VerifyConnectionStatus reports whether the underlying transport is
// still usable
func (c *Conn) VerifyConnectionStatus() error {
	// The transport itself tracks liveness on every bulk transfer;
	// a closed handle is the only locally-observable failure short of
	// attempting a transfer.
	if c.transport == nil {
		return ErrDeviceNotAvailable
	}
	return nil
}

// NextLocalID allocates a fresh, non-zero local stream id
func (c *Conn) NextLocalID() uint32 {
	return c.alloc.next_()
}

// Park returns a packet to the store under its own (arg0, arg1) key,
// for callers whose match predicate is richer than ReadExpected's
// plain data equality (e.g. accepting more than one accepted payload
// form for the same command)
func (c *Conn) Park(arg0, arg1 uint32, cmd adbproto.Command, data []byte) {
	c.store.Put(arg0, arg1, cmd, data)
}

// Write packs msg and writes its header, then its payload (if any),
// as two separate bulk transfers, mirroring the original two-phase
// write
func (c *Conn) Write(ctx context.Context, msg *adbproto.Message) error {
	packed := msg.Pack()

	if err := c.transport.BulkWrite(ctx, packed[:adbproto.HeaderSize]); err != nil {
		return mapTransportErr(err)
	}

	if len(msg.Data) > 0 {
		if err := c.transport.BulkWrite(ctx, packed[adbproto.HeaderSize:]); err != nil {
			return mapTransportErr(err)
		}
	}

	return nil
}

// readLastMessage reads one packet directly off the wire: a header,
// then its payload if data_len > 0, verifying the checksum
func (c *Conn) readLastMessage(ctx context.Context) (*adbproto.Message, error) {
	hdrBuf := make([]byte, adbproto.HeaderSize)
	if err := c.transport.BulkRead(ctx, hdrBuf); err != nil {
		return nil, mapTransportErr(err)
	}

	hdr, err := adbproto.UnpackHeader(hdrBuf)
	if err != nil {
		return nil, &UnexpectedError{Reason: err.Error()}
	}

	if hdr.DataLen == 0 {
		return adbproto.NewMessage(hdr.Command, hdr.Arg0, hdr.Arg1, nil), nil
	}

	data := make([]byte, hdr.DataLen)
	if err := c.transport.BulkRead(ctx, data); err != nil {
		return nil, mapTransportErr(err)
	}

	if !adbproto.VerifyChecksum(data, hdr.Checksum) {
		return nil, &UnexpectedError{Reason: "checksum mismatch"}
	}

	return adbproto.NewMessage(hdr.Command, hdr.Arg0, hdr.Arg1, data), nil
}

// ReadExpected loops across the packet store and the wire until it
// finds a packet matching txn, whose command is one of expectedCmds
// (empty = any), and whose payload equals expectedData if supplied.
// timeout is a wall-clock budget for the whole call; <=0 means
// unbounded. Packets that don't match are parked in the store for
// their own (arg0, arg1) key. On a CLSE among expectedCmds, the
// matched queue is cleared after the match.
func (c *Conn) ReadExpected(ctx context.Context, expectedCmds []adbproto.Command, expectedData []byte, txn Transaction, timeout time.Duration) (*adbproto.Message, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		if cmd, a0, a1, data, ok := c.store.Get(txn.RemoteID, txn.LocalID, expectedCmds); ok {
			if dataMatches(expectedData, data) {
				if cmd == adbproto.CmdCLSE {
					c.store.Clear(a0, a1)
				}
				return adbproto.NewMessage(cmd, a0, a1, data), nil
			}
			c.store.Put(a0, a1, cmd, data)
		}

		readCtx := ctx
		var cancel context.CancelFunc
		if !deadline.IsZero() {
			readCtx, cancel = context.WithDeadline(ctx, minTime(deadline, time.Now().Add(headerPollTimeout)))
		} else {
			readCtx, cancel = context.WithTimeout(ctx, headerPollTimeout)
		}

		msg, err := c.readLastMessage(readCtx)
		cancel()

		if err != nil {
			if err == ErrTimeout {
				if deadline.IsZero() || time.Until(deadline) > sleepBetweenmisses {
					time.Sleep(sleepBetweenmisses)
				}
				continue
			}
			return nil, err
		}

		if !txn.Matches(msg.Arg0, msg.Arg1) {
			c.store.Put(msg.Arg0, msg.Arg1, msg.Command, msg.Data)
			continue
		}

		if cmdExpected(msg.Command, expectedCmds) && dataMatches(expectedData, msg.Data) {
			if msg.Command == adbproto.CmdCLSE {
				c.store.Clear(msg.Arg0, msg.Arg1)
			}
			return msg, nil
		}

		c.store.Put(msg.Arg0, msg.Arg1, msg.Command, msg.Data)
	}
}

func cmdExpected(cmd adbproto.Command, expected []adbproto.Command) bool {
	if len(expected) == 0 {
		return true
	}
	for _, c := range expected {
		if c == cmd {
			return true
		}
	}
	return false
}

func dataMatches(want, got []byte) bool {
	if want == nil {
		return true
	}
	return string(want) == string(got)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
