/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Port reverse (C10): the device initiates streams toward a host-side
 * endpoint. Setup performs the reverse:forward: handshake, then one
 * goroutine runs a bidirectional relay while another repeatedly admits
 * new device-initiated streams into it.
 */

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/adbproto"
)

const (
	reverseForwardCommand   = "reverse:forward:"
	waitForHostResponse     = 500 * time.Millisecond
	sleepBetweenReconnect   = 1 * time.Second
	reverseChannelBuffer    = 10
	reverseRelayBufferSize  = 64 * 1024
	headerPollInterval      = 50 * time.Millisecond
)

// PortReverse owns the relay goroutines for one reverse:forward:
// registration
type PortReverse struct {
	Info   ReverseInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the reverse's goroutines and waits (briefly) for them
// to exit
func (p *PortReverse) Stop() {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(3 * 200 * time.Millisecond):
	}
}

// StartReverse performs the reverse:forward: handshake, reports setup
// success/failure on result, and on success runs the relay until
// stopped or the relay terminates on its own
func StartReverse(ctx context.Context, conn *adbconn.Conn, info ReverseInfo, timeout time.Duration, result chan<- error) *PortReverse {
	reverseCmd := fmt.Sprintf("%s%s;%s", reverseForwardCommand, info.Device.String(), info.Host.String())

	if err := initReverseProtocol(ctx, conn, reverseCmd, timeout); err != nil {
		result <- &PortReverseSetupFailed{Reason: "protocol setup failed: " + err.Error()}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p := &PortReverse{Info: info, cancel: cancel, done: make(chan struct{})}

	hostStream, err := dialWithRetry(runCtx, info, result)
	if err != nil {
		cancel()
		close(p.done)
		return nil
	}

	go func() {
		defer close(p.done)
		runReverseRelay(runCtx, conn, info, timeout, hostStream)
	}()

	return p
}

func initReverseProtocol(ctx context.Context, conn *adbconn.Conn, reverseCmd string, timeout time.Duration) error {
	txn, err := conn.SendOpen(ctx, reverseCmd)
	if err != nil {
		return err
	}

	okay, err := conn.ReadOkay(ctx, txn, timeout)
	if err != nil {
		return err
	}
	txn.RemoteID = okay.Arg0

	if _, err := conn.ReadWrite(ctx, txn, timeout); err != nil {
		return err
	}
	if err := conn.SendOkay(ctx, txn); err != nil {
		return err
	}

	if err := conn.ReadClose(ctx, txn, timeout); err != nil {
		return err
	}
	return conn.SendOkay(ctx, txn)
}

// dialWithRetry connects to the host-side endpoint, reporting "ready"
// on result as soon as either a connection succeeds or the failure is
// a retryable ConnectionRefused (the host may not be listening yet).
// Any other dial error is terminal and reported as failure.
func dialWithRetry(ctx context.Context, info ReverseInfo, result chan<- error) (net.Conn, error) {
	reported := false
	for {
		stream, err := connectToHostPort(info.Host)
		if err == nil {
			if !reported {
				result <- nil
				reported = true
			}
			return stream, nil
		}

		if errors.Is(err, syscall.ECONNREFUSED) {
			if !reported {
				result <- nil
				reported = true
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleepBetweenReconnect):
			}
			continue
		}

		if !reported {
			result <- &PortReverseSetupFailed{Reason: "invalid host address configuration: " + err.Error()}
		}
		return nil, err
	}
}

func connectToHostPort(host ForwardSpec) (net.Conn, error) {
	switch host.Kind {
	case KindTCP:
		return net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", host.Port))
	case KindLocalAbstract:
		return net.Dial("unix", "\x00"+host.Name)
	case KindLocalReserved, KindLocalFilesystem:
		return net.Dial("unix", host.Name)
	case KindDev:
		return net.Dial("unix", "/dev/"+host.Name)
	default:
		return nil, fmt.Errorf("jdwp not supported for reverse connections")
	}
}

func runReverseRelay(ctx context.Context, conn *adbconn.Conn, info ReverseInfo, timeout time.Duration, hostStream net.Conn) {
	defer hostStream.Close()

	txnCh := make(chan adbconn.Transaction, reverseChannelBuffer)
	go admitReverseStreams(ctx, conn, info, txnCh)

	var current adbconn.Transaction
	select {
	case current = <-txnCh:
	case <-ctx.Done():
		return
	}

	buf := make([]byte, reverseRelayBufferSize)

	for {
		select {
		case newTxn := <-txnCh:
			current = newTxn
		default:
		}

		if ctx.Err() != nil {
			return
		}

		hostStream.SetReadDeadline(time.Now().Add(waitForHostResponse))
		n, err := hostStream.Read(buf)

		switch {
		case err == nil && n > 0:
			if writeErr := conn.SendWrite(ctx, current, buf[:n]); writeErr == nil {
				conn.ReadOkay(ctx, current, timeout)
			}
		case err == nil && n == 0, isResetError(err):
			next, dialErr := connectToHostPort(info.Host)
			if dialErr != nil {
				return
			}
			hostStream.Close()
			hostStream = next
		}

		wrte, err := conn.ReadWrite(ctx, current, timeout)
		if err == adbconn.ErrTimeout {
			// no device data this tick, nothing to forward
		} else if err != nil {
			return
		} else {
			conn.SendOkay(ctx, current)
			if _, werr := hostStream.Write(wrte.Data); werr != nil {
				return
			}
		}
	}
}

func isResetError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed)
}

// admitReverseStreams repeatedly waits for the device to OPEN a new
// reverse stream, acks it, and hands the resulting transaction to the
// relay goroutine
func admitReverseStreams(ctx context.Context, conn *adbconn.Conn, info ReverseInfo, txnCh chan<- adbconn.Transaction) {
	openTxn := adbconn.Transaction{}
	hostSpec := info.Host.String()

	for {
		if ctx.Err() != nil {
			return
		}

		// The reference daemon's OPEN framing for a reverse stream is
		// inconsistent about a trailing NUL across versions, so match
		// either form and park anything else back for its own consumer.
		var openMsg *adbproto.Message
		for {
			msg, err := conn.ReadExpected(ctx, []adbproto.Command{adbproto.CmdOPEN}, nil, openTxn, 0)
			if err != nil {
				return
			}
			payload := string(msg.Data)
			if payload == hostSpec || payload == hostSpec+"\x00" {
				openMsg = msg
				break
			}
			// ReadExpected with a nil expectedData matches on the first
			// try, so unlike its own internal mismatch path this gets no
			// free pacing from a wire read attempt — back off by hand
			// before asking for the same parked packet again.
			conn.Park(msg.Arg0, msg.Arg1, msg.Command, msg.Data)
			select {
			case <-ctx.Done():
				return
			case <-time.After(headerPollInterval):
			}
		}

		txn := adbconn.Transaction{LocalID: conn.NextLocalID(), RemoteID: openMsg.Arg0}
		if err := conn.SendOkay(ctx, txn); err != nil {
			return
		}

		select {
		case txnCh <- txn:
		case <-ctx.Done():
			return
		}
	}
}
