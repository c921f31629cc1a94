/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Port forward (C9): host listener -> per-connection device stream
 */

package handlers

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
	"github.com/xDvir/adbr-server/internal/adbproto"
)

const forwardClientBufferSize = 64 * 1024

// Forward owns one local listener relaying accepted connections to a
// device stream opened with Info.Remote. Stop cancels the accept loop.
type Forward struct {
	Info     ForwardInfo
	listener net.Listener
	cancel   context.CancelFunc
}

// StartForward binds a listener for info.Local and reports setup
// success or failure on result; on success it then runs the accept
// loop until the returned Forward is stopped
func StartForward(ctx context.Context, conn *adbconn.Conn, info ForwardInfo, timeout time.Duration, result chan<- error) *Forward {
	listener, err := createForwardListener(info.Local)
	if err != nil {
		result <- &PortForwardSetupFailed{Reason: err.Error()}
		return nil
	}

	result <- nil

	runCtx, cancel := context.WithCancel(ctx)
	f := &Forward{Info: info, listener: listener, cancel: cancel}

	go f.acceptLoop(runCtx, conn, timeout)
	return f
}

// Stop closes the listener and cancels any in-flight accept
func (f *Forward) Stop() {
	f.cancel()
	f.listener.Close()
}

func (f *Forward) acceptLoop(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) {
	for {
		client, err := f.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		go handleForwardClient(ctx, conn, client, f.Info, timeout)
	}
}

func createForwardListener(local ForwardSpec) (net.Listener, error) {
	switch local.Kind {
	case KindTCP:
		return net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", local.Port))
	case KindLocalAbstract:
		return net.Listen("unix", "\x00"+local.Name)
	case KindLocalReserved, KindLocalFilesystem:
		return net.Listen("unix", local.Name)
	default:
		return nil, fmt.Errorf("unsupported forward type: %s", local.String())
	}
}

func handleForwardClient(ctx context.Context, conn *adbconn.Conn, client net.Conn, info ForwardInfo, timeout time.Duration) {
	defer client.Close()

	buf := make([]byte, forwardClientBufferSize)
	n, err := client.Read(buf)
	if n == 0 || err != nil {
		return
	}

	response, err := relayForwardMessage(ctx, conn, buf[:n], info, timeout)
	if err != nil {
		return
	}
	client.Write(response)
}

func relayForwardMessage(ctx context.Context, conn *adbconn.Conn, payload []byte, info ForwardInfo, timeout time.Duration) ([]byte, error) {
	remoteSpec := info.Remote.String() + "\x00"

	txn, err := conn.SendOpen(ctx, remoteSpec)
	if err != nil {
		return nil, err
	}

	resp, err := conn.ReadExpected(ctx, []adbproto.Command{adbproto.CmdOKAY, adbproto.CmdCLSE}, nil, txn, timeout)
	if err != nil {
		return nil, err
	}

	switch resp.Command {
	case adbproto.CmdOKAY:
	case adbproto.CmdCLSE:
		return nil, &PortForwardSetupFailed{Reason: "port forwarding rejected by device: " + info.String()}
	default:
		return nil, unexpectedf("unexpected port forward response: %s", resp.Command)
	}

	txn.RemoteID = resp.Arg0

	if err := conn.SendWrite(ctx, txn, payload); err != nil {
		return nil, err
	}

	return drainToBuffer(ctx, conn, txn, timeout)
}
