/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Control socket: a tiny HTTP server on a Unix domain socket, used by
 * kill-server/restart-server to reach the running daemon without
 * going through the ADB client port
 */

package daemon

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"os"

	"github.com/xDvir/adbr-server/internal/logging"
	"github.com/xDvir/adbr-server/internal/registry"
)

// CtrlsockAddr is the control socket's address
var CtrlsockAddr = &net.UnixAddr{Name: PathControlSocket, Net: "unix"}

type ctrlsock struct {
	server *http.Server
	reg    *registry.Registry
}

// StartCtrlsock starts the control socket server, serving GET /status
// with reg's device list (Registry.ListText) and GET /shutdown to stop the
// daemon gracefully
func StartCtrlsock(reg *registry.Registry, log *logging.Logger, cancel context.CancelFunc) (stop func(), err error) {
	c := &ctrlsock{reg: reg}
	c.server = &http.Server{
		ErrorLog: stdlog.New(log.LineWriter(logging.LogError, '!'), "", 0),
	}
	c.server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.handle(w, r, cancel)
	})

	os.Remove(PathControlSocket)
	if err := os.MkdirAll(PathProgState, 0755); err != nil {
		return nil, err
	}

	listener, err := net.ListenUnix("unix", CtrlsockAddr)
	if err != nil {
		return nil, err
	}
	os.Chmod(PathControlSocket, 0777)

	go c.server.Serve(listener)

	return func() {
		c.server.Close()
		os.Remove(PathControlSocket)
	}, nil
}

func (c *ctrlsock) handle(w http.ResponseWriter, r *http.Request, cancel context.CancelFunc) {
	if r.Method != http.MethodGet {
		http.Error(w, r.Method+": method not supported", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/status":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(c.reg.ListText()))
	case "/shutdown":
		w.WriteHeader(http.StatusOK)
		go cancel()
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// DialCtrlsock connects to the control socket of a running daemon
func DialCtrlsock() (net.Conn, error) {
	return net.DialUnix("unix", nil, CtrlsockAddr)
}
