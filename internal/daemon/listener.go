/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Client TCP listener
 */

package daemon

import (
	"net"
	"strconv"
	"time"
)

// clientListener wraps net.Listener to tune accepted TCP connections
// the way a long-lived client/server protocol wants: keepalives on,
// with a 20 s period.
type clientListener struct {
	net.Listener
}

// NewClientListener listens on addr:port for ADB client connections.
// addr is "127.0.0.1" by default (loopback-only) or "" when
// start-server's -a flag requests all interfaces.
func NewClientListener(addr string, port int) (net.Listener, error) {
	nl, err := net.Listen("tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	return clientListener{Listener: nl}, nil
}

func (l clientListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tcpconn, ok := conn.(*net.TCPConn); ok {
		tcpconn.SetKeepAlive(true)
		tcpconn.SetKeepAlivePeriod(20 * time.Second)
	}

	return conn, nil
}
