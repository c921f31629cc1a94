/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * The main function
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/xDvir/adbr-server/internal/config"
	"github.com/xDvir/adbr-server/internal/daemon"
	"github.com/xDvir/adbr-server/internal/logging"
)

const usageText = `Usage:
    %[1]s start-server [-a] [-p <port>]
    %[1]s kill-server
    %[1]s restart-server

Options are
    -a          listen on all interfaces, not just loopback
    -p <port>   client-facing TCP port (default 5037)
`

// exit codes, matching the real adb command-line tool
const (
	exitOK        = 0
	exitFail      = 1
	exitPortInUse = 98
)

func usage() {
	fmt.Printf(usageText, os.Args[0])
	os.Exit(exitOK)
}

func usageError(format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	os.Exit(exitFail)
}

func main() {
	if len(os.Args) < 2 {
		usageError("no command given")
	}

	switch os.Args[1] {
	case "-h", "-help", "--help":
		usage()
	case "start-server":
		cmdStartServer(os.Args[2:])
	case "kill-server":
		cmdKillServer()
	case "restart-server":
		cmdKillServer()
		cmdStartServer(os.Args[2:])
	case "background-server":
		cmdBackgroundServer(os.Args[2:])
	default:
		usageError("unknown command %q", os.Args[1])
	}
}

// cmdStartServer implements "start-server [-a] [-p <port>]": it loads
// configuration to resolve the default port, then re-execs itself
// detached as "background-server <addr> <port>"
func cmdStartServer(args []string) {
	if err := config.Load(); err != nil {
		usageError("%s", err)
	}

	addr, port := resolveServerArgs(args)

	err := daemon.Background([]string{"background-server", addr, strconv.Itoa(port)})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

// cmdBackgroundServer is the detached process started by
// cmdStartServer: it acquires the single-instance lock, brings up USB
// discovery/monitoring and the client listener, then blocks until
// killed
func cmdBackgroundServer(args []string) {
	if len(args) < 1 {
		usageError("background-server requires an address argument")
	}
	addr := args[0]
	port := config.Conf.ListenPort
	if len(args) >= 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			usageError("invalid port %q", args[1])
		}
		port = p
	}

	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFail)
	}

	lock, err := daemon.Lock()
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			os.Exit(exitOK)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFail)
	}
	defer daemon.Unlock(lock)

	log := setupLogging()
	log.Info(' ', "adbr-server starting, pid=%d", os.Getpid())
	defer log.Info(' ', "adbr-server finished")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	daemon.CloseStdInOutErr()

	err = daemon.Run(ctx, cancel, addr, port, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitStatus(err))
	}
}

// cmdKillServer implements "kill-server": ask the running daemon over
// the control socket to shut down. A daemon not running isn't an error.
func cmdKillServer() {
	conn, err := daemon.DialCtrlsock()
	if err != nil {
		return
	}
	defer conn.Close()

	fmt.Fprintf(conn, "GET /shutdown HTTP/1.0\r\n\r\n")
}

// resolveServerArgs parses -a/-p for start-server, returning the bind
// address ("" for -a, "127.0.0.1" otherwise) and the port
func resolveServerArgs(args []string) (addr string, port int) {
	addr = "127.0.0.1"
	port = config.Conf.ListenPort

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-a":
			addr = ""
		case "-p":
			i++
			if i >= len(args) {
				usageError("-p requires an argument")
			}
			p, err := strconv.Atoi(args[i])
			if err != nil {
				usageError("invalid port %q", args[i])
			}
			port = p
		default:
			usageError("unrecognized option %q", args[i])
		}
	}

	return addr, port
}

// setupLogging builds the daemon's main logger per config's [logging]
// section and, when console logging is also enabled, a second logger
// carbon-copying it -- the same Log/Console pairing teacher's main.go
// wires via Log.Cc(Console).
func setupLogging() *logging.Logger {
	log := logging.NewLogger()
	log.SetLevels(config.Conf.LogLevel)

	switch config.Conf.MainLog {
	case "console":
		log.ToConsole()
	case "disable":
		log.ToNowhere()
	default:
		os.MkdirAll(daemon.PathProgState, 0755)
		log.ToDevFile(daemon.PathProgState, "adbr-server")
	}

	if config.Conf.ConsoleLog != "disable" {
		console := logging.NewLogger()
		console.SetLevels(config.Conf.LogLevel)
		if config.Conf.ConsoleColor {
			console.ToColorConsole()
		} else {
			console.ToConsole()
		}
		log.Cc(console, config.Conf.LogLevel)
	}

	return log
}

// exitStatus maps an error returned by Background/Run to the process
// exit code adb's own CLI uses: 98 when the client port is already
// bound, 1 otherwise. Background forwards the backgrounded process's
// stderr as plain text, so a bind failure there only survives as a
// substring match; Run's own error, called in-process from
// background-server, still carries the structured *net.OpError.
func exitStatus(err error) int {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRINUSE) {
		return exitPortInUse
	}
	if strings.Contains(err.Error(), syscall.EADDRINUSE.Error()) {
		return exitPortInUse
	}
	return exitFail
}
