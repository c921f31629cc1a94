/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Handler-layer error taxonomy (C7-C10): errors surfaced to a connected
 * client as a FAIL response, distinct from the lower adbconn taxonomy.
 */

package handlers

import "fmt"

// SyncError reports a violation of the sync sub-protocol contract:
// an out-of-order command, a malformed frame, or a FAIL reply relayed
// from the device.
type SyncError struct {
	Reason string
}

func (e *SyncError) Error() string { return "sync: " + e.Reason }

// PortForwardSetupFailed reports that a forward's listener could not be
// bound, or the device rejected the initial OPEN.
type PortForwardSetupFailed struct {
	Reason string
}

func (e *PortForwardSetupFailed) Error() string { return "port forward setup failed: " + e.Reason }

// PortReverseSetupFailed reports that a reverse's protocol handshake or
// host-side connector failed outright (not a retryable ConnectionRefused).
type PortReverseSetupFailed struct {
	Reason string
}

func (e *PortReverseSetupFailed) Error() string { return "port reverse setup failed: " + e.Reason }

// UnexpectedError is a catch-all for invariant breaches inside a handler
type UnexpectedError struct {
	Reason string
}

func (e *UnexpectedError) Error() string { return "unexpected: " + e.Reason }

func unexpectedf(format string, args ...interface{}) error {
	return &UnexpectedError{Reason: fmt.Sprintf(format, args...)}
}
