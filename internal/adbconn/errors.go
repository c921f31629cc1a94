/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Connection-layer error taxonomy
 */

// Package adbconn implements device I/O (C3), the ADB protocol
// operations built on top of it (C5), and the CNXN/AUTH state machine
// (C6).
package adbconn

import (
	"errors"
	"fmt"

	"github.com/xDvir/adbr-server/internal/usbtransport"
)

// Sentinel connection errors
var (
	ErrTimeout            = errors.New("adbconn: timeout")
	ErrDeviceNotAvailable = errors.New("adbconn: device not available")
	ErrConnectionClosed   = errors.New("adbconn: connection closed")
)

// UnauthorizedError reports a failed auth handshake or denied USB access
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string { return "adbconn: unauthorized: " + e.Reason }

// CommunicationError wraps an I/O-layer failure below the protocol layer
type CommunicationError struct {
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("adbconn: communication error: %s", e.Err)
}
func (e *CommunicationError) Unwrap() error { return e.Err }

// UnexpectedError reports a protocol violation: a checksum mismatch,
// an unrecognized response during auth, or a malformed header
type UnexpectedError struct {
	Reason string
}

func (e *UnexpectedError) Error() string { return "adbconn: unexpected: " + e.Reason }

// mapTransportErr translates a usbtransport error into the connection
// taxonomy, mirroring the boundary-mapping the original implementation
// does between its transport and connection layers
func mapTransportErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, usbtransport.ErrTimeout):
		return ErrTimeout
	case errors.Is(err, usbtransport.ErrDeviceNotFound):
		return ErrDeviceNotAvailable
	case errors.Is(err, usbtransport.ErrUnauthorized):
		return &UnauthorizedError{Reason: err.Error()}
	case errors.Is(err, usbtransport.ErrConnection):
		return ErrConnectionClosed
	default:
		return &CommunicationError{Err: err}
	}
}
