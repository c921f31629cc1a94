/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * USB-layer error classification
 */

package usbtransport

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// Sentinel errors mapped from the underlying libusb error codes
var (
	ErrTimeout        = errors.New("usbtransport: operation timed out")
	ErrDeviceNotFound = errors.New("usbtransport: device not found")
	ErrUnauthorized   = errors.New("usbtransport: access denied")
	ErrConnection     = errors.New("usbtransport: connection error")
)

// CommunicationError wraps an unrecognized libusb error, preserving
// its text for diagnostics
type CommunicationError struct {
	Err error
}

// Error implements the error interface
func (e *CommunicationError) Error() string {
	return fmt.Sprintf("usbtransport: communication error: %s", e.Err)
}

// Unwrap supports errors.Is/errors.As against the wrapped error
func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// classifyErr maps a gousb/libusb error into the domain taxonomy:
// Timeout, DeviceNotFound (NoDevice), Unauthorized (Access),
// ConnectionError (Pipe/Io/Overflow/Busy/Other), CommunicationError
// for anything unrecognized
func classifyErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	switch {
	case errors.Is(err, gousb.ErrorTimeout):
		return ErrTimeout
	case errors.Is(err, gousb.ErrorNoDevice):
		return ErrDeviceNotFound
	case errors.Is(err, gousb.ErrorAccess):
		return ErrUnauthorized
	case errors.Is(err, gousb.ErrorPipe),
		errors.Is(err, gousb.ErrorIO),
		errors.Is(err, gousb.ErrorOverflow),
		errors.Is(err, gousb.ErrorBusy),
		errors.Is(err, gousb.ErrorOther):
		return ErrConnection
	}

	return &CommunicationError{Err: err}
}
