/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * One-shot privileged host commands: root:/unroot:/remount:/reboot:<arg>/
 * enable-verity:/disable-verity:
 */

package handlers

import (
	"context"
	"time"

	"github.com/xDvir/adbr-server/internal/adbconn"
)

const (
	rootCommand           = "root:"
	unrootCommand         = "unroot:"
	remountCommand        = "remount:"
	enableVerityCommand   = "enable-verity:"
	disableVerityCommand  = "disable-verity:"
)

// Reboot sends OPEN("reboot:<arg>") and does not wait for a reply: the
// device tears down the connection as it reboots
func Reboot(ctx context.Context, conn *adbconn.Conn, rebootCommand string, timeout time.Duration) error {
	if _, err := conn.SendOpen(ctx, rebootCommand); err != nil {
		return &UnexpectedError{Reason: "failed to reboot device: " + err.Error()}
	}
	return nil
}

// Root sends "root:" and returns the device's single WRTE response as text
func Root(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) (string, error) {
	return oneShotTextCommand(ctx, conn, rootCommand, timeout)
}

// Unroot sends "unroot:" and returns the device's single WRTE response as text
func Unroot(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) (string, error) {
	return oneShotTextCommand(ctx, conn, unrootCommand, timeout)
}

// Remount sends "remount:" and returns the device's single WRTE response as text
func Remount(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) (string, error) {
	return oneShotTextCommand(ctx, conn, remountCommand, timeout)
}

// EnableVerity sends "enable-verity:" and returns the device's single WRTE response as text
func EnableVerity(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) (string, error) {
	return oneShotTextCommand(ctx, conn, enableVerityCommand, timeout)
}

// DisableVerity sends "disable-verity:" and returns the device's single WRTE response as text
func DisableVerity(ctx context.Context, conn *adbconn.Conn, timeout time.Duration) (string, error) {
	return oneShotTextCommand(ctx, conn, disableVerityCommand, timeout)
}

// oneShotTextCommand runs the OPEN -> OKAY -> single WRTE -> CLSE
// pattern shared by root/unroot/remount/enable-verity/disable-verity
func oneShotTextCommand(ctx context.Context, conn *adbconn.Conn, command string, timeout time.Duration) (string, error) {
	txn, err := conn.SendOpen(ctx, command)
	if err != nil {
		return "", err
	}

	okay, err := conn.ReadOkay(ctx, txn, timeout)
	if err != nil {
		return "", err
	}
	txn.RemoteID = okay.Arg0

	resp, err := conn.ReadWrite(ctx, txn, timeout)
	if err != nil {
		return "", err
	}

	if err := conn.SendClose(ctx, txn); err != nil {
		return "", err
	}

	return string(resp.Data), nil
}
