/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Transaction identity: a (local_id, remote_id) stream pair
 */

package adbconn

// Transaction is the identity of one logical ADB stream
type Transaction struct {
	LocalID  uint32 // non-zero, allocated on this host
	RemoteID uint32 // assigned by the device, learned from the first OKAY arg0
}

// Matches reports whether a packet with the given arg0/arg1 belongs
// to this transaction: arg1 must equal LocalID, and arg0 must equal
// RemoteID unless RemoteID is still unknown (0)
func (t Transaction) Matches(arg0, arg1 uint32) bool {
	return arg1 == t.LocalID && (t.RemoteID == 0 || arg0 == t.RemoteID)
}
