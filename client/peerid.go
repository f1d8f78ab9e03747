package client

import "crypto/rand"

// NewPeerID returns a new random 20-byte peer identifier. Each command calls
// it once per invocation (Open Question (d)) and reuses the result for both
// the tracker request and every peer handshake, rather than the fixed ASCII string the
// teacher's download path used.
func NewPeerID() [20]byte {
	var id [20]byte
	rand.Read(id[:])
	return id
}
