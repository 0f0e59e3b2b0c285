package api

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash returns a deterministic BLAKE3 hash of the message content.
// It covers SessionID, Role and Text; IDs and timestamps are excluded so that
// a retried delivery of the same line hashes identically.
func (m Message) Hash() string {
	h := blake3.New()

	h.Write([]byte(m.SessionID))
	h.Write([]byte{0})

	h.Write([]byte(m.Role))
	h.Write([]byte{0})

	h.Write([]byte(m.Text))

	return hex.EncodeToString(h.Sum(nil))
}

// HashBytes returns the hex BLAKE3 digest of b.
func HashBytes(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
