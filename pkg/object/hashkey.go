package object

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// shakeDigest32 returns a stable 32-bit digest of s's UTF-8 bytes, used as
// the Value half of a string HashKey.
//
// The source this language was distilled from trusts a short SHAKE-128
// digest to be collision-free in practice and does not compare the original
// string on lookup. This implementation keeps that behavior (see
// DESIGN.md's Open Question entry) but isolates the hashing here so a
// future full-key comparison only has to touch one function.
func shakeDigest32(s string) uint32 {
	h := sha3.NewShake128()
	_, _ = h.Write([]byte(s))
	var sum [4]byte
	_, _ = h.Read(sum[:])
	return binary.LittleEndian.Uint32(sum[:])
}
