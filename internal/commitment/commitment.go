// Package commitment provides the one-way hashing that stands between
// sensitive identifiers and the ledger. Only digests produced here ever reach
// on-chain state; raw course/subject/evaluation values stay off-chain.
//
// Digests must be reproducible across processes and hosts: duplicate-issuance
// detection compares commitments computed at different times on different
// nodes, so there is deliberately no per-process salt.
package commitment

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DigestLen is the byte length of every commitment digest.
const DigestLen = 32

// Digest is a 256-bit keccak commitment.
type Digest [DigestLen]byte

// Zero is the empty digest; fields that must be committed reject it.
var Zero Digest

// Hash returns the keccak-256 digest of value.
func Hash(value []byte) Digest {
	var d Digest
	h := sha3.NewLegacyKeccak256()
	h.Write(value)
	copy(d[:], h.Sum(nil))
	return d
}

// HashString is Hash over the UTF-8 bytes of s.
func HashString(s string) Digest {
	return Hash([]byte(s))
}

// CompositeHash collapses multiple identifying fields into one commitment.
// Each part is length-prefixed before concatenation so ("ab","c") and
// ("a","bc") can never collide.
func CompositeHash(parts ...[]byte) Digest {
	h := sha3.NewLegacyKeccak256()
	var prefix [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(p)))
		h.Write(prefix[:])
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Pair combines a course commitment and a subject commitment into the single
// registry key the duplicate-issuance guard is built on.
func Pair(courseHash, subjectHash Digest) Digest {
	return CompositeHash(courseHash[:], subjectHash[:])
}

// IsZero reports whether the digest is the zero value.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Hex returns the 0x-prefixed lowercase hex encoding.
func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) String() string { return d.Hex() }

// FromHex parses a 0x-prefixed or bare 64-character hex digest.
func FromHex(s string) (Digest, bool) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != DigestLen*2 {
		return Zero, false
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Zero, false
	}
	var d Digest
	copy(d[:], raw)
	return d, true
}
