package metastore

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// deriveCID returns a CIDv1 (raw + sha2-256) for the canonical metadata bytes.
func deriveCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// verifyCID checks that data hashes to the expected CID. Transport is not
// authoritative; the content address is.
func verifyCID(expected cid.Cid, data []byte) bool {
	got, err := deriveCID(data)
	if err != nil {
		return false
	}
	return got.Equals(expected)
}
