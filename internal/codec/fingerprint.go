package codec

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// planDomainKey separates plan fingerprints from any other BLAKE3 keyed
// hash the server may compute.
var planDomainKey = [32]byte{
	'f', 'l', 'e', 'e', 't', '.', 'p', 'l', 'a', 'n', 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Fingerprint returns the hex BLAKE3 keyed hash of v's deterministic
// CBOR encoding.
func Fingerprint(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	hasher, err := blake3.NewKeyed(planDomainKey[:])
	if err != nil {
		return "", err
	}
	_, _ = hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
