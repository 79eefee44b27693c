package snapshot

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// checksumState hashes the canonical JSON encoding of the state.
// encoding/json renders the same bytes for the same value, so the
// digest is stable across export and re-import.
func checksumState(state State) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the state checksum and compares it against the
// one recorded in the document.
func Verify(doc Document) error {
	sum, err := checksumState(doc.State)
	if err != nil {
		return err
	}
	if sum != doc.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}
