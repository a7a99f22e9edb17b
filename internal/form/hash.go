package form

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for a future encoding change.
const (
	DomainSnapshot = "formsync/snapshot/v1"
	DomainGroup    = "formsync/group/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash identifies the content of a flattened form snapshot.
// Two snapshots with the same answers hash identically regardless of
// the order the groups were written in.
func SnapshotHash(v Values) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// GroupHash identifies the content of one field group under its name.
func GroupHash(group string, v Values) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("group hash: %w", err)
	}
	return hashWithDomain(DomainGroup, append([]byte(group+"\x00"), data...)), nil
}
