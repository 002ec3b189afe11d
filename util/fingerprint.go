// Package util provides small helpers shared across the backend.
//
//revive:disable-next-line:var-naming
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint derives the stable identity of a finding from its identity tuple.
// Each field is length-prefixed before hashing so that ("a:b", "c") and
// ("a", "b:c") never collide.
func Fingerprint(service, resourceID, issue, region string) string {
	h := sha256.New()
	for _, part := range [...]string{service, resourceID, issue, region} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
