// Package integrity computes and verifies the keyed tamper-evidence
// fingerprint stored alongside every Policy, Group, User and AuditRecord.
// The fingerprint is an HMAC-SHA256 over a canonical JSON projection of the
// record's meaningful fields, so two records differing only in derived or
// volatile fields (like LastModificationDate bumped by an unrelated field)
// still hash identically unless an honored field actually changed.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Service computes and verifies keyed fingerprints. The key is the
// deployment's MODULAR_API_SECRET_KEY; anyone without it cannot forge a
// record that will verify, so a mismatch means either the key rotated or the
// record was edited directly in storage.
type Service struct {
	key []byte
}

func New(key []byte) *Service {
	return &Service{key: key}
}

// Fingerprint renders fields as canonical JSON (map keys sorted) and returns
// the hex-encoded HMAC-SHA256 of that projection.
func (s *Service) Fingerprint(fields map[string]interface{}) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(canonicalize(fields))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether want matches the fingerprint computed over fields.
func (s *Service) Verify(fields map[string]interface{}, want string) bool {
	got := s.Fingerprint(fields)
	return hmac.Equal([]byte(got), []byte(want))
}

// canonicalize produces a deterministic byte sequence for a field map: keys
// sorted, nested maps re-marshaled through the same json encoder so map key
// order never leaks through Go's randomized map iteration.
func canonicalize(fields map[string]interface{}) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(fields[k])
		ordered = append(ordered, kb...)
		ordered = append(ordered, ':')
		ordered = append(ordered, vb...)
	}
	ordered = append(ordered, '}')
	return ordered
}
