package integrity

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	s := New([]byte("test-key"))
	fields := map[string]interface{}{"policy_name": "p1", "state": "activated"}
	a := s.Fingerprint(fields)
	b := s.Fingerprint(fields)
	if a != b {
		t.Errorf("fingerprint not deterministic: %s != %s", a, b)
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	s := New([]byte("test-key"))
	a := s.Fingerprint(map[string]interface{}{"state": "activated"})
	b := s.Fingerprint(map[string]interface{}{"state": "blocked"})
	if a == b {
		t.Error("expected different fingerprints for different content")
	}
}

func TestFingerprint_KeyDependent(t *testing.T) {
	fields := map[string]interface{}{"state": "activated"}
	a := New([]byte("key-one")).Fingerprint(fields)
	b := New([]byte("key-two")).Fingerprint(fields)
	if a == b {
		t.Error("expected different fingerprints for different keys")
	}
}

func TestVerify(t *testing.T) {
	s := New([]byte("test-key"))
	fields := map[string]interface{}{"username": "alice"}
	hash := s.Fingerprint(fields)
	if !s.Verify(fields, hash) {
		t.Error("expected verify to succeed against own fingerprint")
	}
	if s.Verify(fields, hash+"tampered") {
		t.Error("expected verify to fail against tampered hash")
	}
}

func TestFingerprint_MapKeyOrderIndependent(t *testing.T) {
	s := New([]byte("k"))
	a := s.Fingerprint(map[string]interface{}{"a": 1, "b": 2, "c": 3})
	b := s.Fingerprint(map[string]interface{}{"c": 3, "a": 1, "b": 2})
	if a != b {
		t.Error("expected fingerprint to be independent of map construction order")
	}
}
