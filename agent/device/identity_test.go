package device

import (
	"regexp"
	"testing"
)

var md5Hex = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestIDStableAcrossCalls(t *testing.T) {
	t.Parallel()

	first := ID()
	if !md5Hex.MatchString(first) {
		t.Fatalf("ID() = %q, want 32 hex chars", first)
	}
	for i := 0; i < 3; i++ {
		if got := ID(); got != first {
			t.Fatalf("ID() changed between calls: %q != %q", got, first)
		}
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	t.Parallel()

	a := fingerprint("host-1", "amd64/8", "linux", 42)
	b := fingerprint("host-1", "amd64/8", "linux", 42)
	if a != b {
		t.Fatalf("fingerprint not deterministic: %q != %q", a, b)
	}
	if !md5Hex.MatchString(a) {
		t.Fatalf("fingerprint() = %q, want 32 hex chars", a)
	}
}

func TestFingerprintSensitiveToEachComponent(t *testing.T) {
	t.Parallel()

	base := fingerprint("host-1", "amd64/8", "linux", 42)
	variants := []string{
		fingerprint("host-2", "amd64/8", "linux", 42),
		fingerprint("host-1", "arm64/4", "linux", 42),
		fingerprint("host-1", "amd64/8", "darwin", 42),
		fingerprint("host-1", "amd64/8", "linux", 43),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base fingerprint", i)
		}
	}
}
