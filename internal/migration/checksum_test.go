package migration

import "testing"

func TestChecksumIsDeterministic(t *testing.T) {
	a := Checksum([]byte("hello\n"))
	b := Checksum([]byte("hello\n"))
	if a != b {
		t.Fatalf("Checksum not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("Checksum length = %d, want 64", len(a))
	}
}

func TestChecksumMatchesKnownVector(t *testing.T) {
	got := Checksum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("Checksum(abc) = %q, want %q", got, want)
	}
}
