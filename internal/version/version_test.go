package version

import "testing"

func TestStringFormatsDottedVersion(t *testing.T) {
	if got, want := String(), "0.1.0"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
