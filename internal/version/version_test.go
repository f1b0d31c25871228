package version

import "testing"

func TestString(t *testing.T) {
	prevV, prevSHA, prevBuilt := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = prevV, prevSHA, prevBuilt })

	Version, GitSHA, BuildTime = "v1.2.3", "abc1234", "2024-05-17T09:30:00Z"
	want := "stdesc v1.2.3 (commit abc1234, built 2024-05-17T09:30:00Z)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
