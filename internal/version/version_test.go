package version

import "testing"

func TestString(t *testing.T) {
	v, sha, built := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, built })

	Version, GitSHA, BuildTime = "0.3.1", "abc1234", "2024-06-01T08:00:00Z"
	want := "echo-detect 0.3.1 (commit abc1234, built 2024-06-01T08:00:00Z)"
	if got := String("echo-detect"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
