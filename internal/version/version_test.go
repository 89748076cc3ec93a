package version

import "testing"

func TestUserAgent(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "1.2.3", "abc1234"
	if got, want := UserAgent(), "benzinga-stream/1.2.3 (abc1234)"; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
	if got, want := String(), "1.2.3 (abc1234) built "+BuildTime; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
