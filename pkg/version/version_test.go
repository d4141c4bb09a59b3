package version

import "testing"

func withBuild(t *testing.T, v, commit string) {
	t.Helper()
	origV, origC := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origV, origC })
	Version, GitCommit = v, commit
}

func TestUserAgent(t *testing.T) {
	cases := []struct {
		version, commit, want string
	}{
		{"1.4.0", "a1b2c3d4e5f6", "herald/1.4.0 (a1b2c3d)"},
		{"dev", "unknown", "herald/dev (unknown)"},
		{"0.1.0", "abc", "herald/0.1.0 (abc)"},
	}
	for _, tc := range cases {
		withBuild(t, tc.version, tc.commit)
		if got := UserAgent(); got != tc.want {
			t.Errorf("UserAgent() with %s/%s = %q, want %q", tc.version, tc.commit, got, tc.want)
		}
	}
}

func TestGetInfoReflectsBuildVars(t *testing.T) {
	withBuild(t, "2.0.0", "deadbeef")
	info := GetInfo()
	if info.Version != "2.0.0" || info.GitCommit != "deadbeef" || info.BuildDate == "" {
		t.Fatalf("unexpected info %+v", info)
	}
}
