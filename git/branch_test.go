package git

import (
	"strings"
	"testing"
)

func TestBranchNamer_ForFeature(t *testing.T) {
	tests := []struct {
		name    string
		namer   *BranchNamer
		feature string
		want    string
	}{
		{"default", DefaultBranchNamer(), "Login Form", "genstage/login-form"},
		{"custom prefix", &BranchNamer{TypePrefix: "feature", MaxLength: 100}, "user_profile", "feature/user-profile"},
		{"no prefix", &BranchNamer{}, "checkout", "checkout"},
		{"special characters", DefaultBranchNamer(), "Auth: (OAuth2) & SSO!", "genstage/auth-oauth2-sso"},
		{"nested name", DefaultBranchNamer(), "screens/home", "genstage/screens-home"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.namer.ForFeature(tt.feature); got != tt.want {
				t.Errorf("ForFeature(%q) = %q, want %q", tt.feature, got, tt.want)
			}
		})
	}
}

func TestBranchNamer_ForRun(t *testing.T) {
	namer := DefaultBranchNamer()

	got := namer.ForRun("20240102-150405-AbC123", "login")
	want := "genstage/login-20240102-150405-abc123"
	if got != want {
		t.Errorf("ForRun = %q, want %q", got, want)
	}
}

func TestBranchNamer_MaxLength(t *testing.T) {
	namer := &BranchNamer{TypePrefix: "genstage", MaxLength: 20}

	got := namer.ForFeature("a very long feature name that keeps going")
	if len(got) > 20 {
		t.Errorf("len(%q) = %d, want <= 20", got, len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("%q ends with a hyphen", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"snake_case_name", "snake-case-name"},
		{"--trim--", "trim"},
		{"a   b", "a-b"},
		{"ümlaut", "mlaut"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanBranch(t *testing.T) {
	if got := CleanBranch("genstage--/login--"); got != "genstage/login" {
		t.Errorf("CleanBranch = %q, want %q", got, "genstage/login")
	}
}

func TestParseBranch(t *testing.T) {
	tests := []struct {
		branch     string
		wantPrefix string
		wantName   string
	}{
		{"genstage/login-form", "genstage", "login-form"},
		{"refs/heads/feature/a/b", "feature", "a/b"},
		{"main", "", "main"},
	}

	for _, tt := range tests {
		prefix, name := ParseBranch(tt.branch)
		if prefix != tt.wantPrefix || name != tt.wantName {
			t.Errorf("ParseBranch(%q) = %q, %q; want %q, %q", tt.branch, prefix, name, tt.wantPrefix, tt.wantName)
		}
	}
}
