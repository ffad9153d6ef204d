package git

import (
	"regexp"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// BranchNamer generates branch names for applied features.
type BranchNamer struct {
	TypePrefix string // Branch prefix (e.g., "genstage", "feature")
	MaxLength  int    // Maximum branch name length
}

// DefaultBranchNamer returns a namer with default settings.
func DefaultBranchNamer() *BranchNamer {
	return &BranchNamer{
		TypePrefix: "genstage",
		MaxLength:  100,
	}
}

// ForFeature generates a branch name for a feature.
// Example: "Login Form" -> "genstage/login-form"
func (n *BranchNamer) ForFeature(feature string) string {
	return n.build(Slugify(feature))
}

// ForRun generates a branch name scoped to a run.
// Example: "20240102-150405-abc123", "login" -> "genstage/login-20240102-150405-abc123"
func (n *BranchNamer) ForRun(runID, feature string) string {
	parts := []string{}
	if slug := Slugify(feature); slug != "" {
		parts = append(parts, slug)
	}
	if id := Slugify(runID); id != "" {
		parts = append(parts, id)
	}
	return n.build(strings.Join(parts, "-"))
}

func (n *BranchNamer) build(name string) string {
	branch := name
	if n.TypePrefix != "" {
		branch = n.TypePrefix + "/" + name
	}
	if n.MaxLength > 0 && len(branch) > n.MaxLength {
		branch = branch[:n.MaxLength]
	}
	return CleanBranch(branch)
}

// Slugify converts a string to a branch-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = nonSlugChars.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CleanBranch ensures a branch name is valid.
func CleanBranch(s string) string {
	s = hyphenRuns.ReplaceAllString(s, "-")

	// Trailing hyphens in any segment, not just the last
	parts := strings.Split(s, "/")
	for i, part := range parts {
		parts[i] = strings.TrimRight(part, "-")
	}
	return strings.Join(parts, "/")
}

// ParseBranch splits a branch name into its prefix and name.
func ParseBranch(branch string) (prefix, name string) {
	branch = strings.TrimPrefix(branch, "refs/heads/")

	parts := strings.SplitN(branch, "/", 2)
	if len(parts) == 1 {
		return "", branch
	}
	return parts[0], parts[1]
}
