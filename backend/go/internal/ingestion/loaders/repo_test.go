package loaders

import (
	"errors"
	"testing"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in     string
		owner  string
		name   string
		branch string
	}{
		{"https://github.com/acme/widgets", "acme", "widgets", ""},
		{"https://github.com/acme/widgets.git", "acme", "widgets", ""},
		{"https://github.com/acme/widgets/", "acme", "widgets", ""},
		{"http://www.github.com/acme/widgets.git/", "acme", "widgets", ""},
		{"https://GitHub.com/acme/widgets", "acme", "widgets", ""},
		{"https://github.com/acme/widgets/tree/dev", "acme", "widgets", "dev"},
		{"https://github.com/acme/widgets/tree/main/src/util", "acme", "widgets", "main"},
		{"acme/widgets", "acme", "widgets", ""},
		{"  acme/widgets.git  ", "acme", "widgets", ""},
	}
	for _, tt := range tests {
		repo, err := ParseRepoURL(tt.in)
		if err != nil {
			t.Errorf("ParseRepoURL(%q) error = %v", tt.in, err)
			continue
		}
		if repo.Owner != tt.owner || repo.Name != tt.name || repo.Branch != tt.branch {
			t.Errorf("ParseRepoURL(%q) = %+v, want %s/%s@%q", tt.in, repo, tt.owner, tt.name, tt.branch)
		}
	}
}

func TestParseRepoURL_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"widgets",
		"a/b/c",
		"https://github.com/",
		"https://github.com/acme",
		"https://github.com/acme/.git",
		"https://gitlab.com/acme/widgets",
		"https://github.example.com/acme/widgets",
		"ftp://github.com/acme/widgets",
		"https://github.com/acme/widgets/blob/main/README.md",
		"https://github.com/acme/widgets/tree",
		"https://github.com/acme/widgets/issues",
	} {
		_, err := ParseRepoURL(in)
		var ce *ingesterr.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("ParseRepoURL(%q): expected ConfigError, got %v", in, err)
		}
	}
}

func TestRepo_BranchOr(t *testing.T) {
	fromURL := Repo{Owner: "acme", Name: "widgets", Branch: "dev"}
	if got := fromURL.BranchOr(""); got != "dev" {
		t.Errorf("expected the URL branch, got %q", got)
	}
	if got := fromURL.BranchOr(" release "); got != "release" {
		t.Errorf("explicit branch must win, got %q", got)
	}
	if got := (Repo{Owner: "acme", Name: "widgets"}).BranchOr(""); got != DefaultBranch {
		t.Errorf("expected %s, got %q", DefaultBranch, got)
	}
}
