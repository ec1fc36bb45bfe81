package loaders

import (
	"fmt"
	"net/url"
	"strings"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
)

// DefaultBranch is read when neither the caller nor the URL names a branch.
const DefaultBranch = "main"

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string
	Name  string
	// Branch comes from a ".../tree/<branch>" URL, empty otherwise.
	Branch string
}

// FullName returns "owner/name".
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// BranchOr returns explicit when set, then the branch named by the URL,
// then DefaultBranch.
func (r Repo) BranchOr(explicit string) string {
	if b := strings.TrimSpace(explicit); b != "" {
		return b
	}
	if r.Branch != "" {
		return r.Branch
	}
	return DefaultBranch
}

// ParseRepoURL accepts https://github.com/owner/repo with an optional ".git"
// suffix or trailing slash, the browser form https://github.com/owner/repo/tree/<branch>[/path],
// and the owner/repo shorthand. Everything else is a *ingesterr.ConfigError.
func ParseRepoURL(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Repo{}, repoURLError("repository URL is required")
	}

	path := s
	shorthand := !strings.Contains(s, "://")
	if !shorthand {
		u, err := url.Parse(s)
		if err != nil {
			return Repo{}, repoURLError(fmt.Sprintf("invalid URL %q: %v", raw, err))
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return Repo{}, repoURLError(fmt.Sprintf("unsupported scheme %q in %q", u.Scheme, raw))
		}
		if host := strings.ToLower(u.Hostname()); host != "github.com" && host != "www.github.com" {
			return Repo{}, repoURLError(fmt.Sprintf("%q is not a github.com repository", raw))
		}
		path = u.Path
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return Repo{}, repoURLError(fmt.Sprintf("cannot find owner/repo in %q", raw))
	}
	repo := Repo{Owner: segments[0], Name: strings.TrimSuffix(segments[1], ".git")}
	if repo.Name == "" {
		return Repo{}, repoURLError(fmt.Sprintf("cannot find owner/repo in %q", raw))
	}

	rest := segments[2:]
	switch {
	case len(rest) == 0:
	case shorthand:
		return Repo{}, repoURLError(fmt.Sprintf("shorthand %q must be owner/repo", raw))
	case rest[0] == "tree" && len(rest) >= 2 && rest[1] != "":
		// 分支名本身可能含 "/"，无法与子目录区分，只取第一段
		repo.Branch = rest[1]
	default:
		return Repo{}, repoURLError(fmt.Sprintf("%q does not point at a repository or a branch", raw))
	}
	return repo, nil
}

func repoURLError(reason string) error {
	return &ingesterr.ConfigError{Field: "github.repoURL", Reason: reason}
}
