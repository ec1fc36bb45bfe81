package loaders

import (
	"fmt"
	"path"
	"strings"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"github.com/gobwas/glob"
)

// DefaultIgnore is always applied under the caller's patterns: lock files,
// secrets, binary assets, editor and VCS directories, dependency caches.
var DefaultIgnore = []string{
	"package-lock.json", ".env", "deno-lock.json", "yarn.lock", "composer.lock",
	"pnpm-lock.yaml", "Gemfile.lock", "poetry.lock", "uv.lock",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.ico",
	"*.pdf", "*.docx", "*.woff", "*.woff2", "*.ttf", "*.eot",
	".git/**", ".vscode/**", ".idea/**", "node_modules/**", "__pycache__/**", "*.pyc",
}

type pattern struct {
	raw      string
	matcher  glob.Glob
	basename bool
}

// IgnoreMatcher decides whether a repository path is excluded from loading.
//
// A pattern without a slash is matched against the file name, so "*.png" and
// ".env" apply in every directory. A pattern with a slash is matched against
// the path and against every suffix of it that starts at a directory
// boundary, so "node_modules/**" also excludes "web/node_modules/x.js".
type IgnoreMatcher struct {
	patterns []pattern
}

// NewIgnoreMatcher compiles DefaultIgnore followed by extra.
func NewIgnoreMatcher(extra []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{}
	for _, raw := range append(append([]string{}, DefaultIgnore...), extra...) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		g, err := glob.Compile(raw, '/')
		if err != nil {
			return nil, &ingesterr.ConfigError{Field: "github.ignoreFiles", Reason: fmt.Sprintf("invalid pattern %q: %v", raw, err)}
		}
		m.patterns = append(m.patterns, pattern{raw: raw, matcher: g, basename: !strings.Contains(raw, "/")})
	}
	return m, nil
}

// Match reports whether p is ignored and by which pattern.
func (m *IgnoreMatcher) Match(p string) (string, bool) {
	p = strings.TrimPrefix(p, "/")
	base := path.Base(p)
	for _, pat := range m.patterns {
		if pat.basename {
			if pat.matcher.Match(base) {
				return pat.raw, true
			}
			continue
		}
		for rest := p; ; {
			if pat.matcher.Match(rest) {
				return pat.raw, true
			}
			i := strings.IndexByte(rest, '/')
			if i < 0 {
				break
			}
			rest = rest[i+1:]
		}
	}
	return "", false
}

// Ignored reports whether p is excluded.
func (m *IgnoreMatcher) Ignored(p string) bool {
	_, ok := m.Match(p)
	return ok
}
