package loaders

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	pkghttp "RepoChat/backend/go/pkg/http"
	"RepoChat/backend/go/pkg/logger"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAPIBaseURL is the public GitHub REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultMaxConcurrency is the number of parallel content fetches.
	DefaultMaxConcurrency = 2
	// DefaultMaxFileBytes is the size above which files are skipped.
	DefaultMaxFileBytes int64 = 1 << 20

	githubAPIVersion = "2022-11-28"
)

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

type treeResponse struct {
	SHA       string      `json:"sha"`
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type contentResponse struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// LoadStats summarises one Load call.
type LoadStats struct {
	Listed  int // blobs in the tree
	Ignored int // excluded by an ignore pattern
	Skipped int // too large, not inlined by the API or binary
	Loaded  int
}

// GitHubLoader loads repository files through the GitHub REST API.
type GitHubLoader struct {
	client         *pkghttp.Client
	baseURL        string
	maxConcurrency int
	maxFileBytes   int64
	log            *logger.Logger
	lastStats      atomic.Pointer[LoadStats]
}

// GitHubOption configures a GitHubLoader.
type GitHubOption func(*GitHubLoader)

// WithAPIBaseURL points the loader at another API endpoint (GitHub Enterprise, tests).
func WithAPIBaseURL(u string) GitHubOption {
	return func(l *GitHubLoader) {
		if u != "" {
			l.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithMaxConcurrency bounds the number of parallel content fetches.
func WithMaxConcurrency(n int) GitHubOption {
	return func(l *GitHubLoader) {
		if n > 0 {
			l.maxConcurrency = n
		}
	}
}

// WithMaxFileBytes sets the size above which files are skipped.
func WithMaxFileBytes(n int64) GitHubOption {
	return func(l *GitHubLoader) {
		if n > 0 {
			l.maxFileBytes = n
		}
	}
}

// WithLogger sets the loader's logger.
func WithLogger(log *logger.Logger) GitHubOption {
	return func(l *GitHubLoader) {
		l.log = log
	}
}

// NewGitHubLoader creates a loader that issues its requests through client.
func NewGitHubLoader(client *pkghttp.Client, opts ...GitHubOption) *GitHubLoader {
	l := &GitHubLoader{
		client:         client,
		baseURL:        DefaultAPIBaseURL,
		maxConcurrency: DefaultMaxConcurrency,
		maxFileBytes:   DefaultMaxFileBytes,
		log:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ interfaces.Loader = (*GitHubLoader)(nil)

// LastStats returns the statistics of the most recent successful Load.
func (l *GitHubLoader) LastStats() LoadStats {
	if s := l.lastStats.Load(); s != nil {
		return *s
	}
	return LoadStats{}
}

// Load lists the repository tree and fetches every eligible file. Documents
// are returned in tree order regardless of fetch concurrency.
func (l *GitHubLoader) Load(ctx context.Context, ref schema.RepoRef, ignore []string) ([]schema.Document, error) {
	repo, err := ParseRepoURL(ref.URL)
	if err != nil {
		return nil, err
	}
	matcher, err := NewIgnoreMatcher(ignore)
	if err != nil {
		return nil, err
	}
	branch := repo.BranchOr(ref.Branch)
	header := l.header(ref.Token)

	tree, err := l.fetchTree(ctx, repo, branch, header)
	if err != nil {
		return nil, &ingesterr.LoadError{Repo: repo.FullName(), Err: err}
	}
	if tree.Truncated {
		l.log.WithField("repo", repo.FullName()).Warn("Repository tree was truncated by the API; some files will be missing")
	}

	stats := LoadStats{}
	var wanted []treeEntry
	for _, e := range tree.Tree {
		if e.Type != "blob" {
			continue
		}
		stats.Listed++
		if pat, ok := matcher.Match(e.Path); ok {
			stats.Ignored++
			l.log.WithPayload(map[string]interface{}{"path": e.Path, "pattern": pat}).Debug("Ignoring file")
			continue
		}
		if e.Size > l.maxFileBytes {
			stats.Skipped++
			l.log.WithPayload(map[string]interface{}{"path": e.Path, "size": e.Size}).Debug("Skipping large file")
			continue
		}
		wanted = append(wanted, e)
	}

	results := make([]*schema.Document, len(wanted))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrency)
	for i, e := range wanted {
		g.Go(func() error {
			data, ok, err := l.fetchContent(gctx, repo, branch, e.Path, header)
			if err != nil {
				return &ingesterr.LoadError{Repo: repo.FullName(), Path: e.Path, Err: err}
			}
			if !ok || !isText(data) {
				skipped.Add(1)
				l.log.WithField("path", e.Path).Debug("Skipping binary or non-inlined file")
				return nil
			}
			results[i] = &schema.Document{Text: string(data), SourcePath: e.Path}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]schema.Document, 0, len(results))
	for _, d := range results {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	stats.Skipped += int(skipped.Load())
	stats.Loaded = len(docs)
	l.lastStats.Store(&stats)

	l.log.WithPayload(map[string]interface{}{
		"repo":    repo.FullName(),
		"branch":  branch,
		"listed":  stats.Listed,
		"ignored": stats.Ignored,
		"skipped": stats.Skipped,
		"loaded":  stats.Loaded,
	}).Info("Repository files loaded")
	return docs, nil
}

func (l *GitHubLoader) header(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", githubAPIVersion)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func (l *GitHubLoader) fetchTree(ctx context.Context, repo Repo, branch string, header http.Header) (*treeResponse, error) {
	// 分支名中的 "/" 保留为路径分隔符
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		l.baseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), escapePath(branch))
	var tree treeResponse
	if err := l.client.GetJSON(ctx, u, header, &tree); err != nil {
		return nil, fmt.Errorf("list tree: %w", err)
	}
	return &tree, nil
}

// fetchContent returns the decoded file body. ok is false when the API did not
// inline the content (files above its own size limit).
func (l *GitHubLoader) fetchContent(ctx context.Context, repo Repo, branch, path string, header http.Header) ([]byte, bool, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		l.baseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), escapePath(path), url.QueryEscape(branch))
	var payload contentResponse
	if err := l.client.GetJSON(ctx, u, header, &payload); err != nil {
		return nil, false, err
	}
	switch payload.Encoding {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(payload.Content)
		if err != nil {
			return nil, false, fmt.Errorf("decode content: %w", err)
		}
		return data, true, nil
	case "":
		return []byte(payload.Content), true, nil
	default:
		return nil, false, nil
	}
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// isText reports whether data sniffs as text. Everything mimetype derives
// from text/plain (source code, JSON, XML, HTML) counts.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
