package connector

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// CodeHostConnector fetches a repository's file tree and its code
// files, one Document per file. Grounded on the source platform's
// GitHub connector: extension allowlist, skip-directory set, and a
// priority score that surfaces READMEs and config before tests.
type CodeHostConnector struct {
	oauth    *oauth2.Config
	creds    emailCredentials
	api      CodeHostAPI
	settings CodeHostSettings
}

// CodeHostSettings configures which repositories are synced.
type CodeHostSettings struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"` // empty = try "main" then "master"
	MaxFiles int    `json:"maxFiles"`
}

// TreeEntry is one node in a repository's recursive git tree.
type TreeEntry struct {
	Path string
	Type string // "blob" or "tree"
	SHA  string
	Size int64
}

// CodeHostAPI abstracts the provider's tree and content endpoints.
type CodeHostAPI interface {
	GetTree(ctx context.Context, token *oauth2.Token, owner, repo, branch string) ([]TreeEntry, error)
	GetFileContent(ctx context.Context, token *oauth2.Token, owner, repo, filePath string) (content []byte, isBinary bool, err error)
}

// codeExtensions mirrors the source platform's CODE_EXTENSIONS set.
var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".java": true, ".go": true,
	".rb": true, ".php": true, ".cs": true, ".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".rs": true, ".kt": true, ".swift": true, ".scala": true,
	".html": true, ".css": true, ".scss": true, ".sass": true, ".less": true, ".vue": true, ".svelte": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true, ".conf": true,
	".tf": true, ".tfvars": true,
	".md": true, ".rst": true, ".txt": true,
	".sql": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true, ".ps1": true, ".bat": true,
}

// skipDirs mirrors the source platform's SKIP_DIRS set.
var skipDirs = map[string]bool{
	"node_modules": true, "venv": true, "env": true, ".venv": true, "__pycache__": true,
	"dist": true, "build": true, ".git": true, ".svn": true, ".hg": true, "vendor": true,
	"tmp": true, "temp": true, "cache": true, ".cache": true, "coverage": true, ".coverage": true,
	".pytest_cache": true, ".mypy_cache": true, ".tox": true, "logs": true, "log": true,
	"target": true, "out": true, ".next": true, ".nuxt": true,
}

const maxCodeFileBytes = 1_000_000

// NewCodeHostConnector creates a CodeHostConnector.
func NewCodeHostConnector(oauthCfg *oauth2.Config, api CodeHostAPI, settings CodeHostSettings, token *oauth2.Token) *CodeHostConnector {
	if settings.MaxFiles <= 0 {
		settings.MaxFiles = 500
	}
	c := &CodeHostConnector{oauth: oauthCfg, api: api, settings: settings}
	c.creds.Token = token
	return c
}

var _ Connector = (*CodeHostConnector)(nil)

func (c *CodeHostConnector) AuthURL(redirect, state string) (string, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	return cfg.AuthCodeURL(state), nil
}

func (c *CodeHostConnector) ExchangeCode(ctx context.Context, code, redirect string) ([]byte, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("connector.CodeHostConnector.ExchangeCode: %w", err)
	}
	return marshalToken(token)
}

func (c *CodeHostConnector) Connect(ctx context.Context) error {
	if c.creds.Token == nil {
		return fmt.Errorf("connector.CodeHostConnector.Connect: no stored credentials")
	}
	_, err := c.resolveTree(ctx)
	return err
}

func (c *CodeHostConnector) Test(ctx context.Context) bool {
	_, err := c.resolveTree(ctx)
	return err == nil
}

// resolveTree tries the configured branch, falling back to "main" then
// "master" when no branch was configured and the "main" attempt fails
// with any error.
func (c *CodeHostConnector) resolveTree(ctx context.Context) ([]TreeEntry, error) {
	if c.settings.Branch != "" {
		return c.api.GetTree(ctx, c.creds.Token, c.settings.Owner, c.settings.Repo, c.settings.Branch)
	}
	tree, err := c.api.GetTree(ctx, c.creds.Token, c.settings.Owner, c.settings.Repo, "main")
	if err == nil {
		return tree, nil
	}
	return c.api.GetTree(ctx, c.creds.Token, c.settings.Owner, c.settings.Repo, "master")
}

// Sync fetches the repository tree once, filters to code files, sorts
// by priority, and downloads content for up to MaxFiles entries.
func (c *CodeHostConnector) Sync(ctx context.Context, since string, onCursor func(string)) (<-chan Document, <-chan error) {
	docs := make(chan Document, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)
		defer func() { onCursor(time.Now().UTC().Format(time.RFC3339)) }()

		var tree []TreeEntry
		err := withBackoff(ctx, func() (time.Duration, bool, error) {
			var e error
			tree, e = c.resolveTree(ctx)
			return 0, e != nil, e
		})
		if err != nil {
			errs <- fmt.Errorf("connector.CodeHostConnector.Sync: %w", err)
			return
		}

		files := filterCodeFiles(tree, c.settings.MaxFiles)
		for _, f := range files {
			content, isBinary, err := c.api.GetFileContent(ctx, c.creds.Token, c.settings.Owner, c.settings.Repo, f.Path)
			if err != nil || isBinary {
				continue
			}
			select {
			case docs <- Document{
				ExternalID: fmt.Sprintf("%s/%s@%s:%s", c.settings.Owner, c.settings.Repo, c.settings.Branch, f.Path),
				Title:      f.Path,
				Content:    string(content),
				Extension:  strings.ToLower(path.Ext(f.Path)),
				Metadata:   map[string]string{"owner": c.settings.Owner, "repo": c.settings.Repo, "path": f.Path},
			}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return docs, errs
}

// filterCodeFiles drops directories, skip-listed paths, non-code
// extensions, and oversized blobs, then sorts by priorityScore
// (highest first) and truncates to maxFiles.
func filterCodeFiles(tree []TreeEntry, maxFiles int) []TreeEntry {
	var out []TreeEntry
	for _, item := range tree {
		if item.Type != "blob" {
			continue
		}
		if inSkipDir(item.Path) {
			continue
		}
		if !codeExtensions[strings.ToLower(path.Ext(item.Path))] {
			continue
		}
		if item.Size > maxCodeFileBytes {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityScore(out[i].Path) > priorityScore(out[j].Path)
	})

	if len(out) > maxFiles {
		out = out[:maxFiles]
	}
	return out
}

func inSkipDir(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

// priorityScore boosts READMEs, markdown, and config files, and
// slightly penalizes (without excluding) test files.
func priorityScore(filePath string) int {
	lower := strings.ToLower(filePath)
	score := 0
	if strings.Contains(lower, "readme") {
		score += 1000
	}
	if strings.HasSuffix(lower, ".md") {
		score += 100
	}
	if strings.Contains(lower, "config") || strings.Contains(lower, "settings") {
		score += 50
	}
	for _, ext := range []string{".py", ".js", ".ts", ".go", ".java"} {
		if strings.HasSuffix(lower, ext) {
			score += 10
			break
		}
	}
	if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
		score -= 5
	}
	return score
}

func (c *CodeHostConnector) Fetch(ctx context.Context, externalID string) (*Document, error) {
	owner, repo, filePath, ok := parseCodeHostExternalID(externalID)
	if !ok {
		return nil, fmt.Errorf("connector.CodeHostConnector.Fetch: malformed external id %q", externalID)
	}
	content, isBinary, err := c.api.GetFileContent(ctx, c.creds.Token, owner, repo, filePath)
	if err != nil {
		return nil, fmt.Errorf("connector.CodeHostConnector.Fetch: %w", err)
	}
	if isBinary {
		return nil, fmt.Errorf("connector.CodeHostConnector.Fetch: %s is binary", filePath)
	}
	return &Document{ExternalID: externalID, Title: filePath, Content: string(content)}, nil
}

func parseCodeHostExternalID(externalID string) (owner, repo, filePath string, ok bool) {
	at := strings.Index(externalID, "@")
	colon := strings.Index(externalID, ":")
	if at < 0 || colon < at {
		return "", "", "", false
	}
	ownerRepo := externalID[:at]
	slash := strings.Index(ownerRepo, "/")
	if slash < 0 {
		return "", "", "", false
	}
	return ownerRepo[:slash], ownerRepo[slash+1:], externalID[colon+1:], true
}

func (c *CodeHostConnector) Disconnect(ctx context.Context) error {
	c.creds = emailCredentials{}
	return nil
}
