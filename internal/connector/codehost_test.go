package connector

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

type fakeCodeHostAPI struct {
	tree     []TreeEntry
	contents map[string]string
	binaries map[string]bool
	treeErr  error
}

func (f *fakeCodeHostAPI) GetTree(ctx context.Context, token *oauth2.Token, owner, repo, branch string) ([]TreeEntry, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.tree, nil
}

func (f *fakeCodeHostAPI) GetFileContent(ctx context.Context, token *oauth2.Token, owner, repo, filePath string) ([]byte, bool, error) {
	if f.binaries[filePath] {
		return nil, true, nil
	}
	return []byte(f.contents[filePath]), false, nil
}

func drainCodeHost(t *testing.T, docs <-chan Document, errs <-chan error) []Document {
	t.Helper()
	var got []Document
	for docs != nil || errs != nil {
		select {
		case d, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			got = append(got, d)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				t.Fatalf("unexpected sync error: %v", err)
			}
		}
	}
	return got
}

func TestFilterCodeFiles_SkipsNonCodeAndSkipDirsAndBinaries(t *testing.T) {
	tree := []TreeEntry{
		{Path: "README.md", Type: "blob", Size: 100},
		{Path: "node_modules/pkg/index.js", Type: "blob", Size: 100},
		{Path: "image.png", Type: "blob", Size: 100},
		{Path: "src", Type: "tree", Size: 0},
		{Path: "huge.go", Type: "blob", Size: maxCodeFileBytes + 1},
		{Path: "main.go", Type: "blob", Size: 100},
	}
	got := filterCodeFiles(tree, 500)

	if len(got) != 2 {
		t.Fatalf("got %d files, want 2 (README.md, main.go), got %+v", len(got), got)
	}
}

func TestFilterCodeFiles_PrioritizesReadmeOverTests(t *testing.T) {
	tree := []TreeEntry{
		{Path: "test_util.py", Type: "blob", Size: 10},
		{Path: "README.md", Type: "blob", Size: 10},
		{Path: "main.py", Type: "blob", Size: 10},
	}
	got := filterCodeFiles(tree, 500)

	if got[0].Path != "README.md" {
		t.Errorf("expected README.md first, got %s", got[0].Path)
	}
	if got[len(got)-1].Path != "test_util.py" {
		t.Errorf("expected test file last, got %s", got[len(got)-1].Path)
	}
}

func TestFilterCodeFiles_TruncatesToMaxFiles(t *testing.T) {
	var tree []TreeEntry
	for i := 0; i < 10; i++ {
		tree = append(tree, TreeEntry{Path: "file" + string(rune('a'+i)) + ".go", Type: "blob", Size: 10})
	}
	got := filterCodeFiles(tree, 3)
	if len(got) != 3 {
		t.Fatalf("got %d, want 3", len(got))
	}
}

func TestCodeHostConnector_Sync_SkipsBinaryFiles(t *testing.T) {
	api := &fakeCodeHostAPI{
		tree:     []TreeEntry{{Path: "main.go", Type: "blob", Size: 10}, {Path: "app.go", Type: "blob", Size: 10}},
		contents: map[string]string{"main.go": "package main"},
		binaries: map[string]bool{"app.go": true},
	}
	c := NewCodeHostConnector(&oauth2.Config{}, api, CodeHostSettings{Owner: "acme", Repo: "widgets", Branch: "main"}, &oauth2.Token{})

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainCodeHost(t, docs, errs)

	if len(got) != 1 || got[0].Content != "package main" {
		t.Fatalf("got %+v", got)
	}
}

func TestCodeHostConnector_Fetch_RoundTripsExternalID(t *testing.T) {
	api := &fakeCodeHostAPI{contents: map[string]string{"pkg/main.go": "package pkg"}}
	c := NewCodeHostConnector(&oauth2.Config{}, api, CodeHostSettings{Owner: "acme", Repo: "widgets", Branch: "main"}, &oauth2.Token{})

	doc, err := c.Fetch(context.Background(), "acme/widgets@main:pkg/main.go")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if doc.Content != "package pkg" {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestCodeHostConnector_Fetch_MalformedExternalID(t *testing.T) {
	c := NewCodeHostConnector(&oauth2.Config{}, &fakeCodeHostAPI{}, CodeHostSettings{}, &oauth2.Token{})
	if _, err := c.Fetch(context.Background(), "not-a-valid-id"); err == nil {
		t.Fatal("expected error for malformed external id")
	}
}
