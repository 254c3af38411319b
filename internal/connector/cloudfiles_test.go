package connector

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

type fakeCloudFilesAPI struct {
	folderItems map[string]struct {
		files   []CloudFile
		folders []CloudFolder
	}
	downloads map[string][]byte
}

func (f *fakeCloudFilesAPI) ListFolderItems(ctx context.Context, token *oauth2.Token, folderID string, offset int) ([]CloudFile, []CloudFolder, bool, error) {
	entry := f.folderItems[folderID]
	return entry.files, entry.folders, false, nil
}

func (f *fakeCloudFilesAPI) DownloadFile(ctx context.Context, token *oauth2.Token, fileID string) ([]byte, error) {
	return f.downloads[fileID], nil
}

type recordingRetainer struct {
	calls []string
}

func (r *recordingRetainer) Retain(ctx context.Context, tenantID, externalID string, data []byte) error {
	r.calls = append(r.calls, tenantID+"/"+externalID)
	return nil
}

func drainCloudFiles(t *testing.T, docs <-chan Document, errs <-chan error) []Document {
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

func TestCloudFilesConnector_Sync_RecursesSubfolders(t *testing.T) {
	api := &fakeCloudFilesAPI{
		folderItems: map[string]struct {
			files   []CloudFile
			folders []CloudFolder
		}{
			"0":  {files: []CloudFile{{ID: "f1", Name: "root.txt", SizeBytes: 10}}, folders: []CloudFolder{{ID: "sub1", Name: "projects"}}},
			"sub1": {files: []CloudFile{{ID: "f2", Name: "nested.txt", SizeBytes: 10}}},
		},
		downloads: map[string][]byte{"f1": []byte("root content"), "f2": []byte("nested content")},
	}
	c := NewCloudFilesConnector(&oauth2.Config{}, api, CloudFilesSettings{}, &oauth2.Token{AccessToken: "t"}, nil, "tenant-a")

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainCloudFiles(t, docs, errs)

	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2", len(got))
	}
	paths := map[string]bool{}
	for _, d := range got {
		paths[d.Metadata["path"]] = true
	}
	if !paths["root.txt"] || !paths["projects/nested.txt"] {
		t.Errorf("unexpected paths: %v", paths)
	}
}

func TestCloudFilesConnector_Sync_SkipsExcludedFolder(t *testing.T) {
	api := &fakeCloudFilesAPI{
		folderItems: map[string]struct {
			files   []CloudFile
			folders []CloudFolder
		}{
			"0": {folders: []CloudFolder{{ID: "secret", Name: "secret"}}},
		},
	}
	c := NewCloudFilesConnector(&oauth2.Config{}, api, CloudFilesSettings{ExcludeFolders: []string{"secret"}}, &oauth2.Token{AccessToken: "t"}, nil, "tenant-a")

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainCloudFiles(t, docs, errs)

	if len(got) != 0 {
		t.Fatalf("got %d documents, want 0", len(got))
	}
}

func TestCloudFilesConnector_AcceptFile_SizeAndExtensionFilters(t *testing.T) {
	c := NewCloudFilesConnector(&oauth2.Config{}, &fakeCloudFilesAPI{}, CloudFilesSettings{
		MaxFileSizeMB:  1,
		FileExtensions: []string{".pdf"},
	}, &oauth2.Token{}, nil, "tenant-a")

	if c.acceptFile(CloudFile{Name: "a.pdf", SizeBytes: 500}) != true {
		t.Error("expected small .pdf to be accepted")
	}
	if c.acceptFile(CloudFile{Name: "a.txt", SizeBytes: 500}) != false {
		t.Error("expected non-allowlisted extension to be rejected")
	}
	if c.acceptFile(CloudFile{Name: "a.pdf", SizeBytes: 2 * 1024 * 1024}) != false {
		t.Error("expected oversized file to be rejected")
	}
}

func TestCloudFilesConnector_Sync_UsesNativeHashWhenPresent(t *testing.T) {
	api := &fakeCloudFilesAPI{
		folderItems: map[string]struct {
			files   []CloudFile
			folders []CloudFolder
		}{
			"0": {files: []CloudFile{{ID: "f1", Name: "a.txt", ContentSHA1: "native-hash-value"}}},
		},
		downloads: map[string][]byte{"f1": []byte("content")},
	}
	c := NewCloudFilesConnector(&oauth2.Config{}, api, CloudFilesSettings{}, &oauth2.Token{}, nil, "tenant-a")

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainCloudFiles(t, docs, errs)

	if len(got) != 1 || got[0].ContentHash != "native-hash-value" {
		t.Fatalf("expected native hash to be used as-is, got %+v", got)
	}
}

func TestCloudFilesConnector_Sync_InvokesRetainerWithTenantScope(t *testing.T) {
	api := &fakeCloudFilesAPI{
		folderItems: map[string]struct {
			files   []CloudFile
			folders []CloudFolder
		}{
			"0": {files: []CloudFile{{ID: "f1", Name: "a.txt"}}},
		},
		downloads: map[string][]byte{"f1": []byte("content")},
	}
	retainer := &recordingRetainer{}
	c := NewCloudFilesConnector(&oauth2.Config{}, api, CloudFilesSettings{}, &oauth2.Token{}, retainer, "tenant-a")

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	drainCloudFiles(t, docs, errs)

	if len(retainer.calls) != 1 || retainer.calls[0] != "tenant-a/f1" {
		t.Errorf("retainer calls = %v", retainer.calls)
	}
}
