package connector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// CloudFilesConnector recursively walks a cloud storage provider's
// folder tree, yielding one Document per file. Grounded on the source
// platform's Box connector: folder exclude-set, extension allowlist,
// max-file-size skip, and native content-hash incremental decisions.
type CloudFilesConnector struct {
	oauth    *oauth2.Config
	creds    emailCredentials
	api      CloudFilesAPI
	settings CloudFilesSettings
	retain   Retainer
	tenantID string
}

// CloudFilesSettings mirrors the Box connector's OPTIONAL_SETTINGS.
type CloudFilesSettings struct {
	RootFolderID   string   `json:"rootFolderId"`
	FolderIDs      []string `json:"folderIds"`
	ExcludeFolders []string `json:"excludeFolders"`
	FileExtensions []string `json:"fileExtensions"` // empty = all
	MaxFileSizeMB  int      `json:"maxFileSizeMb"`
}

// CloudFile is a file entry returned while walking a folder.
type CloudFile struct {
	ID          string
	Name        string
	Path        string
	SizeBytes   int64
	ContentSHA1 string // provider-native hash, e.g. Box's sha1 field
	ModifiedAt  time.Time
}

// CloudFolder is a folder entry returned while walking a folder.
type CloudFolder struct {
	ID   string
	Name string
}

// CloudFilesAPI abstracts the provider's folder-listing and
// file-download surface.
type CloudFilesAPI interface {
	ListFolderItems(ctx context.Context, token *oauth2.Token, folderID string, offset int) (files []CloudFile, folders []CloudFolder, hasMore bool, err error)
	DownloadFile(ctx context.Context, token *oauth2.Token, fileID string) ([]byte, error)
}

// Retainer optionally persists a copy of synced file bytes to
// long-term object storage. A nil Retainer means retention is
// disabled.
type Retainer interface {
	Retain(ctx context.Context, tenantID, externalID string, data []byte) error
}

// NewCloudFilesConnector creates a CloudFilesConnector. retain may be
// nil to disable the optional retention-upload path.
func NewCloudFilesConnector(oauthCfg *oauth2.Config, api CloudFilesAPI, settings CloudFilesSettings, token *oauth2.Token, retain Retainer, tenantID string) *CloudFilesConnector {
	if settings.RootFolderID == "" {
		settings.RootFolderID = "0"
	}
	if settings.MaxFileSizeMB <= 0 {
		settings.MaxFileSizeMB = 50
	}
	c := &CloudFilesConnector{oauth: oauthCfg, api: api, settings: settings, retain: retain, tenantID: tenantID}
	c.creds.Token = token
	return c
}

var _ Connector = (*CloudFilesConnector)(nil)

func (c *CloudFilesConnector) AuthURL(redirect, state string) (string, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (c *CloudFilesConnector) ExchangeCode(ctx context.Context, code, redirect string) ([]byte, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("connector.CloudFilesConnector.ExchangeCode: %w", err)
	}
	return marshalToken(token)
}

func (c *CloudFilesConnector) Connect(ctx context.Context) error {
	if c.creds.Token == nil {
		return fmt.Errorf("connector.CloudFilesConnector.Connect: no stored credentials")
	}
	_, _, _, err := c.api.ListFolderItems(ctx, c.creds.Token, c.settings.RootFolderID, 0)
	if err != nil {
		return fmt.Errorf("connector.CloudFilesConnector.Connect: %w", err)
	}
	return nil
}

func (c *CloudFilesConnector) Test(ctx context.Context) bool {
	if c.creds.Token == nil {
		return false
	}
	_, _, _, err := c.api.ListFolderItems(ctx, c.creds.Token, c.settings.RootFolderID, 0)
	return err == nil
}

// Sync walks the configured folders (or the root folder) recursively.
// since is the RFC3339 timestamp cursor from the previous call; this
// connector does not use it — incremental skip happens per-file via ContentHash
// against the store's recorded content_hash, which the caller performs
// before upserting, so Sync always yields a full folder listing.
func (c *CloudFilesConnector) Sync(ctx context.Context, since string, onCursor func(string)) (<-chan Document, <-chan error) {
	docs := make(chan Document, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)
		defer func() { onCursor(time.Now().UTC().Format(time.RFC3339)) }()

		folders := c.settings.FolderIDs
		if len(folders) == 0 {
			folders = []string{c.settings.RootFolderID}
		}
		exclude := map[string]bool{}
		for _, id := range c.settings.ExcludeFolders {
			exclude[id] = true
		}

		for _, folderID := range folders {
			if exclude[folderID] {
				continue
			}
			if err := c.syncFolder(ctx, folderID, "", exclude, docs); err != nil {
				errs <- fmt.Errorf("connector.CloudFilesConnector.Sync: folder %s: %w", folderID, err)
				return
			}
		}
	}()

	return docs, errs
}

func (c *CloudFilesConnector) syncFolder(ctx context.Context, folderID, currentPath string, exclude map[string]bool, docs chan<- Document) error {
	offset := 0
	for {
		var files []CloudFile
		var folders []CloudFolder
		var hasMore bool
		err := withBackoff(ctx, func() (time.Duration, bool, error) {
			var e error
			files, folders, hasMore, e = c.api.ListFolderItems(ctx, c.creds.Token, folderID, offset)
			return 0, e != nil, e
		})
		if err != nil {
			return err
		}

		for _, f := range files {
			if !c.acceptFile(f) {
				continue
			}
			doc, err := c.fileToDocument(ctx, f, currentPath)
			if err != nil {
				continue
			}
			select {
			case docs <- doc:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, sub := range folders {
			if exclude[sub.ID] {
				continue
			}
			subPath := sub.Name
			if currentPath != "" {
				subPath = currentPath + "/" + sub.Name
			}
			if err := c.syncFolder(ctx, sub.ID, subPath, exclude, docs); err != nil {
				return err
			}
		}

		if !hasMore {
			break
		}
		offset += len(files) + len(folders)
	}
	return nil
}

func (c *CloudFilesConnector) acceptFile(f CloudFile) bool {
	maxBytes := int64(c.settings.MaxFileSizeMB) * 1024 * 1024
	if f.SizeBytes > maxBytes {
		return false
	}
	if len(c.settings.FileExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(f.Name))
	for _, allowed := range c.settings.FileExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

func (c *CloudFilesConnector) fileToDocument(ctx context.Context, f CloudFile, currentPath string) (Document, error) {
	data, err := c.api.DownloadFile(ctx, c.creds.Token, f.ID)
	if err != nil {
		return Document{}, err
	}

	hash := f.ContentSHA1
	if hash == "" {
		sum := sha1.Sum(data)
		hash = hex.EncodeToString(sum[:])
	}

	fullPath := f.Name
	if currentPath != "" {
		fullPath = currentPath + "/" + f.Name
	}

	if c.retain != nil {
		_ = c.retain.Retain(ctx, c.tenantID, f.ID, data) // best-effort, sync proceeds even if retention upload fails
	}

	return Document{
		ExternalID:      f.ID,
		Title:           f.Name,
		RawBytes:        data,
		Extension:       strings.ToLower(path.Ext(f.Name)),
		ContentHash:     hash,
		SourceUpdatedAt: f.ModifiedAt,
		Metadata:        map[string]string{"path": fullPath},
	}, nil
}

func (c *CloudFilesConnector) Fetch(ctx context.Context, externalID string) (*Document, error) {
	data, err := c.api.DownloadFile(ctx, c.creds.Token, externalID)
	if err != nil {
		return nil, fmt.Errorf("connector.CloudFilesConnector.Fetch: %w", err)
	}
	sum := sha1.Sum(data)
	return &Document{
		ExternalID:  externalID,
		RawBytes:    data,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

func (c *CloudFilesConnector) Disconnect(ctx context.Context) error {
	c.creds = emailCredentials{}
	return nil
}
