package connector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// EmailConnector pages through a mailbox's messages, producing one
// Document per message with quoted replies and forwarded headers
// stripped. Grounded on the source platform's Gmail connector, adapted
// to a generic OAuth2 mail provider so the same code serves any mail
// API with a comparable label/history model.
type EmailConnector struct {
	oauth    *oauth2.Config
	creds    emailCredentials
	api      EmailAPI
	settings EmailSettings
}

// EmailSettings configures which labels/folders are synced.
type EmailSettings struct {
	Labels          []string `json:"labels"`
	MaxMessagesPage int      `json:"maxMessagesPage"`
}

type emailCredentials struct {
	Token *oauth2.Token `json:"token"`
}

// EmailMessage is the provider-shape message EmailAPI returns; fields
// mirror what a REST mail API provides before Go-side cleanup.
type EmailMessage struct {
	ID          string
	ThreadID    string
	Label       string
	Subject     string
	From        string
	BodyText    string
	HistoryID   string
	InternalTS  time.Time
}

// EmailAPI abstracts the provider's REST surface so EmailConnector can
// be tested without live credentials.
type EmailAPI interface {
	ListMessages(ctx context.Context, token *oauth2.Token, label string, pageToken string) (msgs []EmailMessage, nextPageToken string, err error)
	ListMessagesSinceHistory(ctx context.Context, token *oauth2.Token, historyID string) ([]EmailMessage, string, error)
}

// NewEmailConnector creates an EmailConnector.
func NewEmailConnector(oauthCfg *oauth2.Config, api EmailAPI, settings EmailSettings, rawCreds []byte) *EmailConnector {
	c := &EmailConnector{oauth: oauthCfg, api: api, settings: settings}
	if len(rawCreds) > 0 {
		_ = json.Unmarshal(rawCreds, &c.creds)
	}
	if settings.MaxMessagesPage <= 0 {
		c.settings.MaxMessagesPage = 100
	}
	return c
}

var _ Connector = (*EmailConnector)(nil)

func (c *EmailConnector) AuthURL(redirect, state string) (string, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

func (c *EmailConnector) ExchangeCode(ctx context.Context, code, redirect string) ([]byte, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("connector.EmailConnector.ExchangeCode: %w", err)
	}
	return json.Marshal(emailCredentials{Token: token})
}

func (c *EmailConnector) Connect(ctx context.Context) error {
	if c.creds.Token == nil {
		return fmt.Errorf("connector.EmailConnector.Connect: no stored credentials")
	}
	ts := c.oauth.TokenSource(ctx, c.creds.Token)
	refreshed, err := ts.Token()
	if err != nil {
		return fmt.Errorf("connector.EmailConnector.Connect: refresh: %w", err)
	}
	c.creds.Token = refreshed
	return nil
}

func (c *EmailConnector) Test(ctx context.Context) bool {
	if c.creds.Token == nil {
		return false
	}
	_, _, err := c.api.ListMessages(ctx, c.creds.Token, "INBOX", "")
	return err == nil
}

// Sync pages through each configured label, or, when since is a
// non-empty history cursor from a prior call, consumes push-style
// incremental updates via ListMessagesSinceHistory instead of a full
// label page walk. onCursor fires once, just before docs closes, with
// the cursor to persist for the next call.
func (c *EmailConnector) Sync(ctx context.Context, since string, onCursor func(string)) (<-chan Document, <-chan error) {
	docs := make(chan Document, 32)
	errs := make(chan error, 1)
	var lastHistoryID string

	go func() {
		defer close(docs)
		defer close(errs)
		defer func() { onCursor(lastHistoryID) }()

		if since != "" {
			msgs, historyID, err := c.api.ListMessagesSinceHistory(ctx, c.creds.Token, since)
			if err != nil {
				errs <- fmt.Errorf("connector.EmailConnector.Sync: history sync: %w", err)
				return
			}
			lastHistoryID = historyID
			for _, m := range msgs {
				docs <- messageToDocument(m)
			}
			return
		}

		labels := c.settings.Labels
		if len(labels) == 0 {
			labels = []string{"INBOX"}
		}

		for _, label := range labels {
			pageToken := ""
			for {
				var msgs []EmailMessage
				var next string
				err := withBackoff(ctx, func() (time.Duration, bool, error) {
					var e error
					msgs, next, e = c.api.ListMessages(ctx, c.creds.Token, label, pageToken)
					return 0, e != nil, e
				})
				if err != nil {
					errs <- fmt.Errorf("connector.EmailConnector.Sync: label %s: %w", label, err)
					return
				}
				for _, m := range msgs {
					m.Label = label
					select {
					case docs <- messageToDocument(m):
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
					if m.HistoryID != "" {
						lastHistoryID = m.HistoryID
					}
				}
				if next == "" {
					break
				}
				pageToken = next
			}
		}
	}()

	return docs, errs
}

func (c *EmailConnector) Fetch(ctx context.Context, externalID string) (*Document, error) {
	return nil, fmt.Errorf("connector.EmailConnector.Fetch: rehydration by id not supported by this provider API")
}

func (c *EmailConnector) Disconnect(ctx context.Context) error {
	c.creds = emailCredentials{}
	return nil
}

func messageToDocument(m EmailMessage) Document {
	return Document{
		ExternalID:      m.ID,
		Title:           m.Subject,
		Content:         cleanEmailBody(m.BodyText),
		Author:          extractNameFromEmail(m.From),
		SourceCreatedAt: m.InternalTS,
		SourceUpdatedAt: m.InternalTS,
		Metadata:        map[string]string{"thread_id": m.ThreadID, "label": m.Label},
	}
}

var onWroteRe = regexp.MustCompile(`^On .+ wrote:$`)

// cleanEmailBody strips quoted replies ('>' prefixed lines) and drops
// everything from the first "On ... wrote:" line or forwarded-message
// marker onward, matching the source platform's email cleanup rule.
func cleanEmailBody(body string) string {
	scanner := bufio.NewScanner(strings.NewReader(body))
	var out []string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		if onWroteRe.MatchString(trimmed) {
			break
		}
		if strings.Contains(line, "---------- Forwarded message ----------") {
			break
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var nameFromEmailRe = regexp.MustCompile(`^"?([^"<]+)"?\s*<`)

// extractNameFromEmail pulls a display name out of a "Name <addr>" header.
func extractNameFromEmail(header string) string {
	if m := nameFromEmailRe.FindStringSubmatch(header); m != nil {
		return strings.TrimSpace(m[1])
	}
	if idx := strings.Index(header, "@"); idx > 0 {
		return header[:idx]
	}
	return header
}
