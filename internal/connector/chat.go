package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/oauth2"
)

// ChatConnector syncs channel and thread messages from a Slack-shaped
// chat API. Grounded on the source platform's Slack connector: channel
// listing, paginated history per channel, thread-reply expansion, and
// <@USERID> mention resolution via a per-run cache.
type ChatConnector struct {
	oauth    *oauth2.Config
	creds    emailCredentials // same {token} shape; reused rather than duplicated
	api      ChatAPI
	settings ChatSettings

	userCache map[string]string
}

// ChatSettings configures which channels are synced.
type ChatSettings struct {
	ChannelIDs            []string `json:"channelIds"` // empty = all channels the bot is a member of
	IncludeThreads        bool     `json:"includeThreads"`
	MaxMessagesPerChannel int      `json:"maxMessagesPerChannel"`
}

// ChatChannel is a channel the connector can sync.
type ChatChannel struct {
	ID   string
	Name string
}

// ChatMessage is the provider-shape message before mention resolution.
type ChatMessage struct {
	TS         string
	ThreadTS   string
	UserID     string
	Text       string
	Subtype    string
	ReplyCount int
}

// ChatAPI abstracts the provider surface for testability.
type ChatAPI interface {
	ListChannels(ctx context.Context, token *oauth2.Token) ([]ChatChannel, error)
	ListMessages(ctx context.Context, token *oauth2.Token, channelID, cursor string, oldest time.Time) (msgs []ChatMessage, nextCursor string, err error)
	ListThreadReplies(ctx context.Context, token *oauth2.Token, channelID, threadTS string) ([]ChatMessage, error)
	UserDisplayName(ctx context.Context, token *oauth2.Token, userID string) (string, error)
}

// NewChatConnector creates a ChatConnector.
func NewChatConnector(oauthCfg *oauth2.Config, api ChatAPI, settings ChatSettings, token *oauth2.Token) *ChatConnector {
	if settings.MaxMessagesPerChannel <= 0 {
		settings.MaxMessagesPerChannel = 1000
	}
	c := &ChatConnector{oauth: oauthCfg, api: api, settings: settings, userCache: map[string]string{}}
	c.creds.Token = token
	return c
}

var _ Connector = (*ChatConnector)(nil)

func (c *ChatConnector) AuthURL(redirect, state string) (string, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	return cfg.AuthCodeURL(state), nil
}

func (c *ChatConnector) ExchangeCode(ctx context.Context, code, redirect string) ([]byte, error) {
	cfg := *c.oauth
	cfg.RedirectURL = redirect
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("connector.ChatConnector.ExchangeCode: %w", err)
	}
	return marshalToken(token)
}

func (c *ChatConnector) Connect(ctx context.Context) error {
	if c.creds.Token == nil {
		return fmt.Errorf("connector.ChatConnector.Connect: no stored credentials")
	}
	if _, err := c.api.ListChannels(ctx, c.creds.Token); err != nil {
		return fmt.Errorf("connector.ChatConnector.Connect: auth test failed: %w", err)
	}
	return nil
}

func (c *ChatConnector) Test(ctx context.Context) bool {
	if c.creds.Token == nil {
		return false
	}
	_, err := c.api.ListChannels(ctx, c.creds.Token)
	return err == nil
}

// Sync walks every configured (or every joined) channel, paging
// history and expanding threads, resolving @mentions via a cache that
// lives only for this call so it never leaks across tenants.
func (c *ChatConnector) Sync(ctx context.Context, since string, onCursor func(string)) (<-chan Document, <-chan error) {
	docs := make(chan Document, 32)
	errs := make(chan error, 1)
	c.userCache = map[string]string{}

	go func() {
		defer close(docs)
		defer close(errs)
		defer func() { onCursor(time.Now().UTC().Format(time.RFC3339)) }()

		var oldest time.Time
		if since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				oldest = t
			}
		}

		channels, err := c.api.ListChannels(ctx, c.creds.Token)
		if err != nil {
			errs <- fmt.Errorf("connector.ChatConnector.Sync: list channels: %w", err)
			return
		}
		if len(c.settings.ChannelIDs) > 0 {
			channels = filterChannels(channels, c.settings.ChannelIDs)
		}

		for _, ch := range channels {
			if err := c.syncChannel(ctx, ch, oldest, docs); err != nil {
				errs <- fmt.Errorf("connector.ChatConnector.Sync: channel %s: %w", ch.Name, err)
				return
			}
		}
	}()

	return docs, errs
}

func (c *ChatConnector) syncChannel(ctx context.Context, ch ChatChannel, oldest time.Time, docs chan<- Document) error {
	cursor := ""
	count := 0

	for count < c.settings.MaxMessagesPerChannel {
		var msgs []ChatMessage
		var next string
		err := withBackoff(ctx, func() (time.Duration, bool, error) {
			var e error
			msgs, next, e = c.api.ListMessages(ctx, c.creds.Token, ch.ID, cursor, oldest)
			return 0, e != nil, e
		})
		if err != nil {
			return err
		}

		for _, m := range msgs {
			if doc, ok := c.messageToDocument(ctx, m, ch, false); ok {
				select {
				case docs <- doc:
				case <-ctx.Done():
					return ctx.Err()
				}
				count++
			}

			if c.settings.IncludeThreads && m.ReplyCount > 0 {
				replies, err := c.api.ListThreadReplies(ctx, c.creds.Token, ch.ID, m.TS)
				if err != nil {
					continue
				}
				for _, r := range replies {
					if doc, ok := c.messageToDocument(ctx, r, ch, true); ok {
						select {
						case docs <- doc:
						case <-ctx.Done():
							return ctx.Err()
						}
						count++
					}
				}
			}
		}

		if next == "" || count >= c.settings.MaxMessagesPerChannel {
			break
		}
		cursor = next
	}
	return nil
}

var skipSubtypes = map[string]bool{"bot_message": true, "channel_join": true, "channel_leave": true}

func (c *ChatConnector) messageToDocument(ctx context.Context, m ChatMessage, ch ChatChannel, isReply bool) (Document, bool) {
	if skipSubtypes[m.Subtype] {
		return Document{}, false
	}

	author := c.resolveUserName(ctx, m.UserID)
	text := c.resolveMentions(ctx, m.Text)

	title := text
	if len(title) > 50 {
		title = title[:50] + "..."
	}

	return Document{
		ExternalID: fmt.Sprintf("%s_%s", ch.ID, m.TS),
		Title:      "chat: " + title,
		Content:    text,
		Author:     author,
		Metadata: map[string]string{
			"channel_id":   ch.ID,
			"channel_name": ch.Name,
			"thread_ts":    m.ThreadTS,
			"is_reply":     fmt.Sprintf("%v", isReply),
		},
	}, true
}

func (c *ChatConnector) resolveUserName(ctx context.Context, userID string) string {
	if userID == "" {
		return "Unknown"
	}
	if name, ok := c.userCache[userID]; ok {
		return name
	}
	name, err := c.api.UserDisplayName(ctx, c.creds.Token, userID)
	if err != nil || name == "" {
		name = userID
	}
	c.userCache[userID] = name
	return name
}

var mentionRe = regexp.MustCompile(`<@([A-Za-z0-9]+)>`)

func (c *ChatConnector) resolveMentions(ctx context.Context, text string) string {
	return mentionRe.ReplaceAllStringFunc(text, func(match string) string {
		userID := mentionRe.FindStringSubmatch(match)[1]
		return "@" + c.resolveUserName(ctx, userID)
	})
}

func (c *ChatConnector) Fetch(ctx context.Context, externalID string) (*Document, error) {
	return nil, fmt.Errorf("connector.ChatConnector.Fetch: rehydration by id not supported; channel_id and ts are required")
}

func (c *ChatConnector) Disconnect(ctx context.Context) error {
	c.creds = emailCredentials{}
	c.userCache = nil
	return nil
}

func filterChannels(channels []ChatChannel, allow []string) []ChatChannel {
	allowed := make(map[string]bool, len(allow))
	for _, id := range allow {
		allowed[id] = true
	}
	var out []ChatChannel
	for _, ch := range channels {
		if allowed[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

func marshalToken(token *oauth2.Token) ([]byte, error) {
	return json.Marshal(emailCredentials{Token: token})
}
