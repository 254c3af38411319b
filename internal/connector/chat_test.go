package connector

import (
	"context"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

type fakeChatAPI struct {
	channels []ChatChannel
	messages map[string][]ChatMessage // channelID -> messages
	replies  map[string][]ChatMessage // "channelID|threadTS" -> replies
	names    map[string]string
}

func (f *fakeChatAPI) ListChannels(ctx context.Context, token *oauth2.Token) ([]ChatChannel, error) {
	return f.channels, nil
}

func (f *fakeChatAPI) ListMessages(ctx context.Context, token *oauth2.Token, channelID, cursor string, oldest time.Time) ([]ChatMessage, string, error) {
	return f.messages[channelID], "", nil
}

func (f *fakeChatAPI) ListThreadReplies(ctx context.Context, token *oauth2.Token, channelID, threadTS string) ([]ChatMessage, error) {
	return f.replies[channelID+"|"+threadTS], nil
}

func (f *fakeChatAPI) UserDisplayName(ctx context.Context, token *oauth2.Token, userID string) (string, error) {
	return f.names[userID], nil
}

func drainChat(t *testing.T, docs <-chan Document, errs <-chan error) []Document {
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

func TestChatConnector_Sync_ResolvesmentionsAndSkipsBotMessages(t *testing.T) {
	api := &fakeChatAPI{
		channels: []ChatChannel{{ID: "C1", Name: "general"}},
		messages: map[string][]ChatMessage{
			"C1": {
				{TS: "1.0", UserID: "U1", Text: "hey <@U2> check this out"},
				{TS: "2.0", UserID: "U3", Subtype: "bot_message", Text: "automated note"},
			},
		},
		names: map[string]string{"U1": "Alice", "U2": "Bob"},
	}
	c := NewChatConnector(&oauth2.Config{}, api, ChatSettings{}, &oauth2.Token{AccessToken: "t"})

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainChat(t, docs, errs)

	if len(got) != 1 {
		t.Fatalf("got %d documents, want 1 (bot message should be skipped)", len(got))
	}
	if got[0].Author != "Alice" {
		t.Errorf("Author = %q, want Alice", got[0].Author)
	}
	if got[0].Content != "hey @Bob check this out" {
		t.Errorf("Content = %q", got[0].Content)
	}
}

func TestChatConnector_Sync_ExpandsThreadReplies(t *testing.T) {
	api := &fakeChatAPI{
		channels: []ChatChannel{{ID: "C1", Name: "general"}},
		messages: map[string][]ChatMessage{
			"C1": {{TS: "1.0", UserID: "U1", Text: "parent", ReplyCount: 1}},
		},
		replies: map[string][]ChatMessage{
			"C1|1.0": {{TS: "1.1", UserID: "U1", Text: "a reply"}},
		},
		names: map[string]string{"U1": "Alice"},
	}
	c := NewChatConnector(&oauth2.Config{}, api, ChatSettings{IncludeThreads: true}, &oauth2.Token{AccessToken: "t"})

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainChat(t, docs, errs)

	if len(got) != 2 {
		t.Fatalf("got %d documents, want 2 (parent + reply)", len(got))
	}
	if got[1].Metadata["is_reply"] != "true" {
		t.Errorf("expected second document to be flagged as a reply, got %+v", got[1].Metadata)
	}
}

func TestChatConnector_Sync_FiltersConfiguredChannels(t *testing.T) {
	api := &fakeChatAPI{
		channels: []ChatChannel{{ID: "C1", Name: "general"}, {ID: "C2", Name: "random"}},
		messages: map[string][]ChatMessage{
			"C1": {{TS: "1.0", UserID: "U1", Text: "in general"}},
			"C2": {{TS: "1.0", UserID: "U1", Text: "in random"}},
		},
	}
	c := NewChatConnector(&oauth2.Config{}, api, ChatSettings{ChannelIDs: []string{"C1"}}, &oauth2.Token{AccessToken: "t"})

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainChat(t, docs, errs)

	if len(got) != 1 || got[0].Metadata["channel_id"] != "C1" {
		t.Fatalf("expected only C1 messages, got %+v", got)
	}
}

func TestChatConnector_UserCache_AvoidsRepeatLookups(t *testing.T) {
	lookups := 0
	api := &countingChatAPI{fakeChatAPI: fakeChatAPI{
		channels: []ChatChannel{{ID: "C1", Name: "general"}},
		messages: map[string][]ChatMessage{
			"C1": {
				{TS: "1.0", UserID: "U1", Text: "one"},
				{TS: "2.0", UserID: "U1", Text: "two"},
			},
		},
		names: map[string]string{"U1": "Alice"},
	}, count: &lookups}

	c := NewChatConnector(&oauth2.Config{}, api, ChatSettings{}, &oauth2.Token{AccessToken: "t"})
	docs, errs := c.Sync(context.Background(), "", func(string) {})
	drainChat(t, docs, errs)

	if lookups != 1 {
		t.Errorf("UserDisplayName called %d times, want 1 (cache should dedupe)", lookups)
	}
}

type countingChatAPI struct {
	fakeChatAPI
	count *int
}

func (c *countingChatAPI) UserDisplayName(ctx context.Context, token *oauth2.Token, userID string) (string, error) {
	*c.count++
	return c.fakeChatAPI.UserDisplayName(ctx, token, userID)
}
