package connector

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

type fakeEmailAPI struct {
	pages         map[string][]EmailMessage // label -> messages for page ""
	historyMsgs   []EmailMessage
	historyCursor string
	listErr       error
}

func (f *fakeEmailAPI) ListMessages(ctx context.Context, token *oauth2.Token, label, pageToken string) ([]EmailMessage, string, error) {
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	return f.pages[label], "", nil
}

func (f *fakeEmailAPI) ListMessagesSinceHistory(ctx context.Context, token *oauth2.Token, historyID string) ([]EmailMessage, string, error) {
	return f.historyMsgs, f.historyCursor, nil
}

func drainEmail(t *testing.T, docs <-chan Document, errs <-chan error) []Document {
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

func TestEmailConnector_Sync_FullPageWalk(t *testing.T) {
	api := &fakeEmailAPI{pages: map[string][]EmailMessage{
		"INBOX": {
			{ID: "m1", Subject: "hello", From: "Alice <alice@example.com>", BodyText: "hi there"},
		},
	}}
	c := NewEmailConnector(&oauth2.Config{}, api, EmailSettings{Labels: []string{"INBOX"}}, nil)
	c.creds.Token = &oauth2.Token{AccessToken: "t"}

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	got := drainEmail(t, docs, errs)

	if len(got) != 1 {
		t.Fatalf("got %d documents, want 1", len(got))
	}
	if got[0].ExternalID != "m1" || got[0].Title != "hello" || got[0].Author != "Alice" {
		t.Errorf("unexpected document: %+v", got[0])
	}
}

func TestEmailConnector_Sync_HistoryMode(t *testing.T) {
	api := &fakeEmailAPI{
		historyMsgs:   []EmailMessage{{ID: "m2", Subject: "update", From: "bob@example.com"}},
		historyCursor: "999",
	}
	c := NewEmailConnector(&oauth2.Config{}, api, EmailSettings{}, nil)
	c.creds.Token = &oauth2.Token{AccessToken: "t"}

	var cursor string
	docs, errs := c.Sync(context.Background(), "123", func(c string) { cursor = c })
	got := drainEmail(t, docs, errs)

	if len(got) != 1 || got[0].ExternalID != "m2" {
		t.Fatalf("got %+v", got)
	}
	if cursor != "999" {
		t.Errorf("cursor = %q, want %q", cursor, "999")
	}
}

func TestCleanEmailBody_StripsQuotedReplyAndOnWroteMarker(t *testing.T) {
	body := "Thanks for the update!\n\nOn Mon, Jan 1, 2026 at 9:00 AM Alice wrote:\n> original message\n> more quoted text"
	got := cleanEmailBody(body)
	if got != "Thanks for the update!" {
		t.Errorf("cleanEmailBody() = %q", got)
	}
}

func TestCleanEmailBody_StripsForwardedMarker(t *testing.T) {
	body := "fyi\n\n---------- Forwarded message ----------\nFrom: bob@example.com\nold content"
	got := cleanEmailBody(body)
	if got != "fyi" {
		t.Errorf("cleanEmailBody() = %q", got)
	}
}

func TestCleanEmailBody_DropsLeadingQuoteLines(t *testing.T) {
	body := "> quoted line\nreal content"
	got := cleanEmailBody(body)
	if got != "real content" {
		t.Errorf("cleanEmailBody() = %q", got)
	}
}

func TestExtractNameFromEmail(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`"Alice Smith" <alice@example.com>`, "Alice Smith"},
		{"Bob Jones <bob@example.com>", "Bob Jones"},
		{"carol@example.com", "carol"},
	}
	for _, tt := range tests {
		if got := extractNameFromEmail(tt.header); got != tt.want {
			t.Errorf("extractNameFromEmail(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestEmailConnector_Test_NoCredentials(t *testing.T) {
	c := NewEmailConnector(&oauth2.Config{}, &fakeEmailAPI{}, EmailSettings{}, nil)
	if c.Test(context.Background()) {
		t.Error("expected Test() to fail with no stored credentials")
	}
}

func TestEmailConnector_Sync_PropagatesListError(t *testing.T) {
	api := &fakeEmailAPI{listErr: context.DeadlineExceeded}
	c := NewEmailConnector(&oauth2.Config{}, api, EmailSettings{Labels: []string{"INBOX"}}, nil)
	c.creds.Token = &oauth2.Token{AccessToken: "t"}

	docs, errs := c.Sync(context.Background(), "", func(string) {})
	var sawErr bool
	for docs != nil || errs != nil {
		select {
		case _, ok := <-docs:
			if !ok {
				docs = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				sawErr = true
			}
		}
	}
	if !sawErr {
		t.Error("expected sync to propagate the API error")
	}
}
