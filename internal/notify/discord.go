package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DiscordSink posts submission and publication announcements to Discord
// webhooks. Either URL may be empty to disable that announcement.
type DiscordSink struct {
	SubmissionsWebhook string
	PagesWebhook       string
	PublicBaseURL      string
	Client             *http.Client
}

func NewDiscordSink(submissionsWebhook, pagesWebhook, publicBaseURL string) *DiscordSink {
	return &DiscordSink{
		SubmissionsWebhook: submissionsWebhook,
		PagesWebhook:       pagesWebhook,
		PublicBaseURL:      strings.TrimRight(publicBaseURL, "/"),
		Client:             &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Accepts(eventType string) bool {
	switch eventType {
	case EventSubmissionCreated:
		return s.SubmissionsWebhook != ""
	case EventPagePublished:
		return s.PagesWebhook != ""
	}
	return false
}

func (s *DiscordSink) Deliver(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventSubmissionCreated:
		var p SubmissionCreated
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return s.postSubmission(ctx, p)
	case EventPagePublished:
		var p PagePublished
		if err := ev.Decode(&p); err != nil {
			return err
		}
		return s.postPublished(ctx, p)
	}
	return nil
}

// postSubmission sends the announcement with the proposed content attached
// as a markdown file, so moderators can read it in the channel.
func (s *DiscordSink) postSubmission(ctx context.Context, p SubmissionCreated) error {
	heading := "New wiki submission"
	filename := p.Slug + ".md"
	if p.IsEdit {
		heading = "Wiki edit suggestion"
		filename = p.Slug + "-edit.md"
	}
	message := fmt.Sprintf("%s: **%s** by **%s**\nReview: %s/wiki/moderator\nPage: %s/wiki/%s",
		heading, p.Title, p.Author, s.PublicBaseURL, s.PublicBaseURL, p.Slug)
	markdown := fmt.Sprintf("# %s\n\nAuthor: %s\nSlug: %s\n\n---\n\n%s", p.Title, p.Author, p.Slug, p.Content)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("content", message); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(fw, markdown); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return s.post(ctx, s.SubmissionsWebhook, mw.FormDataContentType(), &body)
}

func (s *DiscordSink) postPublished(ctx context.Context, p PagePublished) error {
	payload, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("New World Archives page: **%s**\nRead: %s/wiki/%s", p.Title, s.PublicBaseURL, p.Slug),
	})
	if err != nil {
		return err
	}
	return s.post(ctx, s.PagesWebhook, "application/json", bytes.NewReader(payload))
}

func (s *DiscordSink) post(ctx context.Context, url, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
