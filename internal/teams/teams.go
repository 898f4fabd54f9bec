// Package teams posts pipeline notifications to a Microsoft Teams incoming
// webhook using the legacy MessageCard format.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Card is a MessageCard payload. Only the fields the pipeline uses are
// modeled.
type Card struct {
	Type       string   `json:"@type"`
	Context    string   `json:"@context"`
	ThemeColor string   `json:"themeColor"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Actions    []Action `json:"potentialAction,omitempty"`
}

// Action is an OpenUri button on a card.
type Action struct {
	Type    string   `json:"@type"`
	Name    string   `json:"name"`
	Targets []Target `json:"targets"`
}

type Target struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

const (
	colorSuccess = "36a64f"
	colorFailure = "d63333"
)

// Notifier posts cards to one webhook URL.
type Notifier struct {
	WebhookURL string
	HTTP       *http.Client
}

// NewNotifier returns a Notifier for url.
func NewNotifier(url string) *Notifier {
	return &Notifier{
		WebhookURL: url,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.WebhookURL != ""
}

// Post sends card to the webhook. Callers treat failures as non-fatal; a
// missed notification never fails a pipeline run.
func (n *Notifier) Post(ctx context.Context, card Card) error {
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("teams: marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("teams: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("teams: post webhook: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("teams: webhook returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// PublishCard announces a standalone changelog publication.
func PublishCard(remoteName string) Card {
	return Card{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: colorSuccess,
		Title:      "Diagram changelog published",
		Text:       fmt.Sprintf("%s was uploaded to SharePoint.", remoteName),
	}
}

// RunCard builds a run-summary card. converted and failed count diagrams;
// detailsURL links back to the CI run when non-empty.
func RunCard(converted, failed int, detailsURL string) Card {
	color := colorSuccess
	title := "Diagram pipeline succeeded"
	if failed > 0 {
		color = colorFailure
		title = "Diagram pipeline finished with failures"
	}

	card := Card{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: color,
		Title:      title,
		Text:       fmt.Sprintf("%d diagram(s) converted, %d failed.", converted, failed),
	}
	if detailsURL != "" {
		card.Actions = append(card.Actions, Action{
			Type: "OpenUri",
			Name: "View run",
			Targets: []Target{
				{OS: "default", URI: detailsURL},
			},
		})
	}
	return card
}
