package teams

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPost(t *testing.T) {
	var received Card
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	card := RunCard(5, 1, "https://ci.example.com/runs/42")
	if err := n.Post(context.Background(), card); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if received.Type != "MessageCard" {
		t.Errorf("@type = %q", received.Type)
	}
	if received.ThemeColor != colorFailure {
		t.Errorf("themeColor = %q, want failure color for failed run", received.ThemeColor)
	}
	if !strings.Contains(received.Text, "5 diagram(s) converted") {
		t.Errorf("text = %q", received.Text)
	}
	if len(received.Actions) != 1 || received.Actions[0].Targets[0].URI != "https://ci.example.com/runs/42" {
		t.Errorf("actions = %+v", received.Actions)
	}
}

func TestPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	err := n.Post(context.Background(), RunCard(1, 0, ""))
	if err == nil {
		t.Fatal("Post succeeded despite HTTP 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status included", err)
	}
}

func TestPost_DisabledIsNoOp(t *testing.T) {
	n := NewNotifier("")
	if n.Enabled() {
		t.Fatal("empty webhook reported as enabled")
	}
	if err := n.Post(context.Background(), RunCard(0, 0, "")); err != nil {
		t.Fatalf("disabled Post: %v", err)
	}
}

func TestPublishCard(t *testing.T) {
	card := PublishCard("CHANGELOG.csv")
	if card.ThemeColor != colorSuccess {
		t.Errorf("themeColor = %q", card.ThemeColor)
	}
	if !strings.Contains(card.Text, "CHANGELOG.csv") {
		t.Errorf("text = %q", card.Text)
	}
}

func TestRunCard_SuccessColor(t *testing.T) {
	card := RunCard(3, 0, "")
	if card.ThemeColor != colorSuccess {
		t.Errorf("themeColor = %q, want success color", card.ThemeColor)
	}
	if len(card.Actions) != 0 {
		t.Errorf("actions = %+v, want none without a details URL", card.Actions)
	}
}
