package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteRequestShape(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"# Page\n\ntext"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "vision-1"})
	defer client.Close()

	img := Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}
	got, err := client.Complete(context.Background(), "convert this page", img, 1234)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "# Page\n\ntext" {
		t.Errorf("content = %q", got)
	}

	if captured.Model != "vision-1" {
		t.Errorf("model = %q", captured.Model)
	}
	if captured.MaxTokens != 1234 {
		t.Errorf("max_tokens = %d", captured.MaxTokens)
	}
	if len(captured.Messages) != 1 || len(captured.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %+v", captured.Messages)
	}
	parts := captured.Messages[0].Content
	if parts[0].Type != "text" || parts[0].Text != "convert this page" {
		t.Errorf("text part = %+v", parts[0])
	}
	if parts[1].Type != "image_url" || parts[1].ImageURL == nil {
		t.Fatalf("image part = %+v", parts[1])
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image URL = %q, want data URI", parts[1].ImageURL.URL)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "500"},
		{"rate limited", http.StatusTooManyRequests, "slow down", "429"},
		{"empty choices", http.StatusOK, `{"choices":[]}`, "no choices"},
		{"malformed body", http.StatusOK, `{not json`, "decoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL})
			defer client.Close()

			_, err := client.Complete(context.Background(), "p", Image{MIMEType: "image/png"}, 10)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestCompleteContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Complete(ctx, "p", Image{MIMEType: "image/png"}, 10); err == nil {
		t.Fatal("expected error on canceled context")
	}
}
