// Package vision is a minimal client for OpenAI-compatible chat-completion
// endpoints that accept image input. It covers exactly what the OCR pipeline
// needs: one text prompt plus one embedded image in, one text completion out.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures a single client instance. Each API key gets its own
// Client; the pipeline distributes requests across them.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds one request end to end. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is generous because vision models can take a while on
// dense pages, but bounded so a stalled connection surfaces as a page failure.
const DefaultTimeout = 120 * time.Second

// Image is a transport-ready encoded image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// dataURI renders the image as an inline data URI for the image_url part.
func (i Image) dataURI() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Client issues vision requests against one credential. It is safe for
// concurrent use; the caller is responsible for bounding concurrency.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client bound to one API key.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Close releases pooled connections held by this client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt+image request and returns the model's text
// completion. Failed requests are not retried here; the pipeline treats
// every error as a per-page failure.
func (c *Client) Complete(ctx context.Context, prompt string, img Image, maxTokens int) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: img.dataURI()}},
				},
			},
		},
		MaxTokens: maxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := c.cfg.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("reading vision response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decoding vision response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision response")
	}

	return resp.Choices[0].Message.Content, nil
}
