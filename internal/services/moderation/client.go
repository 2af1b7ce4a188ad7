package moderation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	textErrorReason  = "API error - requires manual review"
	imageErrorReason = "Image moderation API error - requires manual review"

	imageMaxTokens = 500
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client talks to an OpenAI-compatible chat-completions endpoint for text and
// image policy checks. It never returns an error: any transport or parse
// failure degrades to ErrorVerdict so a moderation outage queues submissions
// for manual review instead of failing them.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		log:        log,
	}
}

func (c *Client) CheckText(ctx context.Context, title, description, categoryLabel string, price *string) Verdict {
	priceLine := "Not specified"
	if price != nil && strings.TrimSpace(*price) != "" {
		priceLine = fmt.Sprintf("%s PLN", strings.TrimSpace(*price))
	}

	prompt := fmt.Sprintf(`You are a content moderation AI for a classified ads platform. Analyze the following listing and determine if it should be approved or flagged for manual review.

Title: %s
Description: %s
Category: %s
Price: %s

Check for:
1. Inappropriate or offensive content
2. Spam or duplicate content indicators
3. Scam indicators (unrealistic prices, urgent language, poor grammar)
4. Prohibited items (weapons, drugs, adult content, etc.)
5. Misleading information
6. Category mismatch

Respond with JSON in this format:
{
  "approved": boolean,
  "confidence": number (0-1),
  "reasons": ["reason1", "reason2"],
  "category": "content_quality" | "spam" | "scam" | "prohibited" | "appropriate"
}`, title, description, categoryLabel, priceLine)

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are an expert content moderator for a classified ads platform. Always respond with valid JSON.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	verdict, err := c.complete(ctx, req)
	if err != nil {
		c.log.Warn("text moderation call failed", zap.Error(err))
		return ErrorVerdict(textErrorReason)
	}
	return verdict
}

func (c *Client) CheckImage(ctx context.Context, image []byte) Verdict {
	if len(image) == 0 {
		return ErrorVerdict(imageErrorReason)
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are an image moderation AI for a classified ads platform. Check if the image is appropriate for a general audience marketplace.",
			},
			{
				Role: "user",
				Content: []contentPart{
					{
						Type: "text",
						Text: `Analyze this image for a classified ads platform. Check for inappropriate content, adult material, violence, or any content that would be unsuitable for a general marketplace. Respond with JSON: {"approved": boolean, "confidence": number, "reasons": ["reason1"], "category": "appropriate|inappropriate"}`,
					},
					{
						Type:     "image_url",
						ImageURL: &imageURL{URL: "data:image/jpeg;base64," + encoded},
					},
				},
			},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		MaxTokens:      imageMaxTokens,
	}

	verdict, err := c.complete(ctx, req)
	if err != nil {
		c.log.Warn("image moderation call failed", zap.Error(err))
		return ErrorVerdict(imageErrorReason)
	}
	return verdict
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, payload chatRequest) (Verdict, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("send chat request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Verdict{}, fmt.Errorf("chat request status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Verdict{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Verdict{}, fmt.Errorf("chat response has no choices")
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &raw); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict json: %w", err)
	}

	return normalizeVerdict(raw), nil
}
