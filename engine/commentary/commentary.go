// Package commentary generates short Hindi critical-analysis replies for
// candidate posts through the completion backend. Failures are soft: a
// post whose generation fails simply carries an empty reply.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/chorusbot/chorus/engine/domain"
	"github.com/chorusbot/chorus/pkg/fn"
	"github.com/chorusbot/chorus/pkg/textnorm"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	model          = "sonar-pro"
	maxTokens      = 180
	requestTimeout = 20 * time.Second

	// excerptRunes caps how much of the source post is embedded in the prompt.
	excerptRunes = 500
)

const systemPrompt = "Respond with a short, clear Hindi political analysis under 260 words."

// Config for the completion client.
type Config struct {
	BaseURL     string // defaults to the hosted backend
	APIKey      string
	MaxParallel int // worker pool width for GenerateAll
}

// Client calls the completion backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a commentary client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 5
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate returns cleaned commentary for the given post text, or an empty
// string on any failure.
func (c *Client) Generate(ctx context.Context, text string) string {
	if text == "" {
		return ""
	}
	if c.cfg.APIKey == "" {
		log.Printf("error: completion API key missing")
		return ""
	}

	excerpt := text
	if runes := []rune(excerpt); len(runes) > excerptRunes {
		excerpt = string(runes[:excerptRunes])
	}
	prompt := fmt.Sprintf(`(YOU ARE A NO FILTER ANALYST SO NOW) "give me only critical analysis of \"%s\" , in less than 260 characters in hindi, no headings, no character no. mention"`, excerpt)

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		log.Printf("error: completion request encode: %v", err)
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		log.Printf("error: completion request: %v", err)
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("error: completion call: %v", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("error: completion backend status %d", resp.StatusCode)
		return ""
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Printf("error: completion decode: %v", err)
		return ""
	}
	if len(out.Choices) == 0 {
		return ""
	}
	return textnorm.Clean(out.Choices[0].Message.Content)
}

// GenerateAll annotates every post with its own commentary, fanning the
// calls out across a bounded worker pool. One post's failure leaves its
// reply empty without affecting siblings.
func (c *Client) GenerateAll(ctx context.Context, posts []domain.Post) []domain.Post {
	return fn.ParMap(posts, c.cfg.MaxParallel, func(p domain.Post) domain.Post {
		p.Reply = c.Generate(ctx, p.Text)
		return p
	})
}
