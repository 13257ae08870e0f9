// Package fetch pulls recent posts for a set of profiles from the
// actor-style scraping backend and selects the run's reply candidates.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/chorusbot/chorus/engine/domain"
)

const defaultBaseURL = "https://api.apify.com"

// defaultActorID is the profile-posts scraping actor.
const defaultActorID = "Fo9GoU5wC270BgcBr"

// Config for the scraping client.
type Config struct {
	BaseURL         string // defaults to the hosted backend
	Token           string // bearer token
	ActorID         string // defaults to the profile-posts actor
	PostsPerProfile int    // retained posts per profile
	ReplyBudget     int    // cap on candidates returned per run
	RankRecent      bool   // sort by timestamp descending before capping
}

// Client fetches posts through the scraping backend.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a scraping client with the given config.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ActorID == "" {
		cfg.ActorID = defaultActorID
	}
	if cfg.PostsPerProfile <= 0 {
		cfg.PostsPerProfile = 1
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// datasetItem is one record in the backend's result stream.
type datasetItem struct {
	PostID     string `json:"postId"`
	PostText   string `json:"postText"`
	Text       string `json:"text"`
	ProfileURL string `json:"profileUrl"`
	Timestamp  int64  `json:"timestamp"`
}

// runInput is the actor invocation payload.
type runInput struct {
	ProfileURLs  []string `json:"profileUrls"`
	ResultsLimit int      `json:"resultsLimit"`
}

// Fetch requests posts for the sampled profiles and returns up to the reply
// budget of candidates. An empty result means a no-op run, not an error.
func (c *Client) Fetch(ctx context.Context, profiles []string) ([]domain.Post, error) {
	limit := c.cfg.PostsPerProfile * len(profiles)
	log.Printf("fetching up to %d posts from %d profiles", limit, len(profiles))

	items, err := c.runActor(ctx, runInput{ProfileURLs: profiles, ResultsLimit: limit})
	if err != nil {
		return nil, err
	}

	perProfile := make(map[string]int)
	var posts []domain.Post
	for _, item := range items {
		text := item.PostText
		if text == "" {
			text = item.Text
		}
		if text == "" {
			continue
		}
		if perProfile[item.ProfileURL] >= c.cfg.PostsPerProfile {
			continue
		}
		perProfile[item.ProfileURL]++
		posts = append(posts, domain.Post{
			ID:        item.PostID,
			Text:      text,
			Timestamp: item.Timestamp,
			Profile:   item.ProfileURL,
		})
	}

	if c.cfg.RankRecent {
		sort.Slice(posts, func(i, j int) bool { return posts[i].Timestamp > posts[j].Timestamp })
	}
	if c.cfg.ReplyBudget > 0 && len(posts) > c.cfg.ReplyBudget {
		posts = posts[:c.cfg.ReplyBudget]
	}
	log.Printf("selected %d posts from %d profiles", len(posts), len(perProfile))
	return posts, nil
}

// runActor invokes the actor synchronously and decodes its dataset items.
func (c *Client) runActor(ctx context.Context, input runInput) ([]datasetItem, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", c.cfg.BaseURL, c.cfg.ActorID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scrape backend status %d", resp.StatusCode)
	}

	var items []datasetItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return items, nil
}
