package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	c := New(cfg)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func itemsJSON(items []map[string]any) string {
	data, _ := json.Marshal(items)
	return string(data)
}

func TestFetch_RanksByRecencyAndCapsToBudget(t *testing.T) {
	var items []map[string]any
	base := time.Now().UnixMilli()
	for i := 0; i < 15; i++ {
		items = append(items, map[string]any{
			"postId":     fmt.Sprintf("p%d", i),
			"postText":   fmt.Sprintf("post %d", i),
			"profileUrl": fmt.Sprintf("https://x.com/user%d", i),
			"timestamp":  base + int64(i),
		})
	}

	c := newTestClient(t, Config{Token: "tok", ReplyBudget: 10, RankRecent: true},
		func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Path, "/run-sync-get-dataset-items") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q", got)
			}
			var input runInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				t.Fatal(err)
			}
			if len(input.ProfileURLs) != 15 || input.ResultsLimit != 15 {
				t.Errorf("input = %d profiles, limit %d", len(input.ProfileURLs), input.ResultsLimit)
			}
			fmt.Fprint(w, itemsJSON(items))
		})

	profiles := make([]string, 15)
	for i := range profiles {
		profiles[i] = fmt.Sprintf("https://x.com/user%d", i)
	}
	posts, err := c.Fetch(context.Background(), profiles)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 10 {
		t.Fatalf("got %d posts, want budget 10", len(posts))
	}
	seen := make(map[string]bool)
	for i, p := range posts {
		if i > 0 && posts[i-1].Timestamp < p.Timestamp {
			t.Errorf("posts not sorted descending at %d", i)
		}
		if seen[p.Profile] {
			t.Errorf("duplicate profile %q", p.Profile)
		}
		seen[p.Profile] = true
	}
	// The ten newest items are p5..p14.
	if posts[0].ID != "p14" || posts[9].ID != "p5" {
		t.Errorf("window = %s..%s, want p14..p5", posts[0].ID, posts[9].ID)
	}
}

func TestFetch_BaseVariantKeepsEncounterOrder(t *testing.T) {
	items := []map[string]any{
		{"postId": "a", "postText": "first", "profileUrl": "u1", "timestamp": int64(1)},
		{"postId": "b", "postText": "second", "profileUrl": "u2", "timestamp": int64(9)},
		{"postId": "c", "postText": "third", "profileUrl": "u3", "timestamp": int64(5)},
	}
	c := newTestClient(t, Config{ReplyBudget: 10, RankRecent: false},
		func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, itemsJSON(items)) })

	posts, err := c.Fetch(context.Background(), []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if posts[0].ID != "a" || posts[1].ID != "b" || posts[2].ID != "c" {
		t.Errorf("order = %s,%s,%s, want encounter order a,b,c", posts[0].ID, posts[1].ID, posts[2].ID)
	}
}

func TestFetch_DropsEmptyTextAndFallsBackToTextField(t *testing.T) {
	items := []map[string]any{
		{"postId": "a", "profileUrl": "u1"},                      // no text at all
		{"postId": "b", "text": "alt field", "profileUrl": "u2"}, // fallback field
	}
	c := newTestClient(t, Config{RankRecent: true},
		func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, itemsJSON(items)) })

	posts, err := c.Fetch(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 || posts[0].ID != "b" || posts[0].Text != "alt field" {
		t.Errorf("posts = %+v, want single post b with fallback text", posts)
	}
}

func TestFetch_CapsPostsPerProfile(t *testing.T) {
	items := []map[string]any{
		{"postId": "a1", "postText": "one", "profileUrl": "u1", "timestamp": int64(3)},
		{"postId": "a2", "postText": "two", "profileUrl": "u1", "timestamp": int64(2)},
		{"postId": "b1", "postText": "three", "profileUrl": "u2", "timestamp": int64(1)},
	}
	c := newTestClient(t, Config{PostsPerProfile: 1, RankRecent: true},
		func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, itemsJSON(items)) })

	posts, err := c.Fetch(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 (one per profile)", len(posts))
	}
}

func TestFetch_BackendErrorPropagates(t *testing.T) {
	c := newTestClient(t, Config{},
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })

	if _, err := c.Fetch(context.Background(), []string{"u1"}); err == nil {
		t.Fatal("expected error on backend failure")
	}
}

func TestFetch_EmptyResultIsNotAnError(t *testing.T) {
	c := newTestClient(t, Config{},
		func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "[]") })

	posts, err := c.Fetch(context.Background(), []string{"u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 0 {
		t.Errorf("got %d posts, want 0", len(posts))
	}
}
