// Package dispatch publishes generated replies through the account pool.
// Accounts are assigned round-robin by sequence position; each attempt is
// preceded by a randomized delay as a self-imposed rate limit.
package dispatch

import (
	"context"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/chorusbot/chorus/engine/domain"
	"github.com/chorusbot/chorus/pkg/fn"
	"github.com/chorusbot/chorus/pkg/jsonstore"
	"github.com/chorusbot/chorus/pkg/natsutil"
)

// Poster is one credentialed posting identity.
type Poster interface {
	Name() string
	UploadMedia(ctx context.Context, path string) (string, error)
	CreateReply(ctx context.Context, text string, mediaIDs []string, inReplyTo string) (string, error)
}

// Config controls dispatch behavior.
type Config struct {
	DryRun      bool
	AttachMedia bool
	MinDelay    int // seconds, inclusive
	MaxDelay    int // seconds, inclusive
	ImagesDir   string
	LogPath     string
	Subject     string // NATS subject for reply events
}

// ReplyEvent describes one published reply. It is appended to the run log
// and, when NATS is configured, published as an event.
type ReplyEvent struct {
	RunID   string `json:"run_id"`
	Account string `json:"account"`
	TweetID string `json:"tweet_id"`
	ReplyID string `json:"reply_id"`
	Media   string `json:"media,omitempty"`
	Text    string `json:"text"`
}

// LogEntry is one record in the append-only run log.
type LogEntry struct {
	Action    string     `json:"action"`
	Details   ReplyEvent `json:"details"`
	Timestamp time.Time  `json:"timestamp"`
}

// logFile matches the on-disk run log layout.
type logFile struct {
	Logs []LogEntry `json:"logs"`
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Dispatcher sends replies through the pool.
type Dispatcher struct {
	pool  []Poster
	cfg   Config
	nc    *nats.Conn // nil disables event publishing
	runID string

	sleep func(time.Duration) // test seam
	intN  func(int) int       // test seam
}

// New creates a dispatcher over a non-empty pool.
func New(pool []Poster, cfg Config, nc *nats.Conn) *Dispatcher {
	return &Dispatcher{
		pool:  pool,
		cfg:   cfg,
		nc:    nc,
		runID: uuid.NewString(),
		sleep: time.Sleep,
		intN:  rand.Intn,
	}
}

// DispatchAll attempts to publish each annotated post in order and returns
// the number of successful publishes. Posts with empty commentary are
// skipped without counting as attempts; a failed publish does not abort
// the rest of the sequence.
func (d *Dispatcher) DispatchAll(ctx context.Context, posts []domain.Post) int {
	sent := 0
	for idx, post := range posts {
		if post.Reply == "" {
			log.Printf("warning: skipping post %s (no reply)", post.ID)
			continue
		}
		poster := d.pool[idx%len(d.pool)]
		delay := d.delay()
		log.Printf("post %d (from %s): %s", idx+1, post.Profile, excerpt(post.Text, 120))
		log.Printf("[%s] waiting %ds", poster.Name(), delay)
		d.sleep(time.Duration(delay) * time.Second)
		if d.send(ctx, post, poster) {
			sent++
		}
	}
	return sent
}

// send publishes one reply. Dry-run mode logs the would-be send and
// succeeds without touching the backend.
func (d *Dispatcher) send(ctx context.Context, post domain.Post, poster Poster) bool {
	imagePath := ""
	if d.cfg.AttachMedia {
		imagePath = d.pickImage()
	}

	if d.cfg.DryRun {
		desc := ""
		if imagePath != "" {
			desc = " with media " + filepath.Base(imagePath)
		}
		log.Printf("DRY RUN [%s]: %s%s", poster.Name(), post.Reply, desc)
		return true
	}

	var mediaIDs []string
	if imagePath != "" {
		mediaID, err := poster.UploadMedia(ctx, imagePath)
		if err != nil {
			log.Printf("error: [%s] media upload: %v", poster.Name(), err)
			return false
		}
		mediaIDs = append(mediaIDs, mediaID)
		log.Printf("[%s] uploaded media %s", poster.Name(), mediaID)
	}

	replyID, err := poster.CreateReply(ctx, post.Reply, mediaIDs, post.ID)
	if err != nil {
		log.Printf("error: [%s] post: %v", poster.Name(), err)
		return false
	}
	log.Printf("[%s] replied to %s, id %s", poster.Name(), post.ID, replyID)

	media := ""
	if imagePath != "" {
		media = filepath.Base(imagePath)
	}
	entry := LogEntry{
		Action: "reply_sent",
		Details: ReplyEvent{
			RunID:   d.runID,
			Account: poster.Name(),
			TweetID: post.ID,
			ReplyID: replyID,
			Media:   media,
			Text:    excerpt(post.Reply, 100) + "...",
		},
		Timestamp: time.Now().UTC(),
	}
	d.record(ctx, entry)
	return true
}

// record appends the entry to the run log and publishes it when NATS is
// configured. Neither failure affects the publish outcome.
func (d *Dispatcher) record(ctx context.Context, entry LogEntry) {
	lf := jsonstore.Load[logFile](d.cfg.LogPath)
	lf.Logs = append(lf.Logs, entry)
	if err := jsonstore.Save(d.cfg.LogPath, lf); err != nil {
		log.Printf("error: append run log: %v", err)
	}
	if d.nc != nil {
		if err := natsutil.Publish(ctx, d.nc, d.cfg.Subject, entry); err != nil {
			log.Printf("error: publish reply event: %v", err)
		}
	}
}

// pickImage chooses one image uniformly at random from the configured
// directory, or returns empty (with a warning) when none are available.
func (d *Dispatcher) pickImage() string {
	entries, err := os.ReadDir(d.cfg.ImagesDir)
	if err != nil {
		log.Printf("warning: images dir %s unavailable; skipping media", d.cfg.ImagesDir)
		return ""
	}
	images := fn.FilterMap(entries, func(e os.DirEntry) (string, bool) {
		if e.IsDir() {
			return "", false
		}
		return e.Name(), imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]
	})
	if len(images) == 0 {
		log.Printf("warning: no images in %s; skipping media", d.cfg.ImagesDir)
		return ""
	}
	return filepath.Join(d.cfg.ImagesDir, images[d.intN(len(images))])
}

// delay picks a uniform integer number of seconds in [MinDelay, MaxDelay].
func (d *Dispatcher) delay() int {
	if d.cfg.MaxDelay <= d.cfg.MinDelay {
		return d.cfg.MinDelay
	}
	return d.cfg.MinDelay + d.intN(d.cfg.MaxDelay-d.cfg.MinDelay+1)
}

// excerpt truncates s to n code points.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
