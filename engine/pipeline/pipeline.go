// Package pipeline orchestrates one run: either fetch fresh posts and reply
// to them, or drain a slice of the persisted pending-reply queue.
package pipeline

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/chorusbot/chorus/engine/domain"
	"github.com/chorusbot/chorus/pkg/fn"
	"github.com/chorusbot/chorus/pkg/jsonstore"
)

// Rotator selects this run's profile sample.
type Rotator interface {
	Select() ([]string, error)
}

// Fetcher pulls reply candidates for the sampled profiles.
type Fetcher interface {
	Fetch(ctx context.Context, profiles []string) ([]domain.Post, error)
}

// Generator annotates posts with commentary.
type Generator interface {
	GenerateAll(ctx context.Context, posts []domain.Post) []domain.Post
}

// Dispatcher publishes annotated posts and returns the success count.
type Dispatcher interface {
	DispatchAll(ctx context.Context, posts []domain.Post) int
}

// Runner drives one run. All collaborators are built once at startup and
// read-only afterwards.
type Runner struct {
	Rotator    Rotator
	Fetcher    Fetcher
	Generator  Generator
	Dispatcher Dispatcher

	QueuePath string // pending-reply queue file for reply_queue mode
	PoolSize  int    // caps how many queued items one run dispatches

	shuffle func(n int, swap func(i, j int)) // test seam; defaults to rand.Shuffle
}

// FetchReply samples profiles, fetches their freshest posts, generates
// commentary, and dispatches the batch. A run with nothing to reply to is
// a no-op, not an error.
func (r *Runner) FetchReply(ctx context.Context) error {
	profiles, err := r.Rotator.Select()
	if err != nil {
		return err
	}
	posts, err := r.Fetcher.Fetch(ctx, profiles)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		slog.Info("no posts fetched, nothing to do")
		return nil
	}

	slog.Info("generating replies", "posts", len(posts))
	posts = r.Generator.GenerateAll(ctx, posts)

	sent := r.Dispatcher.DispatchAll(ctx, posts)
	slog.Info("fetch+reply complete", "sent", sent, "candidates", len(posts))
	return nil
}

// ReplyQueue flattens the persisted pending-reply queue, shuffles it, and
// dispatches at most PoolSize items. The queue file is not rewritten, so
// processed items remain pending for subsequent runs.
func (r *Runner) ReplyQueue(ctx context.Context) error {
	queue := jsonstore.Load[map[string][]domain.Post](r.QueuePath)
	if len(queue) == 0 {
		slog.Info("reply queue empty")
		return nil
	}

	var items []domain.Post
	for profile, posts := range queue {
		items = append(items, fn.Map(posts, func(p domain.Post) domain.Post {
			p.Profile = profile
			return p
		})...)
	}
	shuffle := r.shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	slog.Info("generating queued replies", "queued", len(items))
	items = r.Generator.GenerateAll(ctx, items)

	batch := items
	if r.PoolSize > 0 && len(batch) > r.PoolSize {
		batch = batch[:r.PoolSize]
	}
	sent := r.Dispatcher.DispatchAll(ctx, batch)
	slog.Info("queue reply complete", "sent", sent, "dispatched", len(batch))
	return nil
}
