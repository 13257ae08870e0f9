package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chorusbot/chorus/engine/domain"
	"github.com/chorusbot/chorus/pkg/jsonstore"
)

type fakeRotator struct {
	profiles []string
	err      error
}

func (f *fakeRotator) Select() ([]string, error) { return f.profiles, f.err }

type fakeFetcher struct {
	posts   []domain.Post
	err     error
	gotArgs []string
}

func (f *fakeFetcher) Fetch(_ context.Context, profiles []string) ([]domain.Post, error) {
	f.gotArgs = profiles
	return f.posts, f.err
}

type fakeGenerator struct{ calls int }

func (f *fakeGenerator) GenerateAll(_ context.Context, posts []domain.Post) []domain.Post {
	f.calls++
	out := make([]domain.Post, len(posts))
	for i, p := range posts {
		p.Reply = "विश्लेषण " + p.ID
		out[i] = p
	}
	return out
}

type fakeDispatcher struct{ got []domain.Post }

func (f *fakeDispatcher) DispatchAll(_ context.Context, posts []domain.Post) int {
	f.got = append(f.got, posts...)
	return len(posts)
}

func TestFetchReply_FullFlow(t *testing.T) {
	profiles := make([]string, 10)
	posts := make([]domain.Post, 10)
	for i := range profiles {
		profiles[i] = "p" + string(rune('0'+i))
		posts[i] = domain.Post{ID: profiles[i], Text: "t", Profile: profiles[i]}
	}
	fetcher := &fakeFetcher{posts: posts}
	gen := &fakeGenerator{}
	disp := &fakeDispatcher{}

	r := &Runner{
		Rotator:    &fakeRotator{profiles: profiles},
		Fetcher:    fetcher,
		Generator:  gen,
		Dispatcher: disp,
	}
	if err := r.FetchReply(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fetcher.gotArgs) != 10 {
		t.Errorf("fetch request covered %d profiles, want 10", len(fetcher.gotArgs))
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1 batch", gen.calls)
	}
	if len(disp.got) != 10 {
		t.Fatalf("dispatched %d posts, want 10", len(disp.got))
	}
	for _, p := range disp.got {
		if p.Reply == "" {
			t.Errorf("post %s dispatched without commentary", p.ID)
		}
	}
}

func TestFetchReply_EmptyFetchIsNoOp(t *testing.T) {
	disp := &fakeDispatcher{}
	r := &Runner{
		Rotator:    &fakeRotator{profiles: []string{"p1"}},
		Fetcher:    &fakeFetcher{},
		Generator:  &fakeGenerator{},
		Dispatcher: disp,
	}
	if err := r.FetchReply(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(disp.got) != 0 {
		t.Errorf("dispatched %d posts, want 0", len(disp.got))
	}
}

func TestFetchReply_RotatorErrorPropagates(t *testing.T) {
	r := &Runner{
		Rotator:    &fakeRotator{err: errors.New("profiles.txt not found")},
		Fetcher:    &fakeFetcher{},
		Generator:  &fakeGenerator{},
		Dispatcher: &fakeDispatcher{},
	}
	if err := r.FetchReply(context.Background()); err == nil {
		t.Fatal("expected configuration error to propagate")
	}
}

func TestReplyQueue_DispatchesAtMostPoolSize(t *testing.T) {
	queuePath := filepath.Join(t.TempDir(), "queue.json")
	queue := map[string][]domain.Post{
		"profileA": {{ID: "1", Text: "t"}, {ID: "2", Text: "t"}},
		"profileB": {{ID: "3", Text: "t"}, {ID: "4", Text: "t"}},
		"profileC": {{ID: "5", Text: "t"}},
	}
	if err := jsonstore.Save(queuePath, queue); err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{}
	disp := &fakeDispatcher{}
	r := &Runner{
		Generator:  gen,
		Dispatcher: disp,
		QueuePath:  queuePath,
		PoolSize:   3,
		shuffle:    func(int, func(int, int)) {}, // deterministic
	}
	if err := r.ReplyQueue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(disp.got) != 3 {
		t.Fatalf("dispatched %d items, want pool size 3", len(disp.got))
	}
	for _, p := range disp.got {
		if p.Profile == "" {
			t.Errorf("queued item %s lost its profile annotation", p.ID)
		}
	}

	// The queue file is deliberately not rewritten: processed items stay
	// pending for the next run.
	after := jsonstore.Load[map[string][]domain.Post](queuePath)
	total := 0
	for _, posts := range after {
		total += len(posts)
	}
	if total != 5 {
		t.Errorf("queue holds %d items after run, want all 5 untouched", total)
	}
}

func TestReplyQueue_EmptyQueueIsNoOp(t *testing.T) {
	disp := &fakeDispatcher{}
	r := &Runner{
		Generator:  &fakeGenerator{},
		Dispatcher: disp,
		QueuePath:  filepath.Join(t.TempDir(), "absent.json"),
		PoolSize:   3,
	}
	if err := r.ReplyQueue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(disp.got) != 0 {
		t.Errorf("dispatched %d items, want 0", len(disp.got))
	}
}
