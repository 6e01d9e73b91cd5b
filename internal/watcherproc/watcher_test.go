package watcherproc

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

type fakeStore struct {
	rules []rule.Rule
	err   error
}

func (f *fakeStore) FetchModifiedSince(ctx context.Context, since time.Time) ([]rule.Rule, error) {
	return f.rules, f.err
}
func (f *fakeStore) FetchByRoute(ctx context.Context, route string) (*rule.Rule, error) {
	panic("not used")
}
func (f *fakeStore) Upsert(ctx context.Context, r rule.Rule) (uuid.UUID, error) {
	panic("not used")
}

func TestPollIsANoOpWhenNothingChanged(t *testing.T) {
	store := &fakeStore{}
	cursor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := New(store, nil, zerolog.New(io.Discard), time.Second, cursor)

	if err := w.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !w.cursor.Equal(cursor) {
		t.Fatalf("cursor moved on an empty poll: got %v, want %v", w.cursor, cursor)
	}
}

func TestRunReturnsImmediatelyOnCancelledContext(t *testing.T) {
	store := &fakeStore{}
	w := New(store, nil, zerolog.New(io.Discard), time.Hour, time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after the initial poll once ctx was already cancelled")
	}
}
