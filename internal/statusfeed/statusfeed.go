// Package statusfeed fans store change notifications out to per-record
// subscribers. It is the bridge between asynchronous server-side processing
// (assessment, transcript improvement) and whatever view is currently bound
// to the record.
//
// Delivery is idempotent and monotone: notifications may arrive duplicated or
// out of order, but a subscriber only observes status values in rank order —
// a record that reported completed never regresses to processing. A cancelled
// subscription never fires again, even for notifications already in flight.
package statusfeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tavasya/speakdrill/pkg/store"
)

// Handler receives applied status changes for one subscribed record.
type Handler func(store.Change)

// Subscription is one registration on a [Feed]. Unsubscribe on view teardown
// or before rebinding to a different record.
type Subscription struct {
	feed    *Feed
	table   string
	id      string
	handler Handler

	mu        sync.Mutex
	cancelled bool
	lastRank  int
}

// Unsubscribe deregisters the subscription. Idempotent. After it returns no
// further handler calls are made.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.feed.remove(s)
}

// deliver applies c if it is for this subscription's record, supersedes the
// last applied status, and the subscription is still live.
func (s *Subscription) deliver(c store.Change) {
	if c.Table != s.table || c.ID != s.id {
		return
	}
	s.mu.Lock()
	if s.cancelled || c.Status.Rank() <= s.lastRank {
		s.mu.Unlock()
		return
	}
	s.lastRank = c.Status.Rank()
	handler := s.handler
	s.mu.Unlock()
	handler(c)
}

// Feed runs the watch loop and dispatches changes to subscriptions.
type Feed struct {
	watcher store.Watcher
	retry   time.Duration

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Option configures a [Feed].
type Option func(*Feed)

// WithRetryInterval sets the pause before re-watching after the notification
// stream drops. Default 2s.
func WithRetryInterval(d time.Duration) Option {
	return func(f *Feed) { f.retry = d }
}

// New creates a Feed over watcher. Call [Feed.Run] to start delivery.
func New(watcher store.Watcher, opts ...Option) *Feed {
	f := &Feed{
		watcher: watcher,
		retry:   2 * time.Second,
		subs:    make(map[*Subscription]struct{}),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Subscribe registers handler for status changes of the record (table, id).
// The handler runs on the feed's dispatch goroutine and must not block.
func (f *Feed) Subscribe(table, id string, handler Handler) *Subscription {
	s := &Subscription{feed: f, table: table, id: id, handler: handler}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// Dispatch delivers one change to every matching live subscription. Run calls
// it for each watched notification; tests call it directly.
func (f *Feed) Dispatch(c store.Change) {
	f.mu.Lock()
	subs := make([]*Subscription, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.deliver(c)
	}
}

// Run watches the store and dispatches until ctx is cancelled. A dropped
// notification stream is re-established after the retry interval.
func (f *Feed) Run(ctx context.Context) error {
	for {
		ch, err := f.watcher.Watch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("statusfeed: watch failed, retrying", "err", err)
			select {
			case <-time.After(f.retry):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for c := range ch {
			f.Dispatch(c)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("statusfeed: notification stream closed, re-watching")
	}
}
