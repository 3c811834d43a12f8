package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/logger"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/repository"
)

const (
	defaultWatchInterval = 15 * time.Second
	defaultWatchWorkers  = 4
)

// Update is sent when a watched delivery changes status or its link stops working
type Update struct {
	Token    string
	Tracking models.Tracking

	// ErrNotFound or ErrLinkExpired. The token is not polled anymore
	Err error
}

// Watcher polls tracking links until their deliveries are delivered or cancelled
type Watcher struct {
	Interval time.Duration
	Workers  int

	repo   repository.TrackingRepo
	logger logger.Logger
}

func NewWatcher(repo repository.TrackingRepo, l logger.Logger) *Watcher {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	return &Watcher{
		Interval: defaultWatchInterval,
		Workers:  defaultWatchWorkers,
		repo:     repo,
		logger:   l,
	}
}

// watch is the state of a single Watch call
type watch struct {
	*Watcher

	// Backend may throttle: workers wait until this moment (unix nano)
	waitUntil atomic.Int64

	mu       sync.Mutex
	last     map[string]string // token -> last seen status, "" before the first poll
	inFlight map[string]bool
}

// Watch polls every token right away and then once per interval.
// The channel is closed when no token is left to poll or ctx is done
func (w *Watcher) Watch(ctx context.Context, tokens ...string) <-chan Update {
	st := &watch{
		Watcher:  w,
		last:     make(map[string]string, len(tokens)),
		inFlight: make(map[string]bool, len(tokens)),
	}
	for _, t := range tokens {
		st.last[t] = ""
	}

	jobs := make(chan string)
	out := make(chan Update)

	go st.produce(ctx, jobs)

	var wg sync.WaitGroup
	for range max(1, w.Workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.consume(ctx, jobs, out)
		}()
	}

	go func() {
		defer close(out)
		wg.Wait()
		w.logger.Debug("Tracking watcher stopped")
	}()

	return out
}

func (st *watch) produce(ctx context.Context, jobs chan<- string) {
	defer close(jobs)

	interval := st.Interval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tokens, done := st.due()
		if done {
			return
		}

		for _, token := range tokens {
			select {
			case <-ctx.Done():
				return
			case jobs <- token:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// due returns tokens to poll now, marking them in flight. done is true when nothing is watched anymore
func (st *watch) due() (tokens []string, done bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.last) == 0 {
		return nil, true
	}
	for token := range st.last {
		if !st.inFlight[token] {
			st.inFlight[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens, false
}

func (st *watch) consume(ctx context.Context, jobs <-chan string, out chan<- Update) {
	for {
		// Wait until rate limit is passed or context is done
		waitUntil := time.Unix(0, st.waitUntil.Load())
		if waitUntil.After(time.Now()) {
			st.logger.Debug("Worker is waiting for rate limit to reset", "wait_until", waitUntil)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(waitUntil)):
			}
		}

		select {
		case <-ctx.Done():
			return

		case token, ok := <-jobs:
			if !ok {
				return
			}

			update, send := st.poll(ctx, token)
			if !send {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- update:
			}
		}
	}
}

// poll tracks the token once and reports whether the result is worth sending
func (st *watch) poll(ctx context.Context, token string) (Update, bool) {
	t, err := st.repo.Track(ctx, token)

	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.inFlight, token)

	switch {
	case err == nil:
		changed := st.last[token] != t.Status
		if terminal(t.Status) {
			delete(st.last, token)
		} else {
			st.last[token] = t.Status
		}
		return Update{Token: token, Tracking: t}, changed

	case errors.Is(err, apperrors.ErrTooManyRequests):
		retryAfter := apperrors.RetryAfter(err)
		st.logger.Info("Rate limit exceeded, waiting", "retry_after", retryAfter)
		st.waitUntil.Store(time.Now().Add(retryAfter).UnixNano())
		return Update{}, false

	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrLinkExpired):
		delete(st.last, token)
		return Update{Token: token, Err: err}, true

	default:
		st.logger.Warn("Failed to poll tracking link, will retry", "error", err)
		return Update{}, false
	}
}

func terminal(status string) bool {
	return status == models.DeliveryStatusDelivered || status == models.DeliveryStatusCancelled
}
