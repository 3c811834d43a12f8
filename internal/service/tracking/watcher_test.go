package tracking

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/courierdash/internal/api"
	"github.com/nkiryanov/courierdash/internal/apperrors"
	"github.com/nkiryanov/courierdash/internal/models"
	"github.com/nkiryanov/courierdash/internal/testutil/fakeapi"
)

// collect reads updates until the channel is closed or the test deadline passes
func collect(t *testing.T, ch <-chan Update) []Update {
	t.Helper()

	var got []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, u)
		case <-timeout:
			t.Fatal("watcher did not stop in time")
		}
	}
}

type scriptedRepo struct {
	mu      sync.Mutex
	results []func() (models.Tracking, error)
	calls   int
}

func (r *scriptedRepo) Track(_ context.Context, _ string) (models.Tracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := min(r.calls, len(r.results)-1)
	r.calls++
	return r.results[i]()
}

func TestWatcher_Watch(t *testing.T) {
	t.Run("reports changes until delivered", func(t *testing.T) {
		srv := fakeapi.New(t)
		srv.AddTracking("trk", models.Tracking{PublicID: "DLV-1", Status: models.DeliveryStatusPending})

		w := NewWatcher(api.NewClient(srv.URL), nil)
		w.Interval = 10 * time.Millisecond
		ch := w.Watch(t.Context(), "trk")

		first := <-ch
		require.Equal(t, models.DeliveryStatusPending, first.Tracking.Status)

		srv.AddTracking("trk", models.Tracking{PublicID: "DLV-1", Status: models.DeliveryStatusDelivered})
		rest := collect(t, ch)

		require.Len(t, rest, 1, "unchanged polls are not reported")
		require.Equal(t, "trk", rest[0].Token)
		require.Equal(t, models.DeliveryStatusDelivered, rest[0].Tracking.Status)
		require.NoError(t, rest[0].Err)
	})

	t.Run("dead links reported and dropped", func(t *testing.T) {
		srv := fakeapi.New(t)
		srv.AddTracking("trk-expired", models.Tracking{Status: models.DeliveryStatusPending})
		srv.ExpireLink("trk-expired")

		w := NewWatcher(api.NewClient(srv.URL), nil)
		w.Interval = 10 * time.Millisecond
		got := collect(t, w.Watch(t.Context(), "trk-missing", "trk-expired"))

		require.Len(t, got, 2)
		errs := map[string]error{}
		for _, u := range got {
			errs[u.Token] = u.Err
		}
		require.ErrorIs(t, errs["trk-missing"], apperrors.ErrNotFound)
		require.ErrorIs(t, errs["trk-expired"], apperrors.ErrLinkExpired)
	})

	t.Run("waits when throttled", func(t *testing.T) {
		repo := &scriptedRepo{results: []func() (models.Tracking, error){
			func() (models.Tracking, error) {
				return models.Tracking{}, &apperrors.APIError{
					Status:     http.StatusTooManyRequests,
					Err:        apperrors.ErrTooManyRequests,
					RetryAfter: 50 * time.Millisecond,
				}
			},
			func() (models.Tracking, error) {
				return models.Tracking{Status: models.DeliveryStatusCancelled}, nil
			},
		}}

		w := NewWatcher(repo, nil)
		w.Interval = 5 * time.Millisecond
		w.Workers = 1

		start := time.Now()
		got := collect(t, w.Watch(t.Context(), "trk"))

		require.Len(t, got, 1)
		require.Equal(t, models.DeliveryStatusCancelled, got[0].Tracking.Status)
		require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "worker should wait for retry after")
	})

	t.Run("stops with context", func(t *testing.T) {
		srv := fakeapi.New(t)
		srv.AddTracking("trk", models.Tracking{Status: models.DeliveryStatusInTransit})

		ctx, cancel := context.WithCancel(t.Context())
		w := NewWatcher(api.NewClient(srv.URL), nil)
		w.Interval = 10 * time.Millisecond
		ch := w.Watch(ctx, "trk")

		<-ch
		cancel()

		collect(t, ch)
	})

	t.Run("nothing to watch", func(t *testing.T) {
		w := NewWatcher(&scriptedRepo{}, nil)

		require.Empty(t, collect(t, w.Watch(t.Context())))
	})
}
