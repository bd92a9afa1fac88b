package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeSource) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	n := f.calls.Add(1)
	if f.fail.Load() {
		return domain.DashboardStats{}, errors.New("boom")
	}
	return domain.DashboardStats{
		TotalIOCs:    int(n),
		IOCsByStatus: map[domain.Status]int{domain.StatusPending: int(n)},
	}, nil
}

func TestRefresher_LatestBeforeRefresh(t *testing.T) {
	r := NewRefresher(&fakeSource{}, time.Minute, logging.Discard())
	_, _, ok := r.Latest()
	assert.False(t, ok)
}

func TestRefresher_RefreshStoresSnapshot(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, time.Minute, logging.Discard())

	stats, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalIOCs)

	latest, at, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 1, latest.TotalIOCs)
	assert.False(t, at.IsZero())
}

func TestRefresher_FailureKeepsPrevious(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, time.Minute, logging.Discard())

	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	src.fail.Store(true)
	_, err = r.Refresh(context.Background())
	require.Error(t, err)

	latest, _, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 1, latest.TotalIOCs)
}

func TestRefresher_RunTicksUntilCancelled(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefresher_RunOnceWithoutInterval(t *testing.T) {
	src := &fakeSource{}
	r := NewRefresher(src, 0, logging.Discard())

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
}
