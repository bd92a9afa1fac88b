package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/repository"
	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []ports.IOCNotification
	err  error
}

func (n *recordingNotifier) NotifyCriticalIOC(_ context.Context, ioc ports.IOCNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, ioc)
	return n.err
}

// gatedNotifier holds each alert until release is closed or its context ends.
type gatedNotifier struct {
	release chan struct{}
	started chan struct{}
	done    chan error
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
		done:    make(chan error, 1),
	}
}

func (n *gatedNotifier) NotifyCriticalIOC(ctx context.Context, _ ports.IOCNotification) error {
	n.started <- struct{}{}
	select {
	case <-n.release:
		n.done <- ctx.Err()
	case <-ctx.Done():
		n.done <- ctx.Err()
	}
	return nil
}

var fixedNow = time.Date(2024, 7, 10, 9, 30, 0, 0, time.UTC)

func intPtr(v int) *int {
	return &v
}

func newIOCService(n ports.Notifier, opts ...IOCOption) (*IOCService, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository(repository.WithClock(func() time.Time { return fixedNow }))
	return NewIOCService(repo, n, logging.Discard(), opts...), repo
}

func validInput() domain.NewIOC {
	return domain.NewIOC{
		Type:          domain.IPAddress,
		Value:         " 10.20.30.40 ",
		Description:   "Scanner",
		Source:        "IDS",
		Reporter:      "Analyst",
		ReporterEmail: "analyst@example.com",
		Tags:          []string{"scan", "", "scan"},
		Confidence:    intPtr(60),
	}
}

func TestIOCService_Create(t *testing.T) {
	svc, _ := newIOCService(nil)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "10.20.30.40", created.Value)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, domain.SeverityMedium, created.Severity)
	assert.Equal(t, domain.TLPGreen, created.TLP)
	assert.Equal(t, []string{"scan"}, created.Tags)
	assert.True(t, created.DateReported.Equal(fixedNow))

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestIOCService_CreateValidation(t *testing.T) {
	svc, repo := newIOCService(nil)

	tests := []struct {
		name   string
		mutate func(*domain.NewIOC)
		fields []string
	}{
		{"bad ip", func(n *domain.NewIOC) { n.Value = "256.0.0.1" }, []string{"value"}},
		{"bad domain", func(n *domain.NewIOC) { n.Type = domain.Domain; n.Value = "-bad-.com" }, []string{"value"}},
		{"bad url", func(n *domain.NewIOC) { n.Type = domain.URL; n.Value = "not a url" }, []string{"value"}},
		{"short hash", func(n *domain.NewIOC) { n.Type = domain.FileHash; n.Value = "abc123" }, []string{"value"}},
		{"bad email", func(n *domain.NewIOC) { n.ReporterEmail = "a@b" }, []string{"reporterEmail"}},
		{"confidence high", func(n *domain.NewIOC) { n.Confidence = intPtr(101) }, []string{"confidence"}},
		{"confidence low", func(n *domain.NewIOC) { n.Confidence = intPtr(-1) }, []string{"confidence"}},
		{"unknown type", func(n *domain.NewIOC) { n.Type = "email" }, []string{"type"}},
		{"unknown tlp", func(n *domain.NewIOC) { n.TLP = "black" }, []string{"tlp"}},
		{
			"many blanks",
			func(n *domain.NewIOC) { n.Description = " "; n.Source = ""; n.Reporter = "" },
			[]string{"description", "source", "reporter"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "rejected input must not be stored")
}

func TestIOCService_CriticalNotification(t *testing.T) {
	n := &recordingNotifier{}
	svc, _ := newIOCService(n)

	in := validInput()
	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	svc.Wait()
	assert.Empty(t, n.sent)

	in.Severity = domain.SeverityCritical
	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	svc.Wait()
	require.Len(t, n.sent, 1)
	assert.Equal(t, created.ID, n.sent[0].ID)
	assert.Equal(t, "critical", n.sent[0].Severity)
}

func TestIOCService_NotificationFailureDoesNotFailCreate(t *testing.T) {
	svc, repo := newIOCService(&recordingNotifier{err: errors.New("slack down")})

	in := validInput()
	in.Severity = domain.SeverityCritical
	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	svc.Wait()

	_, err = repo.GetByID(context.Background(), created.ID)
	assert.NoError(t, err)
}

func TestIOCService_SlowNotifierDoesNotHoldCreate(t *testing.T) {
	n := newGatedNotifier()
	svc, repo := newIOCService(n, WithNotifyTimeout(50*time.Millisecond))

	in := validInput()
	in.Severity = domain.SeverityCritical

	start := time.Now()
	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "create must not wait for the alert")

	_, err = repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)

	svc.Wait()
	assert.ErrorIs(t, <-n.done, context.DeadlineExceeded, "alert is bounded by the notify timeout")
}

func TestIOCService_NotificationOutlivesRequest(t *testing.T) {
	n := newGatedNotifier()
	svc, _ := newIOCService(n)

	ctx, cancel := context.WithCancel(context.Background())
	in := validInput()
	in.Severity = domain.SeverityCritical
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	<-n.started
	cancel()
	close(n.release)
	svc.Wait()

	assert.NoError(t, <-n.done, "request cancellation must not abort the alert")
}

func TestIOCService_Update(t *testing.T) {
	svc, _ := newIOCService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	approved := domain.StatusApproved
	bogus := "not even an ip"
	updated, err := svc.Update(ctx, created.ID, domain.IOCPatch{Status: &approved, Value: &bogus})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)
	assert.Equal(t, bogus, updated.Value, "updates are not re-validated")
	assert.True(t, updated.DateReported.Equal(created.DateReported))

	bad := domain.Status("closed")
	_, err = svc.Update(ctx, created.ID, domain.IOCPatch{Status: &bad})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, "missing", domain.IOCPatch{Status: &approved})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIOCService_UpdateRejectsConfidenceOutOfRange(t *testing.T) {
	svc, repo := newIOCService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	for _, c := range []int{-1, 101, 150} {
		_, err := svc.Update(ctx, created.ID, domain.IOCPatch{Confidence: intPtr(c)})
		require.ErrorIs(t, err, domain.ErrValidation, c)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.True(t, verr.Has("confidence"))
	}

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, stored.Confidence, "rejected patch must not reach the store")

	for _, c := range []int{0, 100} {
		updated, err := svc.Update(ctx, created.ID, domain.IOCPatch{Confidence: intPtr(c)})
		require.NoError(t, err)
		assert.Equal(t, c, updated.Confidence)
	}
}

func TestIOCService_CreateDefaults(t *testing.T) {
	svc, _ := newIOCService(nil)

	in := validInput()
	in.Confidence = nil
	in.Tags = nil

	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfidence, created.Confidence)
	assert.NotNil(t, created.Tags)
	assert.Empty(t, created.Tags)
}

func TestIOCService_Delete(t *testing.T) {
	svc, _ := newIOCService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIOCService_ListAppliesQuery(t *testing.T) {
	svc, _ := newIOCService(nil)
	ctx := context.Background()

	for _, v := range []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"} {
		in := validInput()
		in.Value = v
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, domain.Filter{Search: "10.0.0"}, domain.Sort{Field: domain.SortByValue, Order: domain.Asc})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.1", got[0].Value)
	assert.Equal(t, "10.0.0.3", got[2].Value)

	got, err = svc.List(ctx, domain.Filter{Type: domain.Domain}, domain.DefaultSort)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatsService_Dashboard(t *testing.T) {
	svc, repo := newIOCService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	stats := NewStatsService(repo)
	stats.now = func() time.Time { return fixedNow }

	got, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalIOCs)
	assert.Equal(t, 1, got.IOCsByStatus[domain.StatusPending])
	assert.Equal(t, "2024-07-10", got.WeeklyTrend[domain.TrendDays-1].Date)
	assert.Equal(t, 1, got.WeeklyTrend[domain.TrendDays-1].Count)
}
