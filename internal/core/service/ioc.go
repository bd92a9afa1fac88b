package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hive-corporation/ioc-console/internal/core/domain"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
	"github.com/hive-corporation/ioc-console/internal/logging"
	"github.com/hive-corporation/ioc-console/internal/metrics"
)

// DefaultNotifyTimeout bounds a single critical alert, retries included.
const DefaultNotifyTimeout = 30 * time.Second

// IOCService validates input and fronts an ports.IOCRepository.
type IOCService struct {
	repo          ports.IOCRepository
	notifier      ports.Notifier
	notifyTimeout time.Duration
	log           logging.Logger

	inflight sync.WaitGroup
}

type IOCOption func(*IOCService)

// WithNotifyTimeout overrides DefaultNotifyTimeout.
func WithNotifyTimeout(d time.Duration) IOCOption {
	return func(s *IOCService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// NewIOCService builds the service. notifier may be nil.
func NewIOCService(repo ports.IOCRepository, notifier ports.Notifier, log logging.Logger, opts ...IOCOption) *IOCService {
	s := &IOCService{
		repo:          repo,
		notifier:      notifier,
		notifyTimeout: DefaultNotifyTimeout,
		log:           log.With("component", "ioc"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every critical alert started by Create has finished.
func (s *IOCService) Wait() {
	s.inflight.Wait()
}

func (s *IOCService) List(ctx context.Context, filter domain.Filter, sort domain.Sort) ([]domain.IOC, error) {
	iocs, err := s.repo.List(ctx)
	if err != nil {
		metrics.RecordOperation("list", "error")
		return nil, err
	}
	metrics.RecordOperation("list", "success")
	return domain.ApplyQuery(iocs, filter, sort), nil
}

func (s *IOCService) Get(ctx context.Context, id string) (*domain.IOC, error) {
	ioc, err := s.repo.GetByID(ctx, id)
	metrics.RecordOperation("get", resultOf(err))
	return ioc, err
}

// Create validates in, then stores it as a pending indicator.
// Validation failures are returned as *domain.ValidationError.
func (s *IOCService) Create(ctx context.Context, in domain.NewIOC) (*domain.IOC, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		metrics.RecordOperation("create", "invalid")
		return nil, err
	}

	created, err := s.repo.Create(ctx, domain.IOC{
		Type:          in.Type,
		Value:         in.Value,
		Description:   in.Description,
		Severity:      in.Severity,
		Source:        in.Source,
		Reporter:      in.Reporter,
		ReporterEmail: in.ReporterEmail,
		Tags:          in.Tags,
		TLP:           in.TLP,
		Confidence:    in.ConfidenceValue(),
		FirstSeen:     in.FirstSeen,
		LastSeen:      in.LastSeen,
		Notes:         in.Notes,
		References:    in.References,
	})
	if err != nil {
		metrics.RecordOperation("create", "error")
		s.log.Error(ctx, "failed to create ioc", "error", err)
		return nil, err
	}

	metrics.RecordOperation("create", "success")
	s.log.Info(ctx, "ioc created", "id", created.ID, "type", created.Type, "severity", created.Severity)

	if created.Severity == domain.SeverityCritical {
		s.notifyCritical(ctx, *created)
	}

	return created, nil
}

// Update shallow-merges patch into the record with id. Field contents
// are not re-validated; only enum members and the confidence range are
// checked.
func (s *IOCService) Update(ctx context.Context, id string, patch domain.IOCPatch) (*domain.IOC, error) {
	if err := checkPatch(patch); err != nil {
		metrics.RecordOperation("update", "invalid")
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	metrics.RecordOperation("update", resultOf(err))
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "ioc updated", "id", id, "status", updated.Status)
	return updated, nil
}

// Delete removes the record with id and reports whether one was removed.
func (s *IOCService) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		metrics.RecordOperation("delete", "error")
		return false, err
	}
	if !removed {
		metrics.RecordOperation("delete", "not_found")
		return false, nil
	}
	metrics.RecordOperation("delete", "success")
	s.log.Info(ctx, "ioc deleted", "id", id)
	return true, nil
}

// notifyCritical sends the alert in the background so a slow notifier
// never holds the create response. The alert keeps the request's values
// but not its cancellation.
func (s *IOCService) notifyCritical(ctx context.Context, ioc domain.IOC) {
	if s.notifier == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		s.sendCritical(ctx, ioc)
	}()
}

func (s *IOCService) sendCritical(ctx context.Context, ioc domain.IOC) {
	err := s.notifier.NotifyCriticalIOC(ctx, ports.IOCNotification{
		ID:         ioc.ID,
		Value:      ioc.Value,
		Type:       string(ioc.Type),
		Severity:   string(ioc.Severity),
		Confidence: ioc.Confidence,
		TLP:        string(ioc.TLP),
		Reporter:   ioc.Reporter,
		Source:     ioc.Source,
		Tags:       ioc.Tags,
	})
	if err != nil {
		metrics.RecordNotification("failure")
		s.log.Warn(ctx, "failed to send critical ioc notification", "id", ioc.ID, "error", err)
		return
	}
	metrics.RecordNotification("success")
}

func checkPatch(p domain.IOCPatch) error {
	verr := &domain.ValidationError{}
	if p.Type != nil && !p.Type.Valid() {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "type", Message: "must be one of ip, domain, url, hash"})
	}
	if p.Severity != nil && !p.Severity.Valid() {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "severity", Message: "must be one of low, medium, high, critical"})
	}
	if p.Status != nil && !p.Status.Valid() {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "status", Message: "must be one of pending, approved, rejected"})
	}
	if p.TLP != nil && !p.TLP.Valid() {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "tlp", Message: "must be one of white, green, amber, red"})
	}
	if p.Confidence != nil && (*p.Confidence < domain.MinConfidence || *p.Confidence > domain.MaxConfidence) {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "confidence", Message: "must be between 0 and 100"})
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
