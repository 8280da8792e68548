package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Append(ctx context.Context, entries ...Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// Service exposes the activity log.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record appends a standalone entry, e.g. from a background job.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("%w: action required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.repo.Append(ctx, entry)
}

// List returns a page of entries, newest first. A date-only To bound covers
// the whole day.
func (s *Service) List(ctx context.Context, filter Filter) (Page, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	filter.To = endOfDay(filter.To)
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return Page{}, fmt.Errorf("%w: to precedes from", ErrInvalidFilter)
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Page{Logs: entries, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
}

// ExportLimit caps the number of entries a single export returns.
const ExportLimit = 10000

// Export walks every page matching filter, newest first, up to ExportLimit.
func (s *Service) Export(ctx context.Context, filter Filter) ([]Entry, error) {
	filter.Page, filter.Limit = 1, shared.MaxPerPage
	var out []Entry
	for len(out) < ExportLimit {
		page, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Logs...)
		if len(page.Logs) < filter.Limit || filter.Page >= page.Pagination.TotalPages {
			break
		}
		filter.Page++
	}
	if len(out) > ExportLimit {
		out = out[:ExportLimit]
	}
	return out, nil
}

func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
