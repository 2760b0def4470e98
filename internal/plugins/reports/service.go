package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keyxmakerx/vpanel/internal/apperror"
)

// Service answers summary requests.
type Service interface {
	Summary(ctx context.Context, from, to string) (*Summary, error)
}

// reportService implements Service with an optional cache in front of
// the source. Cache failures degrade to a direct read.
type reportService struct {
	source MetricsSource
	cache  Cache
	now    func() time.Time
}

// NewService creates the report service. cache may be nil.
func NewService(source MetricsSource, cache Cache) Service {
	return &reportService{source: source, cache: cache, now: time.Now}
}

// Summary validates the raw YYYY-MM-DD bounds and returns the aggregate.
// Both bounds empty means the last DefaultRangeDays days ending today.
func (s *reportService) Summary(ctx context.Context, from, to string) (*Summary, error) {
	r, err := s.parseRange(from, to)
	if err != nil {
		return nil, err
	}

	key := r.key()
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("report cache read failed", slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := s.source.Summary(ctx, r.from, r.to)
	if err != nil {
		return nil, apperror.NewUnavailable(fmt.Errorf("computing summary %s: %w", key, err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			slog.Warn("report cache write failed", slog.Any("error", err))
		}
	}
	return summary, nil
}

func (s *reportService) parseRange(rawFrom, rawTo string) (dayRange, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	span := time.Duration(DefaultRangeDays-1) * 24 * time.Hour

	var r dayRange
	var err error

	switch {
	case rawTo == "":
		r.to = today
	default:
		if r.to, err = time.Parse(dateLayout, rawTo); err != nil {
			return r, apperror.NewValidation("to must be a date in YYYY-MM-DD format")
		}
	}
	switch {
	case rawFrom == "":
		r.from = r.to.Add(-span)
	default:
		if r.from, err = time.Parse(dateLayout, rawFrom); err != nil {
			return r, apperror.NewValidation("from must be a date in YYYY-MM-DD format")
		}
	}

	if r.from.After(r.to) {
		return r, apperror.NewValidation("from must not be after to")
	}
	if days := int(r.to.Sub(r.from)/(24*time.Hour)) + 1; days > MaxRangeDays {
		return r, apperror.NewValidation(fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}
	return r, nil
}
