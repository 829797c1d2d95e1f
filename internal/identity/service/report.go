package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
)

var (
	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrUnknownReportType = errors.New("unknown_report_type")
)

// ReportService produces the admin reports.
type ReportService struct {
	Store store.Store
}

// Generate runs the report named by typ over r.
func (s *ReportService) Generate(ctx context.Context, typ domain.ReportType, r domain.DateRange) (any, error) {
	switch typ {
	case domain.ReportUserActivity:
		return s.UserActivity(ctx, r)
	case domain.ReportUserRegistrations:
		return s.UserRegistrations(ctx, r)
	default:
		return nil, ErrUnknownReportType
	}
}

// UserActivity lists every user with their session count and latest session
// start inside r.
func (s *ReportService) UserActivity(ctx context.Context, r domain.DateRange) ([]domain.UserActivity, error) {
	if err := checkRange(r); err != nil {
		return nil, err
	}
	rows, err := s.Store.Reports().UserActivity(ctx, r)
	if rows == nil && err == nil {
		rows = []domain.UserActivity{}
	}
	return rows, err
}

// UserRegistrations counts sign-ups per UTC day inside r, newest day first.
func (s *ReportService) UserRegistrations(ctx context.Context, r domain.DateRange) ([]domain.Registrations, error) {
	if err := checkRange(r); err != nil {
		return nil, err
	}

	times, err := s.Store.Reports().RegistrationTimes(ctx, r)
	if err != nil {
		return nil, err
	}

	out := []domain.Registrations{}
	for _, t := range times {
		day := t.UTC().Format("2006-01-02")
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Registrations++
			continue
		}
		out = append(out, domain.Registrations{Date: day, Registrations: 1})
	}
	return out, nil
}

func checkRange(r domain.DateRange) error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return ErrInvalidDateRange
	}
	return nil
}
