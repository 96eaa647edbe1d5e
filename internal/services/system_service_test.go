package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportEnrichesMetadata(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"redis":     {Status: domain.HealthStatusDegraded, Detail: "unreachable"},
			},
		},
	}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Version: "1.4.0", CommitSHA: "abc123", Environment: "staging", StartedAt: start},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Version != "1.4.0" || report.CommitSHA != "abc123" || report.Environment != "staging" {
		t.Fatalf("unexpected build metadata %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generated at %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceDerivesStatus(t *testing.T) {
	cases := map[string]struct {
		checks map[string]domain.SystemHealthCheck
		want   string
	}{
		"empty":    {nil, domain.HealthStatusOK},
		"all ok":   {map[string]domain.SystemHealthCheck{"a": {Status: domain.HealthStatusOK}}, domain.HealthStatusOK},
		"degraded": {map[string]domain.SystemHealthCheck{"a": {Status: domain.HealthStatusDegraded}}, domain.HealthStatusDegraded},
		"error wins": {map[string]domain.SystemHealthCheck{
			"a": {Status: domain.HealthStatusDegraded},
			"b": {Status: domain.HealthStatusError},
		}, domain.HealthStatusError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := deriveStatus(tc.checks); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSystemServicePropagatesCollectError(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("boom")}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if repo.calls != 1 {
		t.Fatalf("expected a single collect call, got %d", repo.calls)
	}
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected error without repository")
	}
}

type stubStatusDefinitions struct {
	defs []domain.StatusDefinition
	err  error
}

func (s *stubStatusDefinitions) Insert(context.Context, domain.StatusDefinition) error { return nil }

func (s *stubStatusDefinitions) Get(context.Context, string) (domain.StatusDefinition, error) {
	return domain.StatusDefinition{}, nil
}

func (s *stubStatusDefinitions) List(context.Context, bool) ([]domain.StatusDefinition, error) {
	return s.defs, s.err
}

func (s *stubStatusDefinitions) Update(context.Context, domain.StatusDefinition) error { return nil }

func TestSystemServiceReportsStatusCatalog(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	defs := &stubStatusDefinitions{defs: []domain.StatusDefinition{
		{ID: "inprogress", Active: true},
		{ID: "ordered", Active: false},
	}}
	repo := &stubHealthRepository{report: domain.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{"firestore": {Status: domain.HealthStatusOK}},
	}}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository:  repo,
		StatusDefinitions: defs,
		RequiredStatuses:  []string{"inprogress", "ordered", "inprogress", " "},
		Clock:             func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	check := report.Checks[statusCatalogCheck]
	if check.Status != domain.HealthStatusDegraded || check.Detail != "missing or inactive: ordered" {
		t.Fatalf("unexpected status check %+v", check)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded report, got %s", report.Status)
	}

	defs.defs[1].Active = true
	report, err = svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK || report.Checks[statusCatalogCheck].Status != domain.HealthStatusOK {
		t.Fatalf("expected ok report, got %+v", report)
	}

	defs.err = errors.New("firestore down")
	report, err = svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusError || report.Checks[statusCatalogCheck].Error != "firestore down" {
		t.Fatalf("expected error report, got %+v", report)
	}
}
