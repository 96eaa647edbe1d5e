package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

// statusCatalogCheck names the readiness check covering the status definitions the lifecycle needs.
const statusCatalogCheck = "order_statuses"

// BuildInfo is the deployment metadata reported by /readyz.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps requires only HealthRepository. When StatusDefinitions and RequiredStatuses are
// both set the report carries an order_statuses check that degrades while any required status is
// missing or inactive.
type SystemServiceDeps struct {
	HealthRepository  repositories.HealthRepository
	StatusDefinitions repositories.StatusDefinitionRepository
	RequiredStatuses  []string
	Clock             func() time.Time
	Build             BuildInfo
}

type systemService struct {
	health   repositories.HealthRepository
	statuses repositories.StatusDefinitionRepository
	required []string
	now      func() time.Time
	build    BuildInfo
}

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc := &systemService{
		health:   deps.HealthRepository,
		statuses: deps.StatusDefinitions,
		now:      func() time.Time { return clock().UTC() },
		build:    deps.Build,
	}
	for _, id := range deps.RequiredStatuses {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(svc.required, id) {
			svc.required = append(svc.required, id)
		}
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.now()
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	if strings.TrimSpace(report.Version) == "" {
		report.Version = s.build.Version
	}
	if strings.TrimSpace(report.CommitSHA) == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if strings.TrimSpace(report.Environment) == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Checks == nil {
		report.Checks = make(map[string]domain.SystemHealthCheck, 1)
	}
	if s.statuses != nil && len(s.required) > 0 {
		report.Checks[statusCatalogCheck] = s.checkStatusCatalog(ctx)
		// the repository status predates this check
		report.Status = ""
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = deriveStatus(report.Checks)
	}
	return report, nil
}

func (s *systemService) checkStatusCatalog(ctx context.Context) domain.SystemHealthCheck {
	started := s.now()
	defs, err := s.statuses.List(ctx, false)
	check := domain.SystemHealthCheck{Latency: s.now().Sub(started), CheckedAt: started}
	if err != nil {
		check.Status = domain.HealthStatusError
		check.Error = err.Error()
		return check
	}

	active := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.Active {
			active[def.ID] = struct{}{}
		}
	}
	var missing []string
	for _, id := range s.required {
		if _, ok := active[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		check.Status = domain.HealthStatusDegraded
		check.Detail = fmt.Sprintf("missing or inactive: %s", strings.Join(missing, ", "))
		return check
	}
	check.Status = domain.HealthStatusOK
	check.Detail = fmt.Sprintf("%d statuses active", len(active))
	return check
}

// deriveStatus reports the worst individual check; a check without a status counts as ok.
func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	worst := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			worst = domain.HealthStatusDegraded
		}
	}
	return worst
}
