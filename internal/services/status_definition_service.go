package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AlanaPvart7/Proyect2/internal/platform/textutil"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const maxStatusDescriptionLength = 120

// StatusDefinitionServiceDeps bundles the collaborators of the status definition service.
type StatusDefinitionServiceDeps struct {
	Statuses repositories.StatusDefinitionRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type statusDefinitionService struct {
	repo   repositories.StatusDefinitionRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewStatusDefinitionService wires the status definition service.
func NewStatusDefinitionService(deps StatusDefinitionServiceDeps) (StatusDefinitionService, error) {
	if deps.Statuses == nil {
		return nil, errors.New("status definition service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &statusDefinitionService{
		repo:   deps.Statuses,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Create adds a status. The id defaults to the slug of the description; descriptions must be unique
// ignoring case.
func (s *statusDefinitionService) Create(ctx context.Context, cmd StatusDefinitionCommand) (StatusDefinition, error) {
	if !cmd.Requester.IsAdmin {
		return StatusDefinition{}, fmt.Errorf("%w: status management requires an admin", ErrForbidden)
	}
	description := textutil.SanitizePlainText(cmd.Description, maxStatusDescriptionLength)
	if description == "" {
		return StatusDefinition{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = textutil.Slug(description)
	}
	id, err := ValidateIdentifier("status id", id)
	if err != nil {
		return StatusDefinition{}, err
	}
	if err := s.ensureUniqueDescription(ctx, id, description); err != nil {
		return StatusDefinition{}, err
	}

	now := s.clock()
	def := StatusDefinition{
		ID:          id,
		Description: description,
		Active:      cmd.Active == nil || *cmd.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, def); err != nil {
		return StatusDefinition{}, mapRepositoryError(err)
	}
	s.logger(ctx, "status_definition.created", map[string]any{"statusId": id})
	return def, nil
}

func (s *statusDefinitionService) Get(ctx context.Context, statusID string) (StatusDefinition, error) {
	statusID, err := ValidateIdentifier("status id", statusID)
	if err != nil {
		return StatusDefinition{}, err
	}
	def, err := s.repo.Get(ctx, statusID)
	if err != nil {
		return StatusDefinition{}, mapRepositoryError(err)
	}
	return def, nil
}

func (s *statusDefinitionService) List(ctx context.Context, includeInactive bool) ([]StatusDefinition, error) {
	defs, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func (s *statusDefinitionService) Update(ctx context.Context, cmd StatusDefinitionCommand) (StatusDefinition, error) {
	if !cmd.Requester.IsAdmin {
		return StatusDefinition{}, fmt.Errorf("%w: status management requires an admin", ErrForbidden)
	}
	def, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return StatusDefinition{}, err
	}
	if strings.TrimSpace(cmd.Description) == "" && cmd.Active == nil {
		return StatusDefinition{}, fmt.Errorf("%w: description or active is required", ErrInvalidInput)
	}
	if strings.TrimSpace(cmd.Description) != "" {
		description := textutil.SanitizePlainText(cmd.Description, maxStatusDescriptionLength)
		if err := s.ensureUniqueDescription(ctx, def.ID, description); err != nil {
			return StatusDefinition{}, err
		}
		def.Description = description
	}
	if cmd.Active != nil {
		def.Active = *cmd.Active
	}
	def.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, def); err != nil {
		return StatusDefinition{}, mapRepositoryError(err)
	}
	s.logger(ctx, "status_definition.updated", map[string]any{"statusId": def.ID, "active": def.Active})
	return def, nil
}

func (s *statusDefinitionService) Deactivate(ctx context.Context, statusID string, requester Requester) (StatusDefinition, error) {
	inactive := false
	return s.Update(ctx, StatusDefinitionCommand{ID: statusID, Active: &inactive, Requester: requester})
}

func (s *statusDefinitionService) Seed(ctx context.Context, definitions map[string]string) (int, error) {
	ids := make([]string, 0, len(definitions))
	for id := range definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	created := 0
	now := s.clock()
	for _, raw := range ids {
		id, err := ValidateIdentifier("status id", raw)
		if err != nil {
			return created, err
		}
		if _, err := s.repo.Get(ctx, id); err == nil {
			continue
		} else if mapped := mapRepositoryError(err); !errors.Is(mapped, ErrNotFound) {
			return created, mapped
		}
		description := textutil.SanitizePlainText(definitions[raw], maxStatusDescriptionLength)
		if description == "" {
			description = id
		}
		def := StatusDefinition{ID: id, Description: description, Active: true, CreatedAt: now, UpdatedAt: now}
		if err := s.repo.Insert(ctx, def); err != nil {
			mapped := mapRepositoryError(err)
			if errors.Is(mapped, ErrConflict) {
				continue
			}
			return created, mapped
		}
		created++
	}
	if created > 0 {
		s.logger(ctx, "status_definition.seeded", map[string]any{"created": created})
	}
	return created, nil
}

func (s *statusDefinitionService) ensureUniqueDescription(ctx context.Context, id, description string) error {
	existing, err := s.repo.List(ctx, true)
	if err != nil {
		return mapRepositoryError(err)
	}
	key := textutil.FoldKey(description)
	for _, def := range existing {
		if def.ID != id && textutil.FoldKey(def.Description) == key {
			return fmt.Errorf("%w: status %s already uses description %q", ErrConflict, def.ID, def.Description)
		}
	}
	return nil
}
