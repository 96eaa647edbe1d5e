package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/AlanaPvart7/Proyect2/internal/domain"
	pfirestore "github.com/AlanaPvart7/Proyect2/internal/platform/firestore"
	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

type StatusDefinitionRepository struct {
	provider *pfirestore.Provider
	defs     *pfirestore.Collection[statusDefinitionDocument]
}

var _ repositories.StatusDefinitionRepository = (*StatusDefinitionRepository)(nil)

func NewStatusDefinitionRepository(provider *pfirestore.Provider) (*StatusDefinitionRepository, error) {
	if provider == nil {
		return nil, errors.New("status definition repository requires firestore provider")
	}
	return &StatusDefinitionRepository{
		provider: provider,
		defs:     pfirestore.NewCollection[statusDefinitionDocument](provider, statusDefinitionsCollection),
	}, nil
}

func (r *StatusDefinitionRepository) Insert(ctx context.Context, def domain.StatusDefinition) error {
	return r.defs.Create(ctx, def.ID, statusDefinitionDocument{
		Description: def.Description,
		Active:      def.Active,
		CreatedAt:   def.CreatedAt.UTC(),
		UpdatedAt:   def.UpdatedAt.UTC(),
	})
}

func (r *StatusDefinitionRepository) Get(ctx context.Context, statusID string) (domain.StatusDefinition, error) {
	doc, err := r.defs.Get(ctx, statusID)
	if err != nil {
		return domain.StatusDefinition{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *StatusDefinitionRepository) List(ctx context.Context, includeInactive bool) ([]domain.StatusDefinition, error) {
	docs, err := r.defs.Query(ctx, func(q firestore.Query) firestore.Query {
		if !includeInactive {
			q = q.Where("active", "==", true)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	defs := make([]domain.StatusDefinition, 0, len(docs))
	for _, doc := range docs {
		defs = append(defs, doc.Data.toDomain(doc.ID))
	}
	return defs, nil
}

// Update overwrites description and active flag. CreatedAt is preserved from the stored document.
func (r *StatusDefinitionRepository) Update(ctx context.Context, def domain.StatusDefinition) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.defs.Doc(ctx, def.ID)
		if err != nil {
			return err
		}
		current, err := r.defs.GetTx(tx, ref)
		if err != nil {
			return err
		}
		doc := current.Data
		doc.Description = def.Description
		doc.Active = def.Active
		doc.UpdatedAt = def.UpdatedAt.UTC()
		return tx.Set(ref, doc)
	})
}
