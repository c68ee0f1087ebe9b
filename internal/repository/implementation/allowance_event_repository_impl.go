package implementation

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/mapper"
	"membership-ledger-be/internal/model"
	"membership-ledger-be/internal/repository/contract"
	"membership-ledger-be/internal/repository/scope"
	"membership-ledger-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type AllowanceEventRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewAllowanceEventRepository(db *gorm.DB) contract.AllowanceEventRepository {
	return &AllowanceEventRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *AllowanceEventRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AllowanceEventRepositoryImpl) Append(ctx context.Context, event *entity.AllowanceEvent) error {
	m, err := r.mapper.EventToModel(event)
	if err != nil {
		return errors.Wrap(err, "encode allowance event metadata")
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return TranslateError(err, "append allowance event")
	}
	*event = *r.mapper.EventToEntity(m)
	return nil
}

// FindByCycle returns the cycle's events oldest first unless specs reorder them.
func (r *AllowanceEventRepositoryImpl) FindByCycle(ctx context.Context, cycleId uuid.UUID, specs ...specification.Specification) ([]*entity.AllowanceEvent, error) {
	query := r.db.WithContext(ctx).Scopes(scope.OrderBySequenceAsc)
	all := append([]specification.Specification{specification.ByCycleID{CycleID: cycleId}}, specs...)
	return r.find(query, all...)
}

func (r *AllowanceEventRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AllowanceEvent, error) {
	return r.find(r.db.WithContext(ctx), specs...)
}

func (r *AllowanceEventRepositoryImpl) find(db *gorm.DB, specs ...specification.Specification) ([]*entity.AllowanceEvent, error) {
	var models []*model.AllowanceEvent
	query := r.applySpecifications(db, specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, TranslateError(err, "find allowance events")
	}
	entities := make([]*entity.AllowanceEvent, len(models))
	for i, m := range models {
		entities[i] = r.mapper.EventToEntity(m)
	}
	return entities, nil
}
