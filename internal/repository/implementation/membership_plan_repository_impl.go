package implementation

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/mapper"
	"membership-ledger-be/internal/model"
	"membership-ledger-be/internal/repository/contract"
	"membership-ledger-be/internal/repository/specification"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type MembershipPlanRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewMembershipPlanRepository(db *gorm.DB) contract.MembershipPlanRepository {
	return &MembershipPlanRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *MembershipPlanRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MembershipPlanRepositoryImpl) Create(ctx context.Context, plan *entity.MembershipPlan) error {
	m := r.mapper.PlanToModel(plan)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return TranslateError(err, "create membership plan")
	}
	*plan = *r.mapper.PlanToEntity(m)
	return nil
}

func (r *MembershipPlanRepositoryImpl) Update(ctx context.Context, plan *entity.MembershipPlan) error {
	m := r.mapper.PlanToModel(plan)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return TranslateError(err, "update membership plan")
	}
	*plan = *r.mapper.PlanToEntity(m)
	return nil
}

func (r *MembershipPlanRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MembershipPlan, error) {
	var m model.MembershipPlan
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, TranslateError(err, "find membership plan")
	}
	return r.mapper.PlanToEntity(&m), nil
}

func (r *MembershipPlanRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MembershipPlan, error) {
	var models []*model.MembershipPlan
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, TranslateError(err, "find membership plans")
	}
	entities := make([]*entity.MembershipPlan, len(models))
	for i, m := range models {
		entities[i] = r.mapper.PlanToEntity(m)
	}
	return entities, nil
}
