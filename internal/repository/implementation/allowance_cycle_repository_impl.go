package implementation

import (
	"context"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/mapper"
	"membership-ledger-be/internal/model"
	"membership-ledger-be/internal/repository/contract"
	"membership-ledger-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type AllowanceCycleRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewAllowanceCycleRepository(db *gorm.DB) contract.AllowanceCycleRepository {
	return &AllowanceCycleRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *AllowanceCycleRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AllowanceCycleRepositoryImpl) Create(ctx context.Context, cycle *entity.AllowanceCycle) error {
	if err := cycle.CheckBalance(); err != nil {
		return err
	}
	m := r.mapper.CycleToModel(cycle)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return TranslateError(err, "create allowance cycle")
	}
	*cycle = *r.mapper.CycleToEntity(m)
	return nil
}

func (r *AllowanceCycleRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AllowanceCycle, error) {
	var m model.AllowanceCycle
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, TranslateError(err, "find allowance cycle")
	}
	return r.mapper.CycleToEntity(&m), nil
}

func (r *AllowanceCycleRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AllowanceCycle, error) {
	var models []*model.AllowanceCycle
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, TranslateError(err, "find allowance cycles")
	}
	entities := make([]*entity.AllowanceCycle, len(models))
	for i, m := range models {
		entities[i] = r.mapper.CycleToEntity(m)
	}
	return entities, nil
}

// FindActiveForUpdate locks the subscription's active cycle. Under READ COMMITTED a
// lock wait on a cycle that a renewal deactivates ends with the row filtered out, and
// the replacement is outside that statement's snapshot. A second statement sees it.
func (r *AllowanceCycleRepositoryImpl) FindActiveForUpdate(ctx context.Context, subscriptionId uuid.UUID) (*entity.AllowanceCycle, error) {
	specs := []specification.Specification{
		specification.BySubscriptionID{SubscriptionID: subscriptionId},
		specification.ActiveCycle{},
		specification.ForUpdate{},
	}
	cycle, err := r.FindOne(ctx, specs...)
	if err != nil || cycle != nil {
		return cycle, err
	}
	return r.FindOne(ctx, specs...)
}

func (r *AllowanceCycleRepositoryImpl) UpdateBalance(ctx context.Context, cycle *entity.AllowanceCycle) error {
	if err := cycle.CheckBalance(); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&model.AllowanceCycle{}).
		Where("id = ? AND version = ?", cycle.Id, cycle.Version).
		Updates(map[string]interface{}{
			"allowance_used":      cycle.AllowanceUsed,
			"allowance_remaining": cycle.AllowanceRemaining,
			"version":             cycle.Version + 1,
		})
	if result.Error != nil {
		return TranslateError(result.Error, "update allowance cycle balance")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(entity.ErrConcurrencyConflict, "allowance cycle %s changed since version %d", cycle.Id, cycle.Version)
	}
	cycle.Version++
	return nil
}

func (r *AllowanceCycleRepositoryImpl) Deactivate(ctx context.Context, subscriptionId uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&model.AllowanceCycle{}).
		Where("subscription_id = ? AND is_active = ?", subscriptionId, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"version":   gorm.Expr("version + 1"),
		}).Error
	return TranslateError(err, "deactivate allowance cycle")
}
