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

type MembershipSubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewMembershipSubscriptionRepository(db *gorm.DB) contract.MembershipSubscriptionRepository {
	return &MembershipSubscriptionRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *MembershipSubscriptionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MembershipSubscriptionRepositoryImpl) Create(ctx context.Context, subscription *entity.MembershipSubscription) error {
	m := r.mapper.SubscriptionToModel(subscription)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return TranslateError(err, "create membership subscription")
	}
	*subscription = *r.mapper.SubscriptionToEntity(m)
	return nil
}

func (r *MembershipSubscriptionRepositoryImpl) Update(ctx context.Context, subscription *entity.MembershipSubscription) error {
	m := r.mapper.SubscriptionToModel(subscription)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return TranslateError(err, "update membership subscription")
	}
	*subscription = *r.mapper.SubscriptionToEntity(m)
	return nil
}

func (r *MembershipSubscriptionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MembershipSubscription, error) {
	var m model.MembershipSubscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, TranslateError(err, "find membership subscription")
	}
	return r.mapper.SubscriptionToEntity(&m), nil
}

func (r *MembershipSubscriptionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.MembershipSubscription, error) {
	var models []*model.MembershipSubscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, TranslateError(err, "find membership subscriptions")
	}
	entities := make([]*entity.MembershipSubscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SubscriptionToEntity(m)
	}
	return entities, nil
}
