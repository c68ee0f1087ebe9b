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

type AppointmentCoverageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MembershipMapper
}

func NewAppointmentCoverageRepository(db *gorm.DB) contract.AppointmentCoverageRepository {
	return &AppointmentCoverageRepositoryImpl{
		db:     db,
		mapper: mapper.NewMembershipMapper(),
	}
}

func (r *AppointmentCoverageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *AppointmentCoverageRepositoryImpl) Create(ctx context.Context, coverage *entity.AppointmentCoverage) error {
	m := r.mapper.CoverageToModel(coverage)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return TranslateError(err, "create appointment coverage")
	}
	*coverage = *r.mapper.CoverageToEntity(m)
	return nil
}

func (r *AppointmentCoverageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.AppointmentCoverage, error) {
	var m model.AppointmentCoverage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, TranslateError(err, "find appointment coverage")
	}
	return r.mapper.CoverageToEntity(&m), nil
}

func (r *AppointmentCoverageRepositoryImpl) MarkRestored(ctx context.Context, coverage *entity.AppointmentCoverage) error {
	result := r.db.WithContext(ctx).Model(&model.AppointmentCoverage{}).
		Where("id = ? AND restored_at IS NULL", coverage.Id).
		Updates(map[string]interface{}{
			"covered_amount": coverage.CoveredAmount,
			"patient_paid":   coverage.PatientPaid,
			"coverage_type":  string(coverage.CoverageType),
			"restored_at":    coverage.RestoredAt,
		})
	if result.Error != nil {
		return TranslateError(result.Error, "mark appointment coverage restored")
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(entity.ErrConcurrencyConflict, "appointment coverage %s already restored", coverage.Id)
	}
	return nil
}
