package mapper

import (
	"encoding/json"

	"membership-ledger-be/internal/entity"
	"membership-ledger-be/internal/model"

	"gorm.io/datatypes"
)

type MembershipMapper struct{}

func NewMembershipMapper() *MembershipMapper {
	return &MembershipMapper{}
}

func (m *MembershipMapper) PlanToEntity(p *model.MembershipPlan) *entity.MembershipPlan {
	if p == nil {
		return nil
	}
	return &entity.MembershipPlan{
		Id:                p.Id,
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		Currency:          p.Currency,
		IntervalCount:     p.IntervalCount,
		AllowancePerCycle: p.AllowancePerCycle,
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (m *MembershipMapper) PlanToModel(p *entity.MembershipPlan) *model.MembershipPlan {
	if p == nil {
		return nil
	}
	return &model.MembershipPlan{
		Id:                p.Id,
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price,
		Currency:          p.Currency,
		IntervalCount:     p.IntervalCount,
		AllowancePerCycle: p.AllowancePerCycle,
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (m *MembershipMapper) SubscriptionToEntity(s *model.MembershipSubscription) *entity.MembershipSubscription {
	if s == nil {
		return nil
	}
	return &entity.MembershipSubscription{
		Id:                     s.Id,
		PatientId:              s.PatientId,
		PlanId:                 s.PlanId,
		ProviderSubscriptionId: s.ProviderSubscriptionId,
		ProviderCustomerId:     s.ProviderCustomerId,
		Status:                 entity.SubscriptionStatus(s.Status),
		CurrentPeriodStart:     s.CurrentPeriodStart,
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		ActivatedAt:            s.ActivatedAt,
		CancelledAt:            s.CancelledAt,
		EndsAt:                 s.EndsAt,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (m *MembershipMapper) SubscriptionToModel(s *entity.MembershipSubscription) *model.MembershipSubscription {
	if s == nil {
		return nil
	}
	return &model.MembershipSubscription{
		Id:                     s.Id,
		PatientId:              s.PatientId,
		PlanId:                 s.PlanId,
		ProviderSubscriptionId: s.ProviderSubscriptionId,
		ProviderCustomerId:     s.ProviderCustomerId,
		Status:                 string(s.Status),
		CurrentPeriodStart:     s.CurrentPeriodStart,
		CurrentPeriodEnd:       s.CurrentPeriodEnd,
		ActivatedAt:            s.ActivatedAt,
		CancelledAt:            s.CancelledAt,
		EndsAt:                 s.EndsAt,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (m *MembershipMapper) CycleToEntity(c *model.AllowanceCycle) *entity.AllowanceCycle {
	if c == nil {
		return nil
	}
	return &entity.AllowanceCycle{
		Id:                 c.Id,
		SubscriptionId:     c.SubscriptionId,
		CycleStart:         c.CycleStart,
		CycleEnd:           c.CycleEnd,
		AllowanceGranted:   c.AllowanceGranted,
		AllowanceUsed:      c.AllowanceUsed,
		AllowanceRemaining: c.AllowanceRemaining,
		IsActive:           c.IsActive,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func (m *MembershipMapper) CycleToModel(c *entity.AllowanceCycle) *model.AllowanceCycle {
	if c == nil {
		return nil
	}
	return &model.AllowanceCycle{
		Id:                 c.Id,
		SubscriptionId:     c.SubscriptionId,
		CycleStart:         c.CycleStart,
		CycleEnd:           c.CycleEnd,
		AllowanceGranted:   c.AllowanceGranted,
		AllowanceUsed:      c.AllowanceUsed,
		AllowanceRemaining: c.AllowanceRemaining,
		IsActive:           c.IsActive,
		Version:            c.Version,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func (m *MembershipMapper) CoverageToEntity(c *model.AppointmentCoverage) *entity.AppointmentCoverage {
	if c == nil {
		return nil
	}
	return &entity.AppointmentCoverage{
		Id:             c.Id,
		AppointmentId:  c.AppointmentId,
		SubscriptionId: c.SubscriptionId,
		CycleId:        c.CycleId,
		AllowanceUnits: c.AllowanceUnits,
		OriginalPrice:  c.OriginalPrice,
		CoveredAmount:  c.CoveredAmount,
		PatientPaid:    c.PatientPaid,
		CoverageType:   entity.CoverageType(c.CoverageType),
		RestoredAt:     c.RestoredAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (m *MembershipMapper) CoverageToModel(c *entity.AppointmentCoverage) *model.AppointmentCoverage {
	if c == nil {
		return nil
	}
	return &model.AppointmentCoverage{
		Id:             c.Id,
		AppointmentId:  c.AppointmentId,
		SubscriptionId: c.SubscriptionId,
		CycleId:        c.CycleId,
		AllowanceUnits: c.AllowanceUnits,
		OriginalPrice:  c.OriginalPrice,
		CoveredAmount:  c.CoveredAmount,
		PatientPaid:    c.PatientPaid,
		CoverageType:   string(c.CoverageType),
		RestoredAt:     c.RestoredAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func (m *MembershipMapper) EventToEntity(e *model.AllowanceEvent) *entity.AllowanceEvent {
	if e == nil {
		return nil
	}
	var metadata map[string]interface{}
	if len(e.Metadata) > 0 {
		// Metadata is informational; a malformed blob must not hide the event itself.
		_ = json.Unmarshal(e.Metadata, &metadata)
	}
	return &entity.AllowanceEvent{
		Id:              e.Id,
		SubscriptionId:  e.SubscriptionId,
		CycleId:         e.CycleId,
		EventType:       entity.AllowanceEventType(e.EventType),
		AppointmentId:   e.AppointmentId,
		AmountChanged:   e.AmountChanged,
		PreviousBalance: e.PreviousBalance,
		NewBalance:      e.NewBalance,
		Reason:          e.Reason,
		Metadata:        metadata,
		Sequence:        e.Sequence,
		CreatedAt:       e.CreatedAt,
	}
}

func (m *MembershipMapper) EventToModel(e *entity.AllowanceEvent) (*model.AllowanceEvent, error) {
	if e == nil {
		return nil, nil
	}
	var metadata datatypes.JSON
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = datatypes.JSON(raw)
	}
	return &model.AllowanceEvent{
		Id:              e.Id,
		SubscriptionId:  e.SubscriptionId,
		CycleId:         e.CycleId,
		EventType:       string(e.EventType),
		AppointmentId:   e.AppointmentId,
		AmountChanged:   e.AmountChanged,
		PreviousBalance: e.PreviousBalance,
		NewBalance:      e.NewBalance,
		Reason:          e.Reason,
		Metadata:        metadata,
		Sequence:        e.Sequence,
		CreatedAt:       e.CreatedAt,
	}, nil
}
