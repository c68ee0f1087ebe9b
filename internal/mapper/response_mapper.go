package mapper

import (
	"membership-ledger-be/internal/dto"
	"membership-ledger-be/internal/entity"
)

// PlanToResponse converts entity to plan response DTO
func PlanToResponse(p *entity.MembershipPlan) *dto.MembershipPlanResponse {
	if p == nil {
		return nil
	}
	return &dto.MembershipPlanResponse{
		Id:                p.Id,
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.StringFixed(2),
		Currency:          p.Currency,
		IntervalCount:     p.IntervalCount,
		AllowancePerCycle: p.AllowancePerCycle,
	}
}

func PlansToResponse(plans []*entity.MembershipPlan) []*dto.MembershipPlanResponse {
	res := make([]*dto.MembershipPlanResponse, 0, len(plans))
	for _, p := range plans {
		res = append(res, PlanToResponse(p))
	}
	return res
}

// CoverageToResponse renders money with two decimals
func CoverageToResponse(r *entity.CoverageResult) *dto.CoverageResponse {
	if r == nil {
		return nil
	}
	return &dto.CoverageResponse{
		IsCovered:          r.IsCovered,
		CoverageType:       string(r.CoverageType),
		OriginalPrice:      r.OriginalPrice.StringFixed(2),
		CoveredAmount:      r.CoveredAmount.StringFixed(2),
		PatientPaid:        r.PatientPaid.StringFixed(2),
		AllowanceDeducted:  r.AllowanceDeducted,
		RemainingAllowance: r.RemainingAllowance,
		Reason:             r.Reason,
		SubscriptionId:     r.SubscriptionId,
		CycleId:            r.CycleId,
		CoverageId:         r.CoverageId,
	}
}

func AllowanceStatusToResponse(s *entity.AllowanceStatus) *dto.AllowanceStatusResponse {
	if s == nil {
		return nil
	}
	return &dto.AllowanceStatusResponse{
		SubscriptionId:     s.SubscriptionId,
		SubscriptionStatus: string(s.SubscriptionStatus),
		PlanId:             s.PlanId,
		CycleId:            s.CycleId,
		AllowanceGranted:   s.AllowanceGranted,
		AllowanceUsed:      s.AllowanceUsed,
		AllowanceRemaining: s.AllowanceRemaining,
		CycleStart:         s.CycleStart,
		CycleEnd:           s.CycleEnd,
		ResetDate:          s.ResetDate,
		IsActive:           s.IsActive,
	}
}

func AllowanceEventsToResponse(evts []*entity.AllowanceEvent) []*dto.AllowanceEventResponse {
	res := make([]*dto.AllowanceEventResponse, 0, len(evts))
	for _, e := range evts {
		res = append(res, &dto.AllowanceEventResponse{
			Id:              e.Id,
			CycleId:         e.CycleId,
			EventType:       string(e.EventType),
			AppointmentId:   e.AppointmentId,
			AmountChanged:   e.AmountChanged,
			PreviousBalance: e.PreviousBalance,
			NewBalance:      e.NewBalance,
			Reason:          e.Reason,
			Metadata:        e.Metadata,
			CreatedAt:       e.CreatedAt,
		})
	}
	return res
}

func CycleVerificationToResponse(v *entity.CycleVerification) *dto.CycleVerificationResponse {
	if v == nil {
		return nil
	}
	return &dto.CycleVerificationResponse{
		CycleId:    v.CycleId,
		Stored:     dto.CycleBalanceResponse(v.Stored),
		Replayed:   dto.CycleBalanceResponse(v.Replayed),
		EventCount: v.EventCount,
		Consistent: v.Consistent,
	}
}
