package memory

import (
	"time"

	"membership-ledger-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

const allPlansKey = "plans:active"

// PlanCache keeps catalog reads off the database. Entries are copies, callers may mutate them.
type PlanCache struct {
	cache *cache.Cache
}

func NewPlanCache(ttl time.Duration) *PlanCache {
	return &PlanCache{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *PlanCache) SavePlan(plan *entity.MembershipPlan) {
	cp := *plan
	r.cache.Set("plan:"+plan.Code, &cp, cache.DefaultExpiration)
}

func (r *PlanCache) GetPlan(code string) (*entity.MembershipPlan, bool) {
	if x, found := r.cache.Get("plan:" + code); found {
		cp := *x.(*entity.MembershipPlan)
		return &cp, true
	}
	return nil, false
}

func (r *PlanCache) SaveActivePlans(plans []*entity.MembershipPlan) {
	cp := make([]entity.MembershipPlan, len(plans))
	for i, p := range plans {
		cp[i] = *p
	}
	r.cache.Set(allPlansKey, cp, cache.DefaultExpiration)
}

func (r *PlanCache) GetActivePlans() ([]*entity.MembershipPlan, bool) {
	x, found := r.cache.Get(allPlansKey)
	if !found {
		return nil, false
	}
	stored := x.([]entity.MembershipPlan)
	plans := make([]*entity.MembershipPlan, len(stored))
	for i := range stored {
		p := stored[i]
		plans[i] = &p
	}
	return plans, true
}

func (r *PlanCache) Flush() {
	r.cache.Flush()
}
