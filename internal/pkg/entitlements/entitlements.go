package entitlements

import (
	"strings"

	"github.com/ManuelReschke/Scribefox/app/models"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanStarter Plan = "starter"
	PlanGrowth  Plan = "growth"
	PlanPro     Plan = "pro"
)

// DefaultPaidPlan is used when a billing price cannot be mapped to a plan.
const DefaultPaidPlan = PlanStarter

// Normalize maps arbitrary input to a known plan, falling back to free.
func Normalize(plan string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(plan))); p {
	case PlanStarter, PlanGrowth, PlanPro:
		return p
	default:
		return PlanFree
	}
}

// IsPaid reports whether the plan is a paid tier.
func IsPaid(plan Plan) bool {
	return Normalize(string(plan)) != PlanFree
}

// ArticlesPerPeriod returns the default article quota of a plan.
func ArticlesPerPeriod(plan Plan) int {
	switch Normalize(string(plan)) {
	case PlanPro:
		return 30
	case PlanGrowth:
		return 12
	case PlanStarter:
		return 4
	default:
		return 0
	}
}

// EffectiveQuota returns the article quota the user may consume right now.
// The stored snapshot wins over the plan default when it carries a quota.
func EffectiveQuota(us *models.UserSettings) int {
	if us == nil {
		return 0
	}
	p := Normalize(us.Plan)
	if p == PlanFree {
		return 0
	}
	if us.ArticlesPerPeriod > 0 {
		return us.ArticlesPerPeriod
	}
	return ArticlesPerPeriod(p)
}

// CanGenerate reports whether used articles stay below the user's quota.
func CanGenerate(us *models.UserSettings, used int) bool {
	return used < EffectiveQuota(us)
}
