package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/entitlements"
	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
)

// PlanResolver maps a provider price to an internal plan and its quota.
type PlanResolver interface {
	Resolve(ctx context.Context, provider, priceRef string) (plan string, articles int)
}

type mappingResolver struct {
	repo     Repository
	fallback entitlements.Plan
}

// NewPlanResolver resolves through the plan mapping table. Unknown prices and
// lookup failures resolve to fallback; a paid customer is never downgraded
// because of a missing mapping.
func NewPlanResolver(repo Repository, fallback entitlements.Plan) PlanResolver {
	if !entitlements.IsPaid(fallback) {
		fallback = entitlements.DefaultPaidPlan
	}
	return &mappingResolver{repo: repo, fallback: fallback}
}

// DefaultPlanFromEnv reads BILLING_DEFAULT_PLAN.
func DefaultPlanFromEnv() entitlements.Plan {
	return entitlements.Normalize(env.GetEnv("BILLING_DEFAULT_PLAN", string(entitlements.DefaultPaidPlan)))
}

func (r *mappingResolver) Resolve(ctx context.Context, provider, priceRef string) (string, int) {
	ref := strings.TrimSpace(priceRef)
	if ref == "" {
		log.Warnf("[Billing] subscription without price, using %s", r.fallback)
		return r.defaultPlan()
	}
	m, err := r.repo.FindActivePlanMapping(ctx, provider, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing] no plan mapping for %s price %s, using %s", provider, ref, r.fallback)
		} else {
			log.Errorf("[Billing] plan mapping lookup for %s failed, using %s: %v", ref, r.fallback, err)
		}
		return r.defaultPlan()
	}
	plan := entitlements.Normalize(m.InternalPlan)
	articles := m.ArticlesPerPeriod
	if articles <= 0 {
		articles = entitlements.ArticlesPerPeriod(plan)
	}
	return string(plan), articles
}

func (r *mappingResolver) defaultPlan() (string, int) {
	return string(r.fallback), entitlements.ArticlesPerPeriod(r.fallback)
}

// NormalizeStatus maps a provider status to the closed set of billing statuses.
func NormalizeStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case models.BillingStatusTrialing, models.BillingStatusActive, models.BillingStatusPastDue,
		models.BillingStatusCanceled, models.BillingStatusIncomplete:
		return s
	case "unpaid":
		return models.BillingStatusPastDue
	case "incomplete_expired":
		return models.BillingStatusCanceled
	default:
		return models.BillingStatusIncomplete
	}
}
