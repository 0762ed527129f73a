package services

import (
	"strings"
	"time"

	"aidirectory/models"
)

const (
	PlanFree     = "free"
	PlanPremium  = "premium"
	PlanBusiness = "business"

	BillingPeriod = 30 * 24 * time.Hour
)

type Plan struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Tier     models.Tier `json:"tier"`
	Price    float64     `json:"price"`
	Currency string      `json:"currency"`
	Interval string      `json:"interval"`
	Features []string    `json:"features"`
}

func (p Plan) Paid() bool { return p.Price > 0 }

var plans = []Plan{
	{
		ID:       PlanFree,
		Name:     "Free",
		Tier:     models.TierFree,
		Price:    0,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Access to public AI tools",
			"Basic search and filtering",
			"Read reviews",
		},
	},
	{
		ID:       PlanPremium,
		Name:     "Premium",
		Tier:     models.TierPremium,
		Price:    9.99,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Everything in Free",
			"Access to premium AI tools",
			"Write reviews",
			"Save favorite tools",
			"Export tool lists",
		},
	},
	{
		ID:       PlanBusiness,
		Name:     "Business",
		Tier:     models.TierBusiness,
		Price:    29.99,
		Currency: "USD",
		Interval: "month",
		Features: []string{
			"Everything in Premium",
			"Access to business-only AI tools",
			"Implementation guides",
			"Priority support",
		},
	},
}

// Plans returns the plan catalog in ascending price order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// LookupPlan finds a plan by id, case-insensitively.
func LookupPlan(id string) (Plan, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanForTier maps a tier back to its plan.
func PlanForTier(t models.Tier) Plan {
	for _, p := range plans {
		if p.Tier == t {
			return p
		}
	}
	return plans[0]
}

// Change builds the store change for moving userID onto p at now.
func (p Plan) Change(userID int64, paymentMethod string, now time.Time) models.SubscriptionChange {
	ch := models.SubscriptionChange{
		UserID:          userID,
		PlanID:          p.ID,
		Tier:            p.Tier,
		Paid:            p.Paid(),
		Amount:          p.Price,
		Currency:        p.Currency,
		PaymentMethodID: paymentMethod,
		Start:           now,
	}
	if p.Paid() {
		end := now.Add(BillingPeriod)
		ch.End = &end
	}
	return ch
}
