package services

import (
	"time"

	"aidirectory/apperr"
	"aidirectory/models"
)

// RequiredTier is the minimum tier that may read a tool with level a.
func RequiredTier(a models.AccessLevel) models.Tier {
	switch a {
	case models.AccessPremium:
		return models.TierPremium
	case models.AccessBusiness:
		return models.TierBusiness
	default:
		return models.TierFree
	}
}

// CheckToolAccess decides whether caller may read a tool with level a.
// caller is nil for anonymous requests.
func CheckToolAccess(a models.AccessLevel, caller *models.User, now time.Time) error {
	required := RequiredTier(a)
	if required == models.TierFree {
		return nil
	}
	if caller == nil {
		return apperr.AuthenticationRequired()
	}
	if !caller.EffectiveTier(now).AtLeast(required) {
		return apperr.SubscriptionRequired(string(required))
	}
	return nil
}
