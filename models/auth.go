package models

import (
	"strings"
	"time"
)

// Tier is a subscription level. Tiers are ordered Free < Premium < Business.
type Tier string

const (
	TierFree     Tier = "Free"
	TierPremium  Tier = "Premium"
	TierBusiness Tier = "Business"
)

var tierRank = map[Tier]int{
	TierFree:     0,
	TierPremium:  1,
	TierBusiness: 2,
}

// Rank returns the position of t in the tier ordering, or -1 for unknown tiers.
func (t Tier) Rank() int {
	r, ok := tierRank[t]
	if !ok {
		return -1
	}
	return r
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t is min or above. Unknown tiers never qualify.
func (t Tier) AtLeast(min Tier) bool {
	return t.Valid() && t.Rank() >= min.Rank()
}

// ParseTier accepts tier names case-insensitively ("premium", "Premium").
func ParseTier(s string) (Tier, bool) {
	for t := range tierRank {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}

type User struct {
	ID                    int64      `json:"id"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Company               string     `json:"company"`
	JobTitle              string     `json:"job_title"`
	IndustryID            *int64     `json:"industry_id,omitempty"`
	Industry              *NamedRef  `json:"industry,omitempty"`
	SubscriptionTier      Tier       `json:"subscription_tier"`
	IsAdmin               bool       `json:"is_admin"`
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// EffectiveTier is the tier the user may use at now. A lapsed paid period
// counts as Free even before the expiry sweep rewrites the row.
func (u *User) EffectiveTier(now time.Time) Tier {
	if u.SubscriptionTier != TierFree && u.SubscriptionEndDate != nil && now.After(*u.SubscriptionEndDate) {
		return TierFree
	}
	return u.SubscriptionTier
}

func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}

// UserRef is the public projection of a user embedded in reviews and guides.
type UserRef struct {
	ID        int64  `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserPatch carries optional profile changes. Nil fields are left untouched.
type UserPatch struct {
	FirstName        *string
	LastName         *string
	Company          *string
	JobTitle         *string
	IndustryID       *int64
	SubscriptionTier *Tier
	IsAdmin          *bool
}

func (p UserPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Company == nil && p.JobTitle == nil &&
		p.IndustryID == nil && p.SubscriptionTier == nil && p.IsAdmin == nil
}

type UserFilter struct {
	Search string
	Tier   Tier
	Page   Page
}

type ActivityLog struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	User         *UserRef  `json:"user,omitempty"`
	ActivityType string    `json:"activity_type"`
	Details      string    `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	ActivityLogin            = "login"
	ActivityViewProfile      = "view_profile"
	ActivityUpdateProfile    = "update_profile"
	ActivityChangePassword   = "change_password"
	ActivityAdminUpdateUser  = "admin_update_user"
	ActivityAdminDeleteUser  = "admin_delete_user"
	ActivitySubscribe        = "subscribe"
	ActivityCancelSubscribed = "cancel_subscription"
)
