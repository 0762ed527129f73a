package models

import (
	"encoding/json"
	"time"
)

// AccessLevel is the per-tool visibility requirement.
type AccessLevel string

const (
	AccessPublic   AccessLevel = "Public"
	AccessPremium  AccessLevel = "Premium Only"
	AccessBusiness AccessLevel = "Business Only"
)

var AccessLevels = []AccessLevel{AccessPublic, AccessPremium, AccessBusiness}

func (a AccessLevel) Valid() bool {
	switch a {
	case AccessPublic, AccessPremium, AccessBusiness:
		return true
	}
	return false
}

// NamedRef is an {id, name} pair used for lightweight embedding.
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	ToolCount   int       `json:"tool_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryPatch struct {
	Name        *string
	Description *string
	Icon        *string
}

type Industry struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type IndustryPatch struct {
	Name        *string
	Description *string
}

type Tool struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	CategoryID        *int64          `json:"category_id"`
	Category          *Category       `json:"category"`
	WebsiteURL        string          `json:"website_url"`
	ImagePath         string          `json:"image_path"`
	AccessLevel       AccessLevel     `json:"access_level"`
	Rating            float64         `json:"rating"`
	BusinessUtility   string          `json:"business_utility"`
	PricePointType    string          `json:"price_point_type"`
	PricePointDetails json.RawMessage `json:"price_point_details"`
	Industries        []Industry      `json:"industries"`
	Guides            []Guide         `json:"guides,omitempty"`
	Reviews           []Review        `json:"reviews,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToolInput is everything needed to insert a tool with its links and guides.
type ToolInput struct {
	Name              string
	Description       string
	CategoryID        int64
	WebsiteURL        string
	ImagePath         string
	AccessLevel       AccessLevel
	BusinessUtility   string
	PricePointType    string
	PricePointDetails json.RawMessage
	IndustryIDs       []int64
	Guides            []GuideInput
	AuthorID          int64
}

type ToolPatch struct {
	Name              *string
	Description       *string
	CategoryID        *int64
	WebsiteURL        *string
	ImagePath         *string
	AccessLevel       *AccessLevel
	BusinessUtility   *string
	PricePointType    *string
	PricePointDetails json.RawMessage
	// IndustryIDs replaces every link when non-nil.
	IndustryIDs []int64
}

const (
	SortName      = "name"
	SortRating    = "rating"
	SortCreatedAt = "created_at"
)

type ToolFilter struct {
	Search      string
	CategoryID  int64
	IndustryID  int64
	AccessLevel AccessLevel
	Sort        string
	Desc        bool
	Page        Page
}

type Review struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ToolID     int64     `json:"tool_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	IsVerified bool      `json:"is_verified"`
	User       *UserRef  `json:"user,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ReviewPatch struct {
	Rating     *int
	Comment    *string
	IsVerified *bool
}

// ReviewFilter narrows a review listing. A zero ToolID matches every tool
// and a nil Verified matches both states.
type ReviewFilter struct {
	ToolID   int64
	Verified *bool
	Sort     string
	Desc     bool
	Page     Page
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ToolID    int64     `json:"tool_id"`
	Tool      *Tool     `json:"tool,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Guide struct {
	ID         int64     `json:"id"`
	ToolID     int64     `json:"tool_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	AuthorID   *int64    `json:"author_id,omitempty"`
	Author     *UserRef  `json:"author,omitempty"`
	GuideType  string    `json:"guide_type"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type GuideFilter struct {
	ToolID int64
	Page   Page
}

type GuideInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	GuideType  string `json:"guide_type"`
	OrderIndex int    `json:"order_index"`
}

type GuidePatch struct {
	Title      *string
	Content    *string
	GuideType  *string
	OrderIndex *int
}

const DefaultGuideType = "Tutorial"

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

type Subscription struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	PlanID             string    `json:"plan_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end"`
	PaymentMethodID    string    `json:"payment_method_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SubscriptionChange moves a user onto a plan. Paid changes also record a
// subscription row and a completed payment transaction.
type SubscriptionChange struct {
	UserID          int64
	PlanID          string
	Tier            Tier
	Paid            bool
	Amount          float64
	Currency        string
	PaymentMethodID string
	Start           time.Time
	End             *time.Time
}

type SubscriptionFilter struct {
	Status string
	PlanID string
	Page   Page
}

const TransactionCompleted = "completed"

type PaymentTransaction struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	SubscriptionTier Tier      `json:"subscription_tier"`
	TransactionDate  time.Time `json:"transaction_date"`
	CreatedAt        time.Time `json:"created_at"`
}
