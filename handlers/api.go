package handlers

import (
	"context"
	"errors"
	"time"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/config"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/services"

	"go.uber.org/zap"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, p models.UserPatch) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, int, error)
	LogActivity(ctx context.Context, userID int64, activityType, details string) error
	ListActivity(ctx context.Context, limit int) ([]models.ActivityLog, error)
}

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, id int64, p models.CategoryPatch) (*models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	ListIndustries(ctx context.Context) ([]models.Industry, error)
	GetIndustry(ctx context.Context, id int64) (*models.Industry, error)
	CreateIndustry(ctx context.Context, i *models.Industry) error
	UpdateIndustry(ctx context.Context, id int64, p models.IndustryPatch) (*models.Industry, error)
	DeleteIndustry(ctx context.Context, id int64) error
}

type ToolStore interface {
	ListTools(ctx context.Context, f models.ToolFilter) ([]models.Tool, int, error)
	GetTool(ctx context.Context, id int64) (*models.Tool, error)
	GetToolDetail(ctx context.Context, id int64) (*models.Tool, error)
	CreateTool(ctx context.Context, in models.ToolInput) (*models.Tool, error)
	UpdateTool(ctx context.Context, id int64, p models.ToolPatch) (*models.Tool, error)
	DeleteTool(ctx context.Context, id int64) (string, error)
	AddFavorite(ctx context.Context, userID, toolID int64) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, toolID int64) error
	ListFavorites(ctx context.Context, userID int64, page models.Page) ([]models.Favorite, int, error)
	ListGuides(ctx context.Context, toolID int64) ([]models.Guide, error)
	ListAllGuides(ctx context.Context, f models.GuideFilter) ([]models.Guide, int, error)
	GetGuide(ctx context.Context, id int64) (*models.Guide, error)
	CreateGuide(ctx context.Context, g *models.Guide) error
	UpdateGuide(ctx context.Context, id int64, p models.GuidePatch) (*models.Guide, error)
	DeleteGuide(ctx context.Context, id int64) error
}

type ReviewStore interface {
	ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error)
	ListAllReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, int, error)
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	CreateReview(ctx context.Context, r *models.Review) error
	UpdateReview(ctx context.Context, id int64, p models.ReviewPatch) (*models.Review, error)
	DeleteReview(ctx context.Context, id int64) error
}

type BillingStore interface {
	ChangeSubscription(ctx context.Context, ch models.SubscriptionChange) (*models.Subscription, *models.PaymentTransaction, error)
	ActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	LatestTransaction(ctx context.Context, userID int64) (*models.PaymentTransaction, error)
	CancelSubscription(ctx context.Context, userID int64, immediate bool, now time.Time) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, f models.SubscriptionFilter) ([]models.Subscription, int, error)
}

type StatsStore interface {
	DashboardStats(ctx context.Context, now time.Time) (*models.DashboardStats, error)
	UserStats(ctx context.Context, now time.Time, days int) (*models.UserStats, error)
	ToolStats(ctx context.Context, top int) (*models.ToolStats, error)
	RevenueStats(ctx context.Context, now time.Time, days int) (*models.RevenueStats, error)
}

// Store is everything the HTTP layer reads and writes. *db.Store satisfies it.
type Store interface {
	UserStore
	CatalogStore
	ToolStore
	ReviewStore
	BillingStore
	StatsStore
}

var _ Store = (*db.Store)(nil)

// Notifier receives events that trigger email or chat messages.
type Notifier interface {
	UserRegistered(u *models.User)
	Subscribed(u *models.User, p services.Plan, sub *models.Subscription, txn *models.PaymentTransaction)
	Canceled(u *models.User, sub *models.Subscription, immediate bool)
}

type Deps struct {
	Store    Store
	DB       Pinger
	Tokens   *services.TokenIssuer
	Uploads  *services.Uploader
	Notify   Notifier
	Cache    cache.KV
	CacheTTL time.Duration
	Metrics  *middleware.Metrics
	Features config.Features
	Logger   *zap.Logger
}

// API holds the collaborators shared by every handler.
type API struct {
	store    Store
	db       Pinger
	tokens   *services.TokenIssuer
	uploads  *services.Uploader
	notify   Notifier
	cache    cache.KV
	cacheTTL time.Duration
	metrics  *middleware.Metrics
	features config.Features
	logger   *zap.Logger
	now      func() time.Time
}

func NewAPI(d Deps) *API {
	kv := d.Cache
	if kv == nil {
		kv = cache.Nop{}
	}
	return &API{
		store:    d.Store,
		db:       d.DB,
		tokens:   d.Tokens,
		uploads:  d.Uploads,
		notify:   d.Notify,
		cache:    kv,
		cacheTTL: d.CacheTTL,
		metrics:  d.Metrics,
		features: d.Features,
		logger:   d.Logger,
		now:      time.Now,
	}
}

// notFound translates db.ErrNotFound into an entity-specific error.
func notFound(err error, code, message string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound(code, message)
	}
	return err
}

// logActivity records an audit entry. Failures never fail the request.
func (a *API) logActivity(ctx context.Context, userID int64, activityType, details string) {
	if err := a.store.LogActivity(ctx, userID, activityType, details); err != nil {
		a.logger.Warn("failed to record activity",
			zap.Int64("user_id", userID),
			zap.String("activity", activityType),
			zap.Error(err))
	}
}

// invalidate drops cached admin aggregates after a write that affects them.
func (a *API) invalidate(ctx context.Context, keys ...string) {
	if err := a.cache.Delete(ctx, keys...); err != nil {
		a.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
