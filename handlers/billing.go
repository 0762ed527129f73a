package handlers

import (
	"errors"
	"io"
	"time"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"
	"aidirectory/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubscribeRequest struct {
	PlanID          string `json:"plan_id" binding:"required"`
	PaymentMethodID string `json:"payment_method_id"`
}

type CancelRequest struct {
	CancelImmediately bool `json:"cancel_immediately"`
}

type planRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type subscriptionView struct {
	SubscriptionID     *int64                     `json:"subscription_id"`
	Plan               planRef                    `json:"plan"`
	Status             string                     `json:"status"`
	CurrentPeriodStart *time.Time                 `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time                 `json:"current_period_end"`
	CancelAtPeriodEnd  bool                       `json:"cancel_at_period_end"`
	LastTransaction    *models.PaymentTransaction `json:"last_transaction,omitempty"`
}

type subscriptionList struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Pagination    models.Pagination     `json:"pagination"`
}

func viewOf(sub *models.Subscription, p services.Plan) subscriptionView {
	return subscriptionView{
		SubscriptionID:     &sub.ID,
		Plan:               planRef{ID: p.ID, Name: p.Name},
		Status:             sub.Status,
		CurrentPeriodStart: &sub.CurrentPeriodStart,
		CurrentPeriodEnd:   &sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
}

func (a *API) billingEnabled(c *gin.Context) bool {
	if !a.features.BillingEnabled {
		response.Error(c, apperr.NotFound(apperr.CodeBillingDisabled, "Billing not enabled"))
		return false
	}
	return true
}

func (a *API) ListPlans(c *gin.Context) {
	response.OK(c, services.Plans(), "")
}

// Subscribe moves the caller onto a plan. Paid plans record a 30-day
// subscription and a completed payment; the free plan resets the tier.
func (a *API) Subscribe(c *gin.Context) {
	if !a.billingEnabled(c) {
		return
	}
	var req SubscribeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	plan, ok := services.LookupPlan(req.PlanID)
	if !ok {
		response.Error(c, apperr.NotFound(apperr.CodePlanNotFound, "Invalid plan ID"))
		return
	}

	u := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	ch := plan.Change(u.ID, req.PaymentMethodID, a.now())
	sub, txn, err := a.store.ChangeSubscription(ctx, ch)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeUserNotFound, "User not found"))
		return
	}

	u.SubscriptionTier = plan.Tier
	u.SubscriptionStartDate = &ch.Start
	u.SubscriptionEndDate = ch.End

	a.logActivity(ctx, u.ID, models.ActivitySubscribe, plan.ID)
	a.metrics.Subscribed(plan.ID)
	a.notify.Subscribed(u, plan, sub, txn)
	a.invalidate(ctx, cache.KeyDashboard)
	a.logger.Info("subscription changed", zap.Int64("user_id", u.ID), zap.String("plan", plan.ID))

	view := subscriptionView{
		Plan:               planRef{ID: plan.ID, Name: plan.Name},
		Status:             models.SubscriptionActive,
		CurrentPeriodStart: &ch.Start,
		CurrentPeriodEnd:   ch.End,
	}
	if sub != nil {
		view = viewOf(sub, plan)
		view.LastTransaction = txn
	}
	response.OK(c, view, "Subscription created successfully")
}

func (a *API) GetMySubscription(c *gin.Context) {
	u := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	sub, err := a.store.ActiveSubscription(ctx, u.ID)
	if errors.Is(err, db.ErrNotFound) {
		plan := services.PlanForTier(u.EffectiveTier(a.now()))
		response.OK(c, subscriptionView{
			Plan:               planRef{ID: plan.ID, Name: plan.Name},
			Status:             models.SubscriptionActive,
			CurrentPeriodStart: u.SubscriptionStartDate,
			CurrentPeriodEnd:   u.SubscriptionEndDate,
		}, "")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	plan, ok := services.LookupPlan(sub.PlanID)
	if !ok {
		plan = services.PlanForTier(u.SubscriptionTier)
	}
	view := viewOf(sub, plan)
	txn, err := a.store.LatestTransaction(ctx, u.ID)
	switch {
	case err == nil:
		view.LastTransaction = txn
	case !errors.Is(err, db.ErrNotFound):
		response.Error(c, err)
		return
	}
	response.OK(c, view, "")
}

func (a *API) CancelSubscription(c *gin.Context) {
	if !a.billingEnabled(c) {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, bindingError(err))
		return
	}

	u := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	sub, err := a.store.CancelSubscription(ctx, u.ID, req.CancelImmediately, a.now())
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeSubscriptionNotFound, "No active subscription found"))
		return
	}

	a.logActivity(ctx, u.ID, models.ActivityCancelSubscribed, sub.PlanID)
	a.notify.Canceled(u, sub, req.CancelImmediately)
	a.invalidate(ctx, cache.KeyDashboard)

	plan, _ := services.LookupPlan(sub.PlanID)
	msg := "Subscription will be canceled at the end of the billing period"
	if req.CancelImmediately {
		msg = "Subscription canceled immediately"
	}
	response.OK(c, viewOf(sub, plan), msg)
}

func (a *API) ListSubscriptions(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := models.SubscriptionFilter{Page: page}
	switch f.Status = c.Query("status"); f.Status {
	case "", models.SubscriptionActive, models.SubscriptionCanceled, models.SubscriptionExpired:
	default:
		response.Error(c, apperr.Field("status", "must be active, canceled or expired"))
		return
	}
	if raw := c.Query("plan_id"); raw != "" {
		plan, ok := services.LookupPlan(raw)
		if !ok {
			response.Error(c, apperr.Field("plan_id", "unknown plan"))
			return
		}
		f.PlanID = plan.ID
	}

	subs, total, err := a.store.ListSubscriptions(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, subscriptionList{Subscriptions: subs, Pagination: models.NewPagination(total, page)}, "")
}
