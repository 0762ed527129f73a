package handlers

import (
	"errors"
	"fmt"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProfileInput struct {
	FirstName  *string `json:"first_name" binding:"omitempty,min=1"`
	LastName   *string `json:"last_name" binding:"omitempty,min=1"`
	Company    *string `json:"company"`
	JobTitle   *string `json:"job_title"`
	IndustryID *int64  `json:"industry_id"`
}

func (p ProfileInput) patch() models.UserPatch {
	return models.UserPatch{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Company:    p.Company,
		JobTitle:   p.JobTitle,
		IndustryID: p.IndustryID,
	}
}

type AdminUserInput struct {
	ProfileInput
	SubscriptionTier *string `json:"subscription_tier"`
	IsAdmin          *bool   `json:"is_admin"`
}

type userList struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

type favoriteList struct {
	Favorites  []models.Favorite `json:"favorites"`
	Pagination models.Pagination `json:"pagination"`
}

func userUpdateError(err error) error {
	if errors.Is(err, db.ErrInvalidReference) {
		return apperr.Field("industry_id", "unknown industry")
	}
	return notFound(err, apperr.CodeUserNotFound, "User not found")
}

func (a *API) GetMe(c *gin.Context) {
	u := middleware.CurrentUser(c)
	a.logActivity(c.Request.Context(), u.ID, models.ActivityViewProfile, "")
	response.OK(c, u, "")
}

func (a *API) UpdateMe(c *gin.Context) {
	u := middleware.CurrentUser(c)
	var input ProfileInput
	if err := bindJSON(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	updated, err := a.store.UpdateUser(c.Request.Context(), u.ID, input.patch())
	if err != nil {
		response.Error(c, userUpdateError(err))
		return
	}
	a.logActivity(c.Request.Context(), u.ID, models.ActivityUpdateProfile, "")
	response.OK(c, updated, "Profile updated successfully")
}

func (a *API) ListMyFavorites(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	u := middleware.CurrentUser(c)
	favs, total, err := a.store.ListFavorites(c.Request.Context(), u.ID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, favoriteList{Favorites: favs, Pagination: models.NewPagination(total, page)}, "")
}

func (a *API) ListUsers(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.UserFilter{Search: c.Query("search"), Page: page}
	if raw := c.Query("subscription_tier"); raw != "" {
		tier, ok := models.ParseTier(raw)
		if !ok {
			response.Error(c, apperr.Field("subscription_tier", "must be Free, Premium or Business"))
			return
		}
		filter.Tier = tier
	}

	users, total, err := a.store.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, userList{Users: users, Pagination: models.NewPagination(total, page)}, "")
}

func (a *API) GetUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	u, err := a.store.GetUser(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeUserNotFound, "User not found"))
		return
	}
	response.OK(c, u, "")
}

func (a *API) UpdateUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var input AdminUserInput
	if err := bindJSON(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	patch := input.patch()
	patch.IsAdmin = input.IsAdmin
	if input.SubscriptionTier != nil {
		tier, ok := models.ParseTier(*input.SubscriptionTier)
		if !ok {
			response.Error(c, apperr.Field("subscription_tier", "must be Free, Premium or Business"))
			return
		}
		patch.SubscriptionTier = &tier
	}

	updated, err := a.store.UpdateUser(c.Request.Context(), id, patch)
	if err != nil {
		response.Error(c, userUpdateError(err))
		return
	}

	admin := middleware.CurrentUser(c)
	a.logActivity(c.Request.Context(), admin.ID, models.ActivityAdminUpdateUser, fmt.Sprintf("Updated user %d", id))
	if patch.SubscriptionTier != nil {
		a.invalidate(c.Request.Context(), cache.KeyDashboard)
		a.logger.Info("subscription tier granted",
			zap.Int64("user_id", id),
			zap.String("tier", string(*patch.SubscriptionTier)),
			zap.Int64("admin_id", admin.ID))
	}
	response.OK(c, updated, "User updated successfully")
}

func (a *API) DeleteUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := a.store.GetUser(ctx, id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeUserNotFound, "User not found"))
		return
	}

	admin := middleware.CurrentUser(c)
	if err := a.store.DeleteUser(ctx, id); err != nil {
		response.Error(c, notFound(err, apperr.CodeUserNotFound, "User not found"))
		return
	}
	if admin.ID != id {
		a.logActivity(ctx, admin.ID, models.ActivityAdminDeleteUser, fmt.Sprintf("Deleted user %d (%s)", u.ID, u.Email))
	}
	a.invalidate(ctx, cache.KeyDashboard, cache.KeyToolStats)
	response.OK(c, nil, "User deleted successfully")
}
