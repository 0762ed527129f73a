package handlers

import (
	"errors"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type ReviewUpdate struct {
	Rating     *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Comment    *string `json:"comment"`
	IsVerified *bool   `json:"is_verified"`
}

type reviewList struct {
	Reviews    []models.Review   `json:"reviews"`
	Pagination models.Pagination `json:"pagination"`
}

func (a *API) ListReviews(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := models.ReviewFilter{ToolID: id, Page: page}
	switch f.Sort = c.DefaultQuery("sort", models.SortCreatedAt); f.Sort {
	case models.SortRating, models.SortCreatedAt:
	default:
		response.Error(c, apperr.Field("sort", "must be rating or created_at"))
		return
	}
	if f.Desc, err = sortOrder(c, "desc"); err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := a.store.GetTool(ctx, id); err != nil {
		response.Error(c, notFound(err, apperr.CodeToolNotFound, "Tool not found"))
		return
	}
	reviews, total, err := a.store.ListReviews(ctx, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reviewList{Reviews: reviews, Pagination: models.NewPagination(total, page)}, "")
}

// ListAllReviews is the admin moderation queue, newest first by default.
func (a *API) ListAllReviews(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := models.ReviewFilter{Page: page}
	if f.ToolID, err = optionalID(c, "tool_id"); err != nil {
		response.Error(c, err)
		return
	}
	switch raw := c.Query("is_verified"); raw {
	case "":
	case "true", "false":
		verified := raw == "true"
		f.Verified = &verified
	default:
		response.Error(c, apperr.Field("is_verified", "must be true or false"))
		return
	}
	switch f.Sort = c.DefaultQuery("sort", models.SortCreatedAt); f.Sort {
	case models.SortRating, models.SortCreatedAt:
	default:
		response.Error(c, apperr.Field("sort", "must be rating or created_at"))
		return
	}
	if f.Desc, err = sortOrder(c, "desc"); err != nil {
		response.Error(c, err)
		return
	}

	reviews, total, err := a.store.ListAllReviews(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reviewList{Reviews: reviews, Pagination: models.NewPagination(total, page)}, "")
}

// CreateReview adds the caller's review; the tool rating is recomputed in
// the same transaction. One review per user and tool.
func (a *API) CreateReview(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req ReviewRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	u := middleware.CurrentUser(c)
	r := &models.Review{UserID: u.ID, ToolID: id, Rating: req.Rating, Comment: req.Comment}
	if err := a.store.CreateReview(c.Request.Context(), r); err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			err = apperr.Conflict(apperr.CodeReviewExists, "You have already reviewed this tool")
		case errors.Is(err, db.ErrInvalidReference):
			err = apperr.NotFound(apperr.CodeToolNotFound, "Tool not found")
		}
		response.Error(c, err)
		return
	}
	r.User = u.Ref()
	a.metrics.ReviewWritten("create")
	a.invalidate(c.Request.Context(), cache.KeyDashboard, cache.KeyToolStats)
	response.Created(c, r, "Review submitted successfully")
}

func (a *API) GetReview(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	r, err := a.store.GetReview(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeReviewNotFound, "Review not found"))
		return
	}
	response.OK(c, r, "")
}

func (a *API) UpdateReview(c *gin.Context) {
	r, ok := a.ownedReview(c)
	if !ok {
		return
	}
	var req ReviewUpdate
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	p := models.ReviewPatch{Rating: req.Rating, Comment: req.Comment}
	if middleware.CurrentUser(c).IsAdmin {
		p.IsVerified = req.IsVerified
	}

	updated, err := a.store.UpdateReview(c.Request.Context(), r.ID, p)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeReviewNotFound, "Review not found"))
		return
	}
	a.metrics.ReviewWritten("update")
	a.invalidate(c.Request.Context(), cache.KeyDashboard, cache.KeyToolStats)
	response.OK(c, updated, "Review updated successfully")
}

func (a *API) DeleteReview(c *gin.Context) {
	r, ok := a.ownedReview(c)
	if !ok {
		return
	}
	if err := a.store.DeleteReview(c.Request.Context(), r.ID); err != nil {
		response.Error(c, notFound(err, apperr.CodeReviewNotFound, "Review not found"))
		return
	}
	a.metrics.ReviewWritten("delete")
	a.invalidate(c.Request.Context(), cache.KeyDashboard, cache.KeyToolStats)
	response.OK(c, nil, "Review deleted successfully")
}

func (a *API) VerifyReview(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	verified := true
	r, err := a.store.UpdateReview(c.Request.Context(), id, models.ReviewPatch{IsVerified: &verified})
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeReviewNotFound, "Review not found"))
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyDashboard)
	response.OK(c, r, "Review verified successfully")
}

func (a *API) ownedReview(c *gin.Context) (*models.Review, bool) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	r, err := a.store.GetReview(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeReviewNotFound, "Review not found"))
		return nil, false
	}
	u := middleware.CurrentUser(c)
	if r.UserID != u.ID && !u.IsAdmin {
		response.Error(c, apperr.Forbidden("Only the author or an admin may change this review"))
		return nil, false
	}
	return r, true
}
