package handlers

import (
	"errors"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/db"
	"aidirectory/models"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
)

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type CategoryUpdate struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

type IndustryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type IndustryUpdate struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Description *string `json:"description"`
}

func categoryError(err error) error {
	switch {
	case errors.Is(err, db.ErrConflict):
		return apperr.Conflict(apperr.CodeCategoryExists, "Category already exists")
	case errors.Is(err, db.ErrInUse):
		return apperr.Conflict(apperr.CodeCategoryHasTools, "Category still has tools")
	}
	return notFound(err, apperr.CodeCategoryNotFound, "Category not found")
}

func industryError(err error) error {
	if errors.Is(err, db.ErrConflict) {
		return apperr.Conflict(apperr.CodeIndustryExists, "Industry already exists")
	}
	return notFound(err, apperr.CodeIndustryNotFound, "Industry not found")
}

func (a *API) ListCategories(c *gin.Context) {
	cats, err := a.store.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cats, "")
}

func (a *API) GetCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	cat, err := a.store.GetCategory(c.Request.Context(), id)
	if err != nil {
		response.Error(c, categoryError(err))
		return
	}
	response.OK(c, cat, "")
}

func (a *API) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	cat := &models.Category{Name: req.Name, Description: req.Description, Icon: req.Icon}
	if err := a.store.CreateCategory(c.Request.Context(), cat); err != nil {
		response.Error(c, categoryError(err))
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyToolStats)
	response.Created(c, cat, "Category created successfully")
}

func (a *API) UpdateCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req CategoryUpdate
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	cat, err := a.store.UpdateCategory(c.Request.Context(), id, models.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		response.Error(c, categoryError(err))
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyToolStats)
	response.OK(c, cat, "Category updated successfully")
}

func (a *API) DeleteCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := a.store.DeleteCategory(c.Request.Context(), id); err != nil {
		response.Error(c, categoryError(err))
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyToolStats)
	response.OK(c, nil, "Category deleted successfully")
}

func (a *API) ListIndustries(c *gin.Context) {
	inds, err := a.store.ListIndustries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, inds, "")
}

func (a *API) GetIndustry(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	ind, err := a.store.GetIndustry(c.Request.Context(), id)
	if err != nil {
		response.Error(c, industryError(err))
		return
	}
	response.OK(c, ind, "")
}

func (a *API) CreateIndustry(c *gin.Context) {
	var req IndustryRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	ind := &models.Industry{Name: req.Name, Description: req.Description}
	if err := a.store.CreateIndustry(c.Request.Context(), ind); err != nil {
		response.Error(c, industryError(err))
		return
	}
	response.Created(c, ind, "Industry created successfully")
}

func (a *API) UpdateIndustry(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req IndustryUpdate
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	ind, err := a.store.UpdateIndustry(c.Request.Context(), id, models.IndustryPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, industryError(err))
		return
	}
	response.OK(c, ind, "Industry updated successfully")
}

func (a *API) DeleteIndustry(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := a.store.DeleteIndustry(c.Request.Context(), id); err != nil {
		response.Error(c, industryError(err))
		return
	}
	response.OK(c, nil, "Industry deleted successfully")
}
