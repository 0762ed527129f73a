package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

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

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type toolList struct {
	Tools      []models.Tool     `json:"tools"`
	Pagination models.Pagination `json:"pagination"`
}

func (a *API) ListTools(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	f := models.ToolFilter{Search: strings.TrimSpace(c.Query("search")), Page: page}
	if f.CategoryID, err = optionalID(c, "category_id"); err != nil {
		response.Error(c, err)
		return
	}
	if f.IndustryID, err = optionalID(c, "industry_id"); err != nil {
		response.Error(c, err)
		return
	}
	if raw := c.Query("access_level"); raw != "" {
		f.AccessLevel = models.AccessLevel(raw)
		if !f.AccessLevel.Valid() {
			response.Error(c, apperr.Field("access_level", "must be Public, Premium Only or Business Only"))
			return
		}
	}
	switch f.Sort = c.DefaultQuery("sort", models.SortName); f.Sort {
	case models.SortName, models.SortRating, models.SortCreatedAt:
	default:
		response.Error(c, apperr.Field("sort", "must be name, rating or created_at"))
		return
	}
	if f.Desc, err = sortOrder(c, "asc"); err != nil {
		response.Error(c, err)
		return
	}

	tools, total, err := a.store.ListTools(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toolList{Tools: tools, Pagination: models.NewPagination(total, page)}, "")
}

// GetTool returns a tool with its guides and reviews once the caller has
// passed the tool's access level.
func (a *API) GetTool(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	t, err := a.store.GetToolDetail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeToolNotFound, "Tool not found"))
		return
	}
	if err := services.CheckToolAccess(t.AccessLevel, middleware.CurrentUser(c), a.now()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t, "")
}

func (a *API) CreateTool(c *gin.Context) {
	in := models.ToolInput{
		Name:            strings.TrimSpace(c.PostForm("name")),
		Description:     c.PostForm("description"),
		WebsiteURL:      c.PostForm("website_url"),
		AccessLevel:     models.AccessLevel(c.DefaultPostForm("access_level", string(models.AccessPublic))),
		BusinessUtility: c.PostForm("business_utility"),
		PricePointType:  c.PostForm("price_point_type"),
		AuthorID:        middleware.CurrentUser(c).ID,
	}

	details := map[string]any{}
	if in.Name == "" {
		details["name"] = "is required"
	}
	if strings.TrimSpace(in.Description) == "" {
		details["description"] = "is required"
	}
	categoryID, err := strconv.ParseInt(c.PostForm("category_id"), 10, 64)
	if err != nil || categoryID < 1 {
		details["category_id"] = "must be a positive integer"
	}
	in.CategoryID = categoryID
	if !in.AccessLevel.Valid() {
		details["access_level"] = "must be Public, Premium Only or Business Only"
	}
	if raw, ok := c.GetPostForm("price_point_details"); ok && raw != "" {
		if !json.Valid([]byte(raw)) {
			details["price_point_details"] = "must be valid JSON"
		}
		in.PricePointDetails = json.RawMessage(raw)
	}
	if in.IndustryIDs, err = industryIDs(c); err != nil {
		details["industry_ids"] = err.Error()
	}
	if len(details) > 0 {
		response.Error(c, apperr.Validation("Invalid request", details))
		return
	}
	in.Guides = a.guidesField(c)

	ctx := c.Request.Context()
	if _, err := a.store.GetCategory(ctx, in.CategoryID); err != nil {
		response.Error(c, notFound(err, apperr.CodeCategoryNotFound, "Category not found"))
		return
	}

	if in.ImagePath, err = a.saveImage(c); err != nil {
		response.Error(c, err)
		return
	}

	t, err := a.store.CreateTool(ctx, in)
	if err != nil {
		a.removeImage(in.ImagePath)
		response.Error(c, toolWriteError(err))
		return
	}
	a.invalidate(ctx, cache.KeyDashboard, cache.KeyToolStats)
	a.logger.Info("tool created", zap.Int64("tool_id", t.ID), zap.String("name", t.Name))
	response.Created(c, t, "Tool created successfully")
}

func (a *API) UpdateTool(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	existing, err := a.store.GetTool(ctx, id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeToolNotFound, "Tool not found"))
		return
	}

	var p models.ToolPatch
	details := map[string]any{}
	if v, ok := c.GetPostForm("name"); ok {
		v = strings.TrimSpace(v)
		if v == "" {
			details["name"] = "must not be empty"
		}
		p.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		p.Description = &v
	}
	if v, ok := c.GetPostForm("category_id"); ok {
		cid, err := strconv.ParseInt(v, 10, 64)
		if err != nil || cid < 1 {
			details["category_id"] = "must be a positive integer"
		}
		p.CategoryID = &cid
	}
	if v, ok := c.GetPostForm("website_url"); ok {
		p.WebsiteURL = &v
	}
	if v, ok := c.GetPostForm("access_level"); ok {
		level := models.AccessLevel(v)
		if !level.Valid() {
			details["access_level"] = "must be Public, Premium Only or Business Only"
		}
		p.AccessLevel = &level
	}
	if v, ok := c.GetPostForm("business_utility"); ok {
		p.BusinessUtility = &v
	}
	if v, ok := c.GetPostForm("price_point_type"); ok {
		p.PricePointType = &v
	}
	if v, ok := c.GetPostForm("price_point_details"); ok && v != "" {
		if !json.Valid([]byte(v)) {
			details["price_point_details"] = "must be valid JSON"
		}
		p.PricePointDetails = json.RawMessage(v)
	}
	if _, ok := c.GetPostFormArray("industry_ids"); ok {
		if p.IndustryIDs, err = industryIDs(c); err != nil {
			details["industry_ids"] = err.Error()
		}
	}
	if len(details) > 0 {
		response.Error(c, apperr.Validation("Invalid request", details))
		return
	}

	if p.CategoryID != nil {
		if _, err := a.store.GetCategory(ctx, *p.CategoryID); err != nil {
			response.Error(c, notFound(err, apperr.CodeCategoryNotFound, "Category not found"))
			return
		}
	}

	image, err := a.saveImage(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if image != "" {
		p.ImagePath = &image
	}

	t, err := a.store.UpdateTool(ctx, id, p)
	if err != nil {
		a.removeImage(image)
		response.Error(c, toolWriteError(err))
		return
	}
	if image != "" && existing.ImagePath != "" {
		a.removeImage(existing.ImagePath)
	}
	a.invalidate(ctx, cache.KeyDashboard, cache.KeyToolStats)
	response.OK(c, t, "Tool updated successfully")
}

// DeleteTool removes the tool together with its reviews, favorites, guides
// and industry links.
func (a *API) DeleteTool(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	image, err := a.store.DeleteTool(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeToolNotFound, "Tool not found"))
		return
	}
	a.removeImage(image)
	a.invalidate(c.Request.Context(), cache.KeyDashboard, cache.KeyToolStats)
	a.logger.Info("tool deleted", zap.Int64("tool_id", id))
	response.OK(c, nil, "Tool deleted successfully")
}

func (a *API) AddFavorite(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	u := middleware.CurrentUser(c)
	fav, err := a.store.AddFavorite(c.Request.Context(), u.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			err = apperr.Conflict(apperr.CodeFavoriteExists, "Tool already in favorites")
		case errors.Is(err, db.ErrInvalidReference):
			err = apperr.NotFound(apperr.CodeToolNotFound, "Tool not found")
		}
		response.Error(c, err)
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyToolStats)
	response.Created(c, fav, "Tool added to favorites")
}

func (a *API) RemoveFavorite(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	u := middleware.CurrentUser(c)
	if err := a.store.RemoveFavorite(c.Request.Context(), u.ID, id); err != nil {
		response.Error(c, notFound(err, apperr.CodeFavoriteNotFound, "Tool not in favorites"))
		return
	}
	a.invalidate(c.Request.Context(), cache.KeyToolStats)
	response.OK(c, nil, "Tool removed from favorites")
}

// ExportFavorites streams every favorite of the caller as an XLSX download.
func (a *API) ExportFavorites(c *gin.Context) {
	if !a.features.ExportEnabled {
		response.Error(c, apperr.NotFound(apperr.CodeExportDisabled, "Export is not enabled"))
		return
	}
	u := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var all []models.Favorite
	page := models.NewPage(1, models.MaxPageLimit)
	for {
		favs, total, err := a.store.ListFavorites(ctx, u.ID, page)
		if err != nil {
			response.Error(c, err)
			return
		}
		all = append(all, favs...)
		if len(favs) == 0 || len(all) >= total {
			break
		}
		page.Number++
	}

	data, err := services.ExportFavorites(all)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("favorites-%s.xlsx", a.now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// industryIDs accepts repeated industry_ids fields or one comma-separated
// value. An empty value clears the list.
func industryIDs(c *gin.Context) ([]int64, error) {
	ids := []int64{}
	for _, raw := range c.PostFormArray("industry_ids") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id < 1 {
				return nil, fmt.Errorf("invalid industry id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// guidesField parses the optional guides JSON. Malformed input is logged
// and ignored so the tool itself is still created.
func (a *API) guidesField(c *gin.Context) []models.GuideInput {
	raw := strings.TrimSpace(c.PostForm("guides"))
	if raw == "" {
		return nil
	}
	var guides []models.GuideInput
	if err := json.Unmarshal([]byte(raw), &guides); err != nil {
		a.logger.Warn("ignoring malformed guides field", zap.Error(err))
		return nil
	}
	return guides
}

// saveImage stores the optional image upload and returns its relative path.
func (a *API) saveImage(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", apperr.Field("image", err.Error())
	}
	path, err := a.uploads.SaveImage(fh, services.ToolImageFolder)
	switch {
	case errors.Is(err, services.ErrFileType):
		return "", apperr.Field("image", "file type not allowed; use png, jpg, jpeg or gif")
	case errors.Is(err, services.ErrFileSize):
		return "", apperr.Field("image", "file too large")
	case err != nil:
		return "", err
	}
	return path, nil
}

func (a *API) removeImage(path string) {
	if err := a.uploads.Delete(path); err != nil {
		a.logger.Warn("failed to remove image", zap.String("path", path), zap.Error(err))
	}
}

func toolWriteError(err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.NotFound(apperr.CodeToolNotFound, "Tool not found")
	case errors.Is(err, db.ErrInvalidReference):
		return apperr.Field("industry_ids", "unknown category or industry")
	}
	return err
}
