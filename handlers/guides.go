package handlers

import (
	"errors"

	"aidirectory/apperr"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"

	"github.com/gin-gonic/gin"
)

type GuideRequest struct {
	Title      string `json:"title" binding:"required"`
	Content    string `json:"content" binding:"required"`
	GuideType  string `json:"guide_type"`
	OrderIndex int    `json:"order_index" binding:"min=0"`
}

type GuideUpdate struct {
	Title      *string `json:"title" binding:"omitempty,min=1"`
	Content    *string `json:"content" binding:"omitempty,min=1"`
	GuideType  *string `json:"guide_type" binding:"omitempty,min=1"`
	OrderIndex *int    `json:"order_index" binding:"omitempty,min=0"`
}

func (a *API) ListToolGuides(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := a.store.GetTool(ctx, id); err != nil {
		response.Error(c, notFound(err, apperr.CodeToolNotFound, "Tool not found"))
		return
	}
	guides, err := a.store.ListGuides(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, guides, "")
}

// GuideCreate is the body of POST /guides, where the tool comes from the body.
type GuideCreate struct {
	ToolID int64 `json:"tool_id" binding:"required,min=1"`
	GuideRequest
}

type guideList struct {
	Guides     []models.Guide    `json:"guides"`
	Pagination models.Pagination `json:"pagination"`
}

func (a *API) ListGuides(c *gin.Context) {
	page, err := pageParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	toolID, err := optionalID(c, "tool_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	guides, total, err := a.store.ListAllGuides(c.Request.Context(), models.GuideFilter{ToolID: toolID, Page: page})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, guideList{Guides: guides, Pagination: models.NewPagination(total, page)}, "")
}

// CreateGuide lets any signed-in user write a guide; they become its author.
func (a *API) CreateGuide(c *gin.Context) {
	var req GuideCreate
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	a.createGuide(c, req.ToolID, req.GuideRequest)
}

func (a *API) CreateToolGuide(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req GuideRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	a.createGuide(c, id, req)
}

func (a *API) createGuide(c *gin.Context, toolID int64, req GuideRequest) {
	author := middleware.CurrentUser(c).ID
	g := &models.Guide{
		ToolID:     toolID,
		Title:      req.Title,
		Content:    req.Content,
		AuthorID:   &author,
		GuideType:  req.GuideType,
		OrderIndex: req.OrderIndex,
	}
	if err := a.store.CreateGuide(c.Request.Context(), g); err != nil {
		if errors.Is(err, db.ErrInvalidReference) {
			err = apperr.NotFound(apperr.CodeToolNotFound, "Tool not found")
		}
		response.Error(c, err)
		return
	}
	response.Created(c, g, "Guide created successfully")
}

func (a *API) GetGuide(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	g, err := a.store.GetGuide(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeGuideNotFound, "Guide not found"))
		return
	}
	response.OK(c, g, "")
}

func (a *API) UpdateGuide(c *gin.Context) {
	g, ok := a.ownedGuide(c)
	if !ok {
		return
	}
	var req GuideUpdate
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	updated, err := a.store.UpdateGuide(c.Request.Context(), g.ID, models.GuidePatch{
		Title:      req.Title,
		Content:    req.Content,
		GuideType:  req.GuideType,
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeGuideNotFound, "Guide not found"))
		return
	}
	response.OK(c, updated, "Guide updated successfully")
}

func (a *API) DeleteGuide(c *gin.Context) {
	g, ok := a.ownedGuide(c)
	if !ok {
		return
	}
	if err := a.store.DeleteGuide(c.Request.Context(), g.ID); err != nil {
		response.Error(c, notFound(err, apperr.CodeGuideNotFound, "Guide not found"))
		return
	}
	response.OK(c, nil, "Guide deleted successfully")
}

// ownedGuide loads the guide named in the path and checks that the caller
// wrote it or is an admin. It writes the error response itself.
func (a *API) ownedGuide(c *gin.Context) (*models.Guide, bool) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	g, err := a.store.GetGuide(c.Request.Context(), id)
	if err != nil {
		response.Error(c, notFound(err, apperr.CodeGuideNotFound, "Guide not found"))
		return nil, false
	}
	u := middleware.CurrentUser(c)
	if !u.IsAdmin && (g.AuthorID == nil || *g.AuthorID != u.ID) {
		response.Error(c, apperr.Forbidden("Only the author or an admin may change this guide"))
		return nil, false
	}
	return g, true
}
