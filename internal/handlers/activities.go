package handlers

import (
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

// ActivityHandler exposes the append-only project activity feed.
type ActivityHandler struct {
	activities *services.ActivityService
}

func NewActivityHandler(activities *services.ActivityService) (*ActivityHandler, error) {
	if activities == nil {
		return nil, stdErrors.New("activity handler: service is required")
	}
	return &ActivityHandler{activities: activities}, nil
}

type createActivityRequest struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Type        string `json:"type" validate:"omitempty,max=50"`
	Description string `json:"description" validate:"required,max=2000"`
}

// POST /api/activities
func (h *ActivityHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req createActivityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	activity, err := h.activities.Create(requestContext(c), actor, services.RecordActivityInput{
		ProjectID:   req.ProjectID,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, activity)
}

// GET /api/activities
func (h *ActivityHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	activities, total, err := h.activities.List(requestContext(c), actor, services.ListActivitiesOptions{
		PageOptions: page,
		ProjectID:   c.Query("project_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, activities, total, page)
}

// GET /api/activities/:id
func (h *ActivityHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	activity, err := h.activities.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, activity)
}

// DELETE /api/activities/:id
func (h *ActivityHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.activities.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Activity deleted", nil)
}
