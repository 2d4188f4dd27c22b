package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

// ProjectHandler exposes client projects and their message threads.
type ProjectHandler struct {
	projects *services.ProjectService
	messages *services.MessageService
}

func NewProjectHandler(projects *services.ProjectService, messages *services.MessageService) (*ProjectHandler, error) {
	if projects == nil || messages == nil {
		return nil, stdErrors.New("project handler: services are required")
	}
	return &ProjectHandler{projects: projects, messages: messages}, nil
}

type createProjectRequest struct {
	OwnerID      string  `json:"owner_id" validate:"omitempty,uuid"`
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=10000"`
	Category     string  `json:"category" validate:"max=100"`
	Budget       float64 `json:"budget" validate:"gte=0"`
	Timeline     string  `json:"timeline" validate:"max=100"`
	ReferralCode string  `json:"referral_code" validate:"omitempty,referralcode"`
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Create(requestContext(c), actor, services.CreateProjectInput{
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Budget:       req.Budget,
		Timeline:     req.Timeline,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	projects, total, err := h.projects.List(requestContext(c), actor, services.ListProjectsOptions{
		PageOptions: page,
		Status:      models.ProjectStatus(strings.ToLower(c.Query("status"))),
		OwnerID:     c.Query("owner_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, projects, total, page)
}

// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	project, err := h.projects.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

type updateProjectRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=10000"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Budget      *float64 `json:"budget" validate:"omitempty,gte=0"`
	Timeline    *string  `json:"timeline" validate:"omitempty,max=100"`
	Progress    *int     `json:"progress" validate:"omitempty,gte=0,lte=100"`
	Status      *string  `json:"status" validate:"omitempty,oneofci=inquiry planning in_progress on_hold review completed cancelled"`
	EngineerID  *string  `json:"engineer_id"`
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Budget:      req.Budget,
		Timeline:    req.Timeline,
		Progress:    req.Progress,
		EngineerID:  req.EngineerID,
	}
	if req.Status != nil {
		status := models.ProjectStatus(strings.ToLower(*req.Status))
		input.Status = &status
	}

	project, err := h.projects.Update(requestContext(c), actor, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.projects.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Project deleted", nil)
}

// GET /api/projects/:id/messages
func (h *ProjectHandler) ListMessages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	messages, total, err := h.messages.List(requestContext(c), actor, c.Param("id"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, messages, total, page)
}

type postMessageRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

// POST /api/projects/:id/messages
func (h *ProjectHandler) PostMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	message, err := h.messages.Post(requestContext(c), actor, c.Param("id"), req.Body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}
