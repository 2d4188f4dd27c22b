package handlers

import (
	stdErrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

type EngineerHandler struct {
	engineers *services.EngineerService
}

func NewEngineerHandler(engineers *services.EngineerService) (*EngineerHandler, error) {
	if engineers == nil {
		return nil, stdErrors.New("engineer handler: service is required")
	}
	return &EngineerHandler{engineers: engineers}, nil
}

type engineerRequest struct {
	Name      *string  `json:"name" validate:"omitempty,min=1,max=120"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Title     *string  `json:"title" validate:"omitempty,max=120"`
	Bio       *string  `json:"bio" validate:"omitempty,max=5000"`
	AvatarURL *string  `json:"avatar_url" validate:"omitempty,url"`
	Skills    []string `json:"skills" validate:"omitempty,max=50,dive,max=50"`
	Available *bool    `json:"available"`
}

func (r engineerRequest) input() services.EngineerInput {
	return services.EngineerInput{
		Name:      r.Name,
		Email:     r.Email,
		Title:     r.Title,
		Bio:       r.Bio,
		AvatarURL: r.AvatarURL,
		Skills:    r.Skills,
		Available: r.Available,
	}
}

// GET /api/engineers (public)
func (h *EngineerHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	available := parseBoolQuery(c, "available")
	engineers, total, err := h.engineers.List(requestContext(c), services.ListEngineersOptions{
		PageOptions:   page,
		AvailableOnly: available != nil && *available,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, engineers, total, page)
}

// GET /api/engineers/:id (public)
func (h *EngineerHandler) Get(c *gin.Context) {
	engineer, err := h.engineers.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, engineer)
}

// POST /api/engineers
func (h *EngineerHandler) Create(c *gin.Context) {
	var req engineerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	engineer, err := h.engineers.Create(requestContext(c), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, engineer)
}

// PUT /api/engineers/:id
func (h *EngineerHandler) Update(c *gin.Context) {
	var req engineerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	engineer, err := h.engineers.Update(requestContext(c), c.Param("id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, engineer)
}

// DELETE /api/engineers/:id
func (h *EngineerHandler) Delete(c *gin.Context) {
	if err := h.engineers.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Engineer deleted", nil)
}
