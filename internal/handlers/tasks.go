package handlers

import (
	stdErrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/internal/services"
	"github.com/feelize/platform/pkg/response"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) (*TaskHandler, error) {
	if tasks == nil {
		return nil, stdErrors.New("task handler: service is required")
	}
	return &TaskHandler{tasks: tasks}, nil
}

type createTaskRequest struct {
	ProjectID   string     `json:"project_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=10000"`
	Status      string     `json:"status" validate:"omitempty,oneofci=todo in_progress done"`
	Priority    string     `json:"priority" validate:"omitempty,oneofci=low medium high urgent"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), actor, services.CreateTaskInput{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(strings.ToLower(req.Status)),
		Priority:    strings.ToLower(req.Priority),
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	page := pageFromQuery(c)
	tasks, total, err := h.tasks.List(requestContext(c), actor, services.ListTasksOptions{
		PageOptions: page,
		ProjectID:   c.Query("project_id"),
		Status:      models.TaskStatus(strings.ToLower(c.Query("status"))),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	respondList(c, tasks, total, page)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

type updateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=10000"`
	Status      *string    `json:"status" validate:"omitempty,oneofci=todo in_progress done"`
	Priority    *string    `json:"priority" validate:"omitempty,oneofci=low medium high urgent"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := models.TaskStatus(strings.ToLower(*req.Status))
		input.Status = &status
	}
	if req.Priority != nil {
		priority := strings.ToLower(*req.Priority)
		input.Priority = &priority
	}

	task, err := h.tasks.Update(requestContext(c), actor, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Task deleted", nil)
}
