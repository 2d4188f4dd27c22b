package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
)

var taskPriorities = map[string]struct{}{"low": {}, "medium": {}, "high": {}, "urgent": {}}

// CreateTaskInput describes a new task.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    string
	AssigneeID  string
	DueDate     *time.Time
}

// UpdateTaskInput carries optional edits. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *string
	AssigneeID  *string
	DueDate     *time.Time
}

// ListTasksOptions controls filtering and pagination for task listing.
type ListTasksOptions struct {
	PageOptions
	ProjectID string
	Status    models.TaskStatus
}

// TaskService manages project tasks.
type TaskService struct {
	db         *gorm.DB
	activities *ActivityService
}

// NewTaskService constructs a TaskService. activities may be nil.
func NewTaskService(db *gorm.DB, activities *ActivityService) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	return &TaskService{db: db, activities: activities}, nil
}

// Create adds a task to a project the actor can see.
func (s *TaskService) Create(ctx context.Context, actor Actor, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	project, err := loadVisibleProject(db, actor, input.ProjectID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	status := input.Status
	if status == "" {
		status = models.TaskTodo
	}
	if !validTaskStatus(status) {
		return nil, apperrors.NewBadRequest("unknown task status")
	}
	priority := strings.ToLower(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = "medium"
	}
	if _, ok := taskPriorities[priority]; !ok {
		return nil, apperrors.NewBadRequest("unknown task priority")
	}

	task := &models.Task{
		ProjectID:   project.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		AssigneeID:  optionalID(input.AssigneeID),
		DueDate:     input.DueDate,
	}
	if err := db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("task service: create task: %w", err)
	}

	s.activities.recordQuietly(ctx, RecordActivityInput{
		ProjectID:   project.ID,
		ActorID:     actor.UserID,
		Type:        ActivityTaskCreated,
		Description: "Task added: " + task.Title,
	})
	return task, nil
}

// Get loads a task whose project the actor can see.
func (s *TaskService) Get(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	db := s.db.WithContext(ensureContext(ctx))

	var task models.Task
	err := db.Where("id = ?", strings.TrimSpace(id)).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task service: load task: %w", err)
	}
	if _, err := loadVisibleProject(db, actor, task.ProjectID); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// List returns tasks from projects visible to the actor.
func (s *TaskService) List(ctx context.Context, actor Actor, opts ListTasksOptions) ([]models.Task, int64, error) {
	db := s.db.WithContext(ensureContext(ctx))

	query := db.Model(&models.Task{})
	if opts.ProjectID != "" {
		if _, err := loadVisibleProject(db, actor, opts.ProjectID); err != nil {
			return nil, 0, err
		}
		query = query.Where("project_id = ?", opts.ProjectID)
	} else if !actor.seesAllProjects() {
		query = query.Where("project_id IN (?)", db.Model(&models.Project{}).Select("id").Where("owner_id = ?", actor.UserID))
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("task service: count tasks: %w", err)
	}
	var tasks []models.Task
	if err := query.Order("created_at ASC").Offset(opts.offset()).Limit(opts.limit()).Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies optional edits to a task.
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, input UpdateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if title := trimPtr(input.Title); title != nil {
		if *title == "" {
			return nil, apperrors.NewBadRequest("title cannot be empty")
		}
		updates["title"] = *title
	}
	if v := trimPtr(input.Description); v != nil {
		updates["description"] = *v
	}
	if input.Status != nil {
		if !validTaskStatus(*input.Status) {
			return nil, apperrors.NewBadRequest("unknown task status")
		}
		updates["status"] = *input.Status
	}
	if input.Priority != nil {
		priority := strings.ToLower(strings.TrimSpace(*input.Priority))
		if _, ok := taskPriorities[priority]; !ok {
			return nil, apperrors.NewBadRequest("unknown task priority")
		}
		updates["priority"] = priority
	}
	if input.AssigneeID != nil {
		if id := optionalID(*input.AssigneeID); id != nil {
			updates["assignee_id"] = *id
		} else {
			updates["assignee_id"] = nil
		}
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("task service: update task: %w", err)
	}

	description := "Task updated: " + task.Title
	if input.Status != nil && *input.Status != task.Status {
		description = fmt.Sprintf("Task %q moved to %s", task.Title, *input.Status)
	}
	s.activities.recordQuietly(ctx, RecordActivityInput{
		ProjectID:   task.ProjectID,
		ActorID:     actor.UserID,
		Type:        ActivityTaskUpdated,
		Description: description,
	})

	return s.Get(ctx, actor, task.ID)
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return fmt.Errorf("task service: delete task: %w", err)
	}
	return nil
}

func validTaskStatus(status models.TaskStatus) bool {
	switch status {
	case models.TaskTodo, models.TaskInProgress, models.TaskDone:
		return true
	}
	return false
}
