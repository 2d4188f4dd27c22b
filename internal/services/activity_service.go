package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
)

// Activity types written by project and task mutations.
const (
	ActivityProjectCreated = "project_created"
	ActivityProjectUpdated = "project_updated"
	ActivityStatusChanged  = "status_changed"
	ActivityTaskCreated    = "task_created"
	ActivityTaskUpdated    = "task_updated"
	ActivityMessagePosted  = "message_posted"
	ActivityNote           = "note"
)

// RecordActivityInput describes a feed entry.
type RecordActivityInput struct {
	ProjectID   string
	ActorID     string
	Type        string
	Description string
}

// ListActivitiesOptions controls filtering and pagination for the feed.
type ListActivitiesOptions struct {
	PageOptions
	ProjectID string
}

// ActivityService maintains the append-only project activity feed.
type ActivityService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewActivityService constructs an ActivityService.
func NewActivityService(db *gorm.DB) (*ActivityService, error) {
	if db == nil {
		return nil, errors.New("activity service: db is required")
	}
	return &ActivityService{db: db, log: logger.WithModule("activities")}, nil
}

// Record appends an entry to a project's feed.
func (s *ActivityService) Record(ctx context.Context, input RecordActivityInput) (*models.Activity, error) {
	return s.record(s.db.WithContext(ensureContext(ctx)), input)
}

func (s *ActivityService) record(db *gorm.DB, input RecordActivityInput) (*models.Activity, error) {
	activity := &models.Activity{
		ProjectID:   strings.TrimSpace(input.ProjectID),
		ActorID:     strings.TrimSpace(input.ActorID),
		Type:        strings.TrimSpace(input.Type),
		Description: strings.TrimSpace(input.Description),
	}
	if activity.ProjectID == "" || activity.Type == "" {
		return nil, apperrors.NewBadRequest("project and type are required")
	}
	if err := db.Create(activity).Error; err != nil {
		return nil, fmt.Errorf("activity service: record: %w", err)
	}
	return activity, nil
}

// recordQuietly appends a feed entry on behalf of another mutation; failures are logged only.
func (s *ActivityService) recordQuietly(ctx context.Context, input RecordActivityInput) {
	if s == nil {
		return
	}
	if _, err := s.Record(ctx, input); err != nil {
		s.log.Warn("failed to record activity",
			zap.String("project_id", input.ProjectID),
			zap.String("type", input.Type),
			zap.Error(err),
		)
	}
}

// Create records a manual note on a project the actor can see.
func (s *ActivityService) Create(ctx context.Context, actor Actor, input RecordActivityInput) (*models.Activity, error) {
	ctx = ensureContext(ctx)
	if _, err := loadVisibleProject(s.db.WithContext(ctx), actor, input.ProjectID); err != nil {
		return nil, err
	}
	input.ActorID = actor.UserID
	if strings.TrimSpace(input.Type) == "" {
		input.Type = ActivityNote
	}
	return s.Record(ctx, input)
}

// Get loads one feed entry visible to the actor.
func (s *ActivityService) Get(ctx context.Context, actor Actor, id string) (*models.Activity, error) {
	db := s.db.WithContext(ensureContext(ctx))

	var activity models.Activity
	err := db.Where("id = ?", strings.TrimSpace(id)).Take(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activity service: load: %w", err)
	}
	if _, err := loadVisibleProject(db, actor, activity.ProjectID); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// List returns the feed newest first, limited to projects the actor can see.
func (s *ActivityService) List(ctx context.Context, actor Actor, opts ListActivitiesOptions) ([]models.Activity, int64, error) {
	db := s.db.WithContext(ensureContext(ctx))

	query := db.Model(&models.Activity{})
	if opts.ProjectID != "" {
		if _, err := loadVisibleProject(db, actor, opts.ProjectID); err != nil {
			return nil, 0, err
		}
		query = query.Where("project_id = ?", opts.ProjectID)
	} else if !actor.seesAllProjects() {
		query = query.Where("project_id IN (?)", db.Model(&models.Project{}).Select("id").Where("owner_id = ?", actor.UserID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("activity service: count: %w", err)
	}
	var activities []models.Activity
	if err := query.Order("created_at DESC").Offset(opts.offset()).Limit(opts.limit()).Find(&activities).Error; err != nil {
		return nil, 0, fmt.Errorf("activity service: list: %w", err)
	}
	return activities, total, nil
}

// Delete removes a feed entry. Only admins may prune the feed.
func (s *ActivityService) Delete(ctx context.Context, actor Actor, id string) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	res := s.db.WithContext(ensureContext(ctx)).Where("id = ?", strings.TrimSpace(id)).Delete(&models.Activity{})
	if res.Error != nil {
		return fmt.Errorf("activity service: delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrActivityNotFound
	}
	return nil
}
