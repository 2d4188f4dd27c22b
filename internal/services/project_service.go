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

// CreateProjectInput describes a project intake submission.
type CreateProjectInput struct {
	// OwnerID lets admins open a project on a client's behalf; ignored for other callers.
	OwnerID      string
	Title        string
	Description  string
	Category     string
	Budget       float64
	Timeline     string
	ReferralCode string
}

// UpdateProjectInput carries optional edits. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Title       *string
	Description *string
	Category    *string
	Budget      *float64
	Timeline    *string
	Progress    *int
	Status      *models.ProjectStatus
	EngineerID  *string
}

// ListProjectsOptions controls filtering and pagination for project listing.
type ListProjectsOptions struct {
	PageOptions
	Status  models.ProjectStatus
	OwnerID string
}

// ProjectService manages client projects.
type ProjectService struct {
	db         *gorm.DB
	referrals  *ReferralService
	activities *ActivityService
	log        *zap.Logger
}

// NewProjectService constructs a ProjectService. referrals and activities may be nil.
func NewProjectService(db *gorm.DB, referrals *ReferralService, activities *ActivityService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{
		db:         db,
		referrals:  referrals,
		activities: activities,
		log:        logger.WithModule("projects"),
	}, nil
}

// Create opens a project in the inquiry stage. A referral code is attributed after the
// project commits; attribution failures are logged and never fail the request.
func (s *ProjectService) Create(ctx context.Context, actor Actor, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	if input.Budget < 0 {
		return nil, apperrors.NewBadRequest("budget cannot be negative")
	}

	ownerID := actor.UserID
	if actor.IsAdmin() && strings.TrimSpace(input.OwnerID) != "" {
		ownerID = strings.TrimSpace(input.OwnerID)
	}

	var owner models.User
	if err := s.db.WithContext(ctx).Where("id = ?", ownerID).Take(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("project service: load owner: %w", err)
	}

	project := &models.Project{
		OwnerID:      owner.ID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Category:     strings.TrimSpace(input.Category),
		Budget:       input.Budget,
		Timeline:     strings.TrimSpace(input.Timeline),
		Status:       models.ProjectInquiry,
		ReferralCode: strings.ToUpper(strings.TrimSpace(input.ReferralCode)),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		if s.activities == nil {
			return nil
		}
		_, err := s.activities.record(tx, RecordActivityInput{
			ProjectID:   project.ID,
			ActorID:     actor.UserID,
			Type:        ActivityProjectCreated,
			Description: "Project created: " + project.Title,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("project service: create project: %w", err)
	}

	if project.ReferralCode != "" && s.referrals != nil {
		if _, err := s.referrals.Attribute(ctx, AttributionInput{
			Code:          project.ReferralCode,
			ReferredEmail: owner.Email,
			ProjectID:     project.ID,
			Source:        SourceProject,
		}); err != nil {
			s.log.Warn("referral attribution failed",
				zap.String("project_id", project.ID),
				zap.String("code", project.ReferralCode),
				zap.Error(err),
			)
		}
	}

	return project, nil
}

// Get loads a project visible to the actor.
func (s *ProjectService) Get(ctx context.Context, actor Actor, id string) (*models.Project, error) {
	return loadVisibleProject(s.db.WithContext(ensureContext(ctx)), actor, id)
}

// List returns projects visible to the actor, newest first.
func (s *ProjectService) List(ctx context.Context, actor Actor, opts ListProjectsOptions) ([]models.Project, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Project{})
	switch {
	case !actor.seesAllProjects():
		query = query.Where("owner_id = ?", actor.UserID)
	case opts.OwnerID != "":
		query = query.Where("owner_id = ?", opts.OwnerID)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: count projects: %w", err)
	}
	var projects []models.Project
	if err := query.Order("created_at DESC").Offset(opts.offset()).Limit(opts.limit()).Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, total, nil
}

// Update applies optional edits. Status, engineer assignment and progress are staff-only and
// status changes must follow the project lifecycle.
func (s *ProjectService) Update(ctx context.Context, actor Actor, id string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	staffOnly := input.Status != nil || input.EngineerID != nil || input.Progress != nil
	if staffOnly && !actor.seesAllProjects() {
		return nil, apperrors.ErrForbidden.WithMessage("Only staff may change status, progress or assignment")
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
	if v := trimPtr(input.Category); v != nil {
		updates["category"] = *v
	}
	if v := trimPtr(input.Timeline); v != nil {
		updates["timeline"] = *v
	}
	if input.Budget != nil {
		if *input.Budget < 0 {
			return nil, apperrors.NewBadRequest("budget cannot be negative")
		}
		updates["budget"] = *input.Budget
	}
	if input.Progress != nil {
		if *input.Progress < 0 || *input.Progress > 100 {
			return nil, apperrors.NewBadRequest("progress must be between 0 and 100")
		}
		updates["progress"] = *input.Progress
	}
	if input.EngineerID != nil {
		engineerID := strings.TrimSpace(*input.EngineerID)
		if engineerID == "" {
			updates["engineer_id"] = nil
		} else {
			var count int64
			if err := s.db.WithContext(ctx).Model(&models.Engineer{}).Where("id = ?", engineerID).Count(&count).Error; err != nil {
				return nil, fmt.Errorf("project service: check engineer: %w", err)
			}
			if count == 0 {
				return nil, ErrEngineerNotFound
			}
			updates["engineer_id"] = engineerID
		}
	}

	statusChanged := false
	if input.Status != nil && *input.Status != project.Status {
		if err := projectTransitions.check(project.Status, *input.Status); err != nil {
			return nil, err
		}
		updates["status"] = *input.Status
		statusChanged = true
	}

	if len(updates) == 0 {
		return project, nil
	}

	previous := project.Status
	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update project: %w", err)
	}

	if statusChanged {
		s.activities.recordQuietly(ctx, RecordActivityInput{
			ProjectID:   project.ID,
			ActorID:     actor.UserID,
			Type:        ActivityStatusChanged,
			Description: fmt.Sprintf("Status changed from %s to %s", previous, *input.Status),
		})
	} else {
		s.activities.recordQuietly(ctx, RecordActivityInput{
			ProjectID:   project.ID,
			ActorID:     actor.UserID,
			Type:        ActivityProjectUpdated,
			Description: "Project details updated",
		})
	}

	return s.Get(ctx, actor, project.ID)
}

// Delete removes a project and everything it owns. Owners and admins only.
func (s *ProjectService) Delete(ctx context.Context, actor Actor, id string) error {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if project.OwnerID != actor.UserID && !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{&models.Task{}, &models.Message{}, &models.Activity{}} {
			if err := tx.Where("project_id = ?", project.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return fmt.Errorf("project service: delete project: %w", err)
	}
	return nil
}

// loadVisibleProject returns the project when the actor owns it or is staff. Projects the
// actor cannot see are reported as not found.
func loadVisibleProject(db *gorm.DB, actor Actor, id string) (*models.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrProjectNotFound
	}

	var project models.Project
	err := db.Where("id = ?", id).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !actor.seesAllProjects() && project.OwnerID != actor.UserID {
		return nil, ErrProjectNotFound
	}
	return &project, nil
}
