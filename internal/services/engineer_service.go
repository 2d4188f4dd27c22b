package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
)

// EngineerInput describes an engineer profile. For updates nil fields are left unchanged.
type EngineerInput struct {
	Name      *string
	Email     *string
	Title     *string
	Bio       *string
	AvatarURL *string
	Skills    []string
	Available *bool
}

// ListEngineersOptions controls filtering and pagination for the engineer directory.
type ListEngineersOptions struct {
	PageOptions
	AvailableOnly bool
}

// EngineerService manages the delivery team directory.
type EngineerService struct {
	db *gorm.DB
}

// NewEngineerService constructs an EngineerService.
func NewEngineerService(db *gorm.DB) (*EngineerService, error) {
	if db == nil {
		return nil, errors.New("engineer service: db is required")
	}
	return &EngineerService{db: db}, nil
}

// Create adds an engineer.
func (s *EngineerService) Create(ctx context.Context, input EngineerInput) (*models.Engineer, error) {
	name := strings.TrimSpace(deref(input.Name))
	email := normaliseEmail(deref(input.Email))
	if name == "" || email == "" {
		return nil, apperrors.NewBadRequest("name and email are required")
	}

	engineer := &models.Engineer{
		Name:      name,
		Email:     email,
		Title:     strings.TrimSpace(deref(input.Title)),
		Bio:       strings.TrimSpace(deref(input.Bio)),
		AvatarURL: strings.TrimSpace(deref(input.AvatarURL)),
		Skills:    datatypes.JSONSlice[string](cleanSkills(input.Skills)),
		Available: true,
	}
	if input.Available != nil {
		engineer.Available = *input.Available
	}

	if err := s.db.WithContext(ensureContext(ctx)).Create(engineer).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateEngineer
		}
		return nil, fmt.Errorf("engineer service: create engineer: %w", err)
	}
	return engineer, nil
}

// Get loads an engineer by id.
func (s *EngineerService) Get(ctx context.Context, id string) (*models.Engineer, error) {
	var engineer models.Engineer
	err := s.db.WithContext(ensureContext(ctx)).Where("id = ?", strings.TrimSpace(id)).Take(&engineer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEngineerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("engineer service: load engineer: %w", err)
	}
	return &engineer, nil
}

// List returns engineers ordered by name.
func (s *EngineerService) List(ctx context.Context, opts ListEngineersOptions) ([]models.Engineer, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Engineer{})
	if opts.AvailableOnly {
		query = query.Where("available = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("engineer service: count engineers: %w", err)
	}
	var engineers []models.Engineer
	if err := query.Order("name ASC").Offset(opts.offset()).Limit(opts.limit()).Find(&engineers).Error; err != nil {
		return nil, 0, fmt.Errorf("engineer service: list engineers: %w", err)
	}
	return engineers, total, nil
}

// Update applies optional edits to an engineer.
func (s *EngineerService) Update(ctx context.Context, id string, input EngineerInput) (*models.Engineer, error) {
	ctx = ensureContext(ctx)

	engineer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if v := trimPtr(input.Name); v != nil {
		if *v == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty")
		}
		updates["name"] = *v
	}
	if input.Email != nil {
		email := normaliseEmail(*input.Email)
		if email == "" {
			return nil, apperrors.NewBadRequest("email cannot be empty")
		}
		updates["email"] = email
	}
	if v := trimPtr(input.Title); v != nil {
		updates["title"] = *v
	}
	if v := trimPtr(input.Bio); v != nil {
		updates["bio"] = *v
	}
	if v := trimPtr(input.AvatarURL); v != nil {
		updates["avatar_url"] = *v
	}
	if input.Skills != nil {
		updates["skills"] = datatypes.JSONSlice[string](cleanSkills(input.Skills))
	}
	if input.Available != nil {
		updates["available"] = *input.Available
	}
	if len(updates) == 0 {
		return engineer, nil
	}

	if err := s.db.WithContext(ctx).Model(engineer).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateEngineer
		}
		return nil, fmt.Errorf("engineer service: update engineer: %w", err)
	}
	return s.Get(ctx, engineer.ID)
}

// Delete removes an engineer and unassigns them from projects and tasks.
func (s *EngineerService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	engineer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Project{}).Where("engineer_id = ?", engineer.ID).Update("engineer_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Where("assignee_id = ?", engineer.ID).Update("assignee_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(engineer).Error
	})
	if err != nil {
		return fmt.Errorf("engineer service: delete engineer: %w", err)
	}
	return nil
}

func cleanSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
