package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
)

const maxMessageLength = 10000

// MessageService manages project conversations.
type MessageService struct {
	db         *gorm.DB
	activities *ActivityService
}

// NewMessageService constructs a MessageService. activities may be nil.
func NewMessageService(db *gorm.DB, activities *ActivityService) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	return &MessageService{db: db, activities: activities}, nil
}

// Post appends a message to a project the actor can see.
func (s *MessageService) Post(ctx context.Context, actor Actor, projectID, body string) (*models.Message, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	project, err := loadVisibleProject(db, actor, projectID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewBadRequest("message body is required")
	}
	if len(body) > maxMessageLength {
		return nil, apperrors.NewBadRequest("message is too long")
	}

	message := &models.Message{ProjectID: project.ID, SenderID: actor.UserID, Body: body}
	if err := db.Create(message).Error; err != nil {
		return nil, fmt.Errorf("message service: post message: %w", err)
	}

	s.activities.recordQuietly(ctx, RecordActivityInput{
		ProjectID:   project.ID,
		ActorID:     actor.UserID,
		Type:        ActivityMessagePosted,
		Description: "New message",
	})
	return message, nil
}

// List returns a project's messages oldest first.
func (s *MessageService) List(ctx context.Context, actor Actor, projectID string, page PageOptions) ([]models.Message, int64, error) {
	db := s.db.WithContext(ensureContext(ctx))

	if _, err := loadVisibleProject(db, actor, projectID); err != nil {
		return nil, 0, err
	}

	query := db.Model(&models.Message{}).Where("project_id = ?", strings.TrimSpace(projectID))
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("message service: count messages: %w", err)
	}
	var messages []models.Message
	if err := query.Order("created_at ASC").Offset(page.offset()).Limit(page.limit()).Find(&messages).Error; err != nil {
		return nil, 0, fmt.Errorf("message service: list messages: %w", err)
	}
	return messages, total, nil
}
