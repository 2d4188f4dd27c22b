package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/metrics"
)

// AttributionSource names the flow that triggered an attribution.
type AttributionSource string

const (
	SourceMeeting AttributionSource = "meeting"
	SourceProject AttributionSource = "project"
	SourceManual  AttributionSource = "manual"
)

// AttributionInput describes a referral code use.
type AttributionInput struct {
	Code          string
	ReferredEmail string
	ProjectID     string
	MeetingID     string
	Source        AttributionSource
}

// ListReferralsOptions controls filtering and pagination for referral listing.
type ListReferralsOptions struct {
	PageOptions
	AffiliateID string
	Status      models.ReferralStatus
}

// UpdateReferralInput carries an admin status change.
type UpdateReferralInput struct {
	Status models.ReferralStatus
	Notes  *string
	// CommissionAmount overrides the computed commission on conversion.
	CommissionAmount *float64
}

// ReferralService attributes referral codes and manages referral lifecycles.
type ReferralService struct {
	db  *gorm.DB
	now Clock
	log *zap.Logger
}

// NewReferralService constructs a ReferralService.
func NewReferralService(db *gorm.DB, clock Clock) (*ReferralService, error) {
	if db == nil {
		return nil, errors.New("referral service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &ReferralService{db: db, now: clock, log: logger.WithModule("referrals")}, nil
}

// Attribute links a referral code use to its affiliate. An unknown code returns (nil, nil).
// A repeat for the same (affiliate, meeting) or (affiliate, project) returns the existing
// referral and leaves the affiliate's counter untouched: the insert and the counter update
// commit together and the unique indexes reject the second insert.
func (s *ReferralService) Attribute(ctx context.Context, input AttributionInput) (*models.Referral, error) {
	ctx = ensureContext(ctx)
	source := input.Source
	if source == "" {
		source = SourceManual
	}

	affiliate, err := findAffiliateByCode(s.db.WithContext(ctx), input.Code)
	if err != nil {
		metrics.ReferralAttributions.WithLabelValues(string(source), "error").Inc()
		return nil, fmt.Errorf("referral service: %w", err)
	}
	if affiliate == nil {
		metrics.ReferralAttributions.WithLabelValues(string(source), "unmatched").Inc()
		return nil, nil
	}

	status := models.ReferralPending
	if source == SourceMeeting {
		status = models.ReferralBooked
	}
	referral := &models.Referral{
		AffiliateID:   affiliate.ID,
		ReferredEmail: normaliseEmail(input.ReferredEmail),
		ProjectID:     optionalID(input.ProjectID),
		MeetingID:     optionalID(input.MeetingID),
		Status:        status,
	}
	if referral.ReferredEmail != "" {
		var user models.User
		err := s.db.WithContext(ctx).Select("id").Where("email = ?", referral.ReferredEmail).Take(&user).Error
		switch {
		case err == nil:
			referral.ReferredUserID = &user.ID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			metrics.ReferralAttributions.WithLabelValues(string(source), "error").Inc()
			return nil, fmt.Errorf("referral service: load referred user: %w", err)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(referral).Error; err != nil {
			return err
		}
		return tx.Model(&models.Affiliate{}).
			Where("id = ?", affiliate.ID).
			Update("total_referrals", gorm.Expr("total_referrals + ?", 1)).Error
	})
	if err != nil && isUniqueConstraintError(err) {
		existing, lookupErr := s.findExisting(ctx, affiliate.ID, referral.MeetingID, referral.ProjectID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		metrics.ReferralAttributions.WithLabelValues(string(source), "duplicate").Inc()
		return existing, nil
	}
	if err != nil {
		metrics.ReferralAttributions.WithLabelValues(string(source), "error").Inc()
		return nil, fmt.Errorf("referral service: create referral: %w", err)
	}

	metrics.ReferralAttributions.WithLabelValues(string(source), "created").Inc()
	s.log.Info("referral attributed",
		zap.String("referral_id", referral.ID),
		zap.String("affiliate_id", affiliate.ID),
		zap.String("source", string(source)),
	)
	return referral, nil
}

func (s *ReferralService) findExisting(ctx context.Context, affiliateID string, meetingID, projectID *string) (*models.Referral, error) {
	query := s.db.WithContext(ctx).Where("affiliate_id = ?", affiliateID)
	switch {
	case meetingID != nil && projectID != nil:
		query = query.Where("meeting_id = ? OR project_id = ?", *meetingID, *projectID)
	case meetingID != nil:
		query = query.Where("meeting_id = ?", *meetingID)
	case projectID != nil:
		query = query.Where("project_id = ?", *projectID)
	default:
		return nil, errors.New("referral service: duplicate reported without a meeting or project key")
	}

	var referral models.Referral
	if err := query.Take(&referral).Error; err != nil {
		return nil, fmt.Errorf("referral service: load existing referral: %w", err)
	}
	return &referral, nil
}

// Get loads a referral by id together with its affiliate.
func (s *ReferralService) Get(ctx context.Context, id string) (*models.Referral, error) {
	var referral models.Referral
	err := s.db.WithContext(ensureContext(ctx)).Preload("Affiliate").Where("id = ?", strings.TrimSpace(id)).Take(&referral).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("referral service: load referral: %w", err)
	}
	return &referral, nil
}

// List returns referrals ordered by newest first.
func (s *ReferralService) List(ctx context.Context, opts ListReferralsOptions) ([]models.Referral, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Referral{})
	if opts.AffiliateID != "" {
		query = query.Where("affiliate_id = ?", opts.AffiliateID)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("referral service: count referrals: %w", err)
	}

	var referrals []models.Referral
	if err := query.Order("created_at DESC").Offset(opts.offset()).Limit(opts.limit()).Find(&referrals).Error; err != nil {
		return nil, 0, fmt.Errorf("referral service: list referrals: %w", err)
	}
	return referrals, total, nil
}

// UpdateStatus applies a lifecycle transition. Converting records the conversion date and
// books the commission as pending earnings; paying moves it to total earnings; rejecting
// a converted referral releases its pending commission.
func (s *ReferralService) UpdateStatus(ctx context.Context, id string, input UpdateReferralInput) (*models.Referral, error) {
	ctx = ensureContext(ctx)

	if input.CommissionAmount != nil && *input.CommissionAmount < 0 {
		return nil, apperrors.NewBadRequest("commission amount cannot be negative")
	}

	var updated models.Referral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referral models.Referral
		if err := tx.Where("id = ?", strings.TrimSpace(id)).Take(&referral).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferralNotFound
			}
			return err
		}
		if err := referralTransitions.check(referral.Status, input.Status); err != nil {
			return err
		}

		updates := map[string]any{"status": input.Status}
		if notes := trimPtr(input.Notes); notes != nil {
			updates["notes"] = *notes
		}

		affiliate := tx.Model(&models.Affiliate{}).Where("id = ?", referral.AffiliateID)
		switch input.Status {
		case models.ReferralConverted:
			commission, err := s.commissionFor(tx, &referral, input.CommissionAmount)
			if err != nil {
				return err
			}
			updates["commission_amount"] = commission
			updates["conversion_date"] = s.now()
			if err := affiliate.Update("pending_earnings", gorm.Expr("pending_earnings + ?", commission)).Error; err != nil {
				return err
			}
		case models.ReferralPaid:
			if err := affiliate.Updates(map[string]any{
				"pending_earnings": gorm.Expr("pending_earnings - ?", referral.CommissionAmount),
				"total_earnings":   gorm.Expr("total_earnings + ?", referral.CommissionAmount),
			}).Error; err != nil {
				return err
			}
		case models.ReferralRejected:
			if referral.Status == models.ReferralConverted && referral.CommissionAmount > 0 {
				if err := affiliate.Update("pending_earnings", gorm.Expr("pending_earnings - ?", referral.CommissionAmount)).Error; err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&referral).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", referral.ID).Take(&updated).Error
	})

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("referral service: update status: %w", err)
	}

	s.log.Info("referral status changed", zap.String("referral_id", updated.ID), zap.String("status", string(updated.Status)))
	return &updated, nil
}

// commissionFor derives the commission as project budget times the affiliate's rate. Without
// a project budget the explicit override (or zero) is used.
func (s *ReferralService) commissionFor(tx *gorm.DB, referral *models.Referral, override *float64) (float64, error) {
	if override != nil {
		return *override, nil
	}
	if referral.ProjectID == nil {
		return 0, nil
	}

	var project models.Project
	err := tx.Select("budget").Where("id = ?", *referral.ProjectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var affiliate models.Affiliate
	if err := tx.Select("commission_rate").Where("id = ?", referral.AffiliateID).Take(&affiliate).Error; err != nil {
		return 0, err
	}
	return project.Budget * affiliate.CommissionRate, nil
}
