package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/validator"
)

// MeetingCancelled is the status recorded for cancelled bookings.
const MeetingCancelled = "cancelled"

const defaultMeetingStatus = "booked"

// BookingInput is a booking reported by the scheduling provider.
type BookingInput struct {
	UID          string
	Title        string
	StartTime    *time.Time
	EndTime      *time.Time
	Status       string
	Attendees    []models.MeetingAttendee
	ReferralCode string
}

// BookingOutcome reports what a booking upsert changed.
type BookingOutcome struct {
	Meeting  *models.Meeting  `json:"meeting"`
	Created  bool             `json:"created"`
	Referral *models.Referral `json:"referral,omitempty"`
}

// ListMeetingsOptions controls filtering and pagination for meeting listing.
type ListMeetingsOptions struct {
	PageOptions
	Status      string
	AffiliateID string
}

// MeetingService records bookings from the scheduling provider.
type MeetingService struct {
	db        *gorm.DB
	referrals *ReferralService
	log       *zap.Logger
}

// NewMeetingService constructs a MeetingService. referrals may be nil to skip attribution.
func NewMeetingService(db *gorm.DB, referrals *ReferralService) (*MeetingService, error) {
	if db == nil {
		return nil, errors.New("meeting service: db is required")
	}
	return &MeetingService{db: db, referrals: referrals, log: logger.WithModule("meetings")}, nil
}

// UpsertBooking creates or refreshes the meeting for a booking uid and attributes its
// referral code. Attribution failures are logged; the booking is still recorded.
func (s *MeetingService) UpsertBooking(ctx context.Context, input BookingInput) (*BookingOutcome, error) {
	ctx = ensureContext(ctx)

	uid := strings.TrimSpace(input.UID)
	if uid == "" {
		return nil, apperrors.NewBadRequest("booking uid is required")
	}

	status := strings.ToLower(strings.TrimSpace(input.Status))
	if status == "" {
		status = defaultMeetingStatus
	}

	attendees := make([]models.MeetingAttendee, 0, len(input.Attendees))
	for _, a := range input.Attendees {
		email := normaliseEmail(a.Email)
		if email == "" {
			continue
		}
		attendees = append(attendees, models.MeetingAttendee{Email: email, Name: strings.TrimSpace(a.Name)})
	}

	fields := models.Meeting{
		ExternalID:   uid,
		Title:        strings.TrimSpace(input.Title),
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Status:       status,
		Attendees:    datatypes.JSONSlice[models.MeetingAttendee](attendees),
		ReferralCode: s.bookingReferralCode(uid, input.ReferralCode),
	}
	if len(attendees) > 0 {
		fields.AttendeeEmail = attendees[0].Email
		fields.AttendeeName = attendees[0].Name
	}

	meeting, created, err := s.upsert(ctx, fields)
	if err != nil {
		return nil, err
	}
	outcome := &BookingOutcome{Meeting: meeting, Created: created}

	if meeting.ReferralCode != "" && s.referrals != nil {
		referral, err := s.referrals.Attribute(ctx, AttributionInput{
			Code:          meeting.ReferralCode,
			ReferredEmail: meeting.AttendeeEmail,
			MeetingID:     meeting.ID,
			Source:        SourceMeeting,
		})
		switch {
		case err != nil:
			s.log.Warn("referral attribution failed",
				zap.String("booking_uid", uid),
				zap.String("code", meeting.ReferralCode),
				zap.Error(err),
			)
		case referral != nil:
			outcome.Referral = referral
			if meeting.AffiliateID == nil || *meeting.AffiliateID != referral.AffiliateID {
				if err := s.db.WithContext(ctx).Model(meeting).Update("affiliate_id", referral.AffiliateID).Error; err != nil {
					s.log.Warn("failed to link meeting to affiliate", zap.String("booking_uid", uid), zap.Error(err))
				} else {
					meeting.AffiliateID = &referral.AffiliateID
				}
			}
		}
	}

	return outcome, nil
}

// bookingReferralCode upper-cases the payload code and drops it when it is not a
// well-formed referral code.
func (s *MeetingService) bookingReferralCode(uid, raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return ""
	}
	if !validator.IsReferralCode(code) {
		s.log.Warn("ignoring malformed booking referral code",
			zap.String("booking_uid", uid),
			zap.Int("length", len(code)),
		)
		return ""
	}
	return code
}

func (s *MeetingService) upsert(ctx context.Context, fields models.Meeting) (*models.Meeting, bool, error) {
	db := s.db.WithContext(ctx)

	existing, err := s.findByUID(ctx, fields.ExternalID)
	if errors.Is(err, ErrMeetingNotFound) {
		meeting := fields
		createErr := db.Create(&meeting).Error
		if createErr == nil {
			return &meeting, true, nil
		}
		if !isUniqueConstraintError(createErr) {
			return nil, false, fmt.Errorf("meeting service: create meeting: %w", createErr)
		}
		// A concurrent delivery created it first; fall through to the update path.
		existing, err = s.findByUID(ctx, fields.ExternalID)
	}
	if err != nil {
		return nil, false, err
	}

	updates := map[string]any{
		"status":     fields.Status,
		"attendees":  fields.Attendees,
		"start_time": fields.StartTime,
		"end_time":   fields.EndTime,
	}
	if fields.Title != "" {
		updates["title"] = fields.Title
	}
	if fields.AttendeeEmail != "" {
		updates["attendee_email"] = fields.AttendeeEmail
		updates["attendee_name"] = fields.AttendeeName
	}
	if fields.ReferralCode != "" {
		updates["referral_code"] = fields.ReferralCode
	}
	if err := db.Model(existing).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("meeting service: update meeting: %w", err)
	}

	refreshed, err := s.findByUID(ctx, fields.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return refreshed, false, nil
}

// CancelBooking marks the meeting for a booking uid as cancelled.
func (s *MeetingService) CancelBooking(ctx context.Context, uid string) (*models.Meeting, error) {
	ctx = ensureContext(ctx)

	meeting, err := s.findByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(meeting).Update("status", MeetingCancelled).Error; err != nil {
		return nil, fmt.Errorf("meeting service: cancel meeting: %w", err)
	}
	meeting.Status = MeetingCancelled
	return meeting, nil
}

// GetByUID loads the meeting for a booking uid.
func (s *MeetingService) GetByUID(ctx context.Context, uid string) (*models.Meeting, error) {
	return s.findByUID(ensureContext(ctx), uid)
}

// List returns meetings ordered by start time, most recent first.
func (s *MeetingService) List(ctx context.Context, opts ListMeetingsOptions) ([]models.Meeting, int64, error) {
	query := s.db.WithContext(ensureContext(ctx)).Model(&models.Meeting{})
	if opts.Status != "" {
		query = query.Where("status = ?", strings.ToLower(opts.Status))
	}
	if opts.AffiliateID != "" {
		query = query.Where("affiliate_id = ?", opts.AffiliateID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("meeting service: count meetings: %w", err)
	}
	var meetings []models.Meeting
	if err := query.Order("start_time DESC").Order("created_at DESC").Offset(opts.offset()).Limit(opts.limit()).Find(&meetings).Error; err != nil {
		return nil, 0, fmt.Errorf("meeting service: list meetings: %w", err)
	}
	return meetings, total, nil
}

func (s *MeetingService) findByUID(ctx context.Context, uid string) (*models.Meeting, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrMeetingNotFound
	}
	var meeting models.Meeting
	err := s.db.WithContext(ctx).Where("external_id = ?", uid).Take(&meeting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("meeting service: load meeting: %w", err)
	}
	return &meeting, nil
}
