package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feelize/platform/internal/models"
	"github.com/feelize/platform/pkg/crypto"
	apperrors "github.com/feelize/platform/pkg/errors"
	"github.com/feelize/platform/pkg/logger"
	"github.com/feelize/platform/pkg/validator"
)

const (
	generatedPrefixMax = 8
	generatedSuffixLen = 4
	codeGenAttempts    = 5
)

// CreateAffiliateInput describes an affiliate signup.
type CreateAffiliateInput struct {
	UserID         string
	Name           string
	Email          string
	ReferralCode   string
	CommissionRate *float64
	PaymentDetails map[string]any
}

// UpdateAffiliateInput carries optional admin or self-service edits.
type UpdateAffiliateInput struct {
	Name           *string
	CommissionRate *float64
	PaymentDetails map[string]any
}

// ListAffiliatesOptions controls filtering and pagination for affiliate listing.
type ListAffiliatesOptions struct {
	PageOptions
	Status models.AffiliateStatus
	Query  string
}

// AffiliateStats summarises an affiliate's referral performance.
type AffiliateStats struct {
	TotalReferrals     int64   `json:"total_referrals"`
	BookedReferrals    int64   `json:"booked_referrals"`
	PendingReferrals   int64   `json:"pending_referrals"`
	ConvertedReferrals int64   `json:"converted_referrals"`
	PaidReferrals      int64   `json:"paid_referrals"`
	RejectedReferrals  int64   `json:"rejected_referrals"`
	ConversionRate     float64 `json:"conversion_rate"`
	TotalEarnings      float64 `json:"total_earnings"`
	PendingEarnings    float64 `json:"pending_earnings"`
}

// AffiliateService manages referral-program participants.
type AffiliateService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAffiliateService constructs an AffiliateService.
func NewAffiliateService(db *gorm.DB) (*AffiliateService, error) {
	if db == nil {
		return nil, errors.New("affiliate service: db is required")
	}
	return &AffiliateService{db: db, log: logger.WithModule("affiliates")}, nil
}

// Create registers an affiliate. A supplied code is upper-cased and validated; otherwise one
// is generated from the email. When UserID is set the user is promoted to the affiliate level.
func (s *AffiliateService) Create(ctx context.Context, input CreateAffiliateInput) (*models.Affiliate, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := normaliseEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	rate := models.DefaultCommissionRate
	if input.CommissionRate != nil {
		if err := validateCommissionRate(*input.CommissionRate); err != nil {
			return nil, err
		}
		rate = *input.CommissionRate
	}

	details, err := encodePaymentDetails(input.PaymentDetails)
	if err != nil {
		return nil, err
	}

	affiliate := &models.Affiliate{
		UserID:         optionalID(input.UserID),
		Name:           name,
		Email:          email,
		CommissionRate: rate,
		Status:         models.AffiliatePending,
		PaymentDetails: details,
	}

	custom := strings.TrimSpace(input.ReferralCode)
	if custom != "" {
		code, err := NormaliseReferralCode(custom)
		if err != nil {
			return nil, err
		}
		affiliate.ReferralCode = code
		affiliate.CustomCode = true
		if err := s.insert(ctx, affiliate); err != nil {
			return nil, err
		}
		return affiliate, nil
	}

	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := GenerateReferralCode(email)
		if err != nil {
			return nil, fmt.Errorf("affiliate service: generate code: %w", err)
		}
		affiliate.ID = ""
		affiliate.ReferralCode = code
		err = s.insert(ctx, affiliate)
		if errors.Is(err, ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return affiliate, nil
	}
	return nil, fmt.Errorf("affiliate service: could not generate a unique code after %d attempts", codeGenAttempts)
}

func (s *AffiliateService) insert(ctx context.Context, affiliate *models.Affiliate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Affiliate{}).Where("referral_code = ?", affiliate.ReferralCode).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicateCode
		}

		var existing int64
		if err := tx.Model(&models.Affiliate{}).Where("email = ?", affiliate.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateAffiliate
		}

		if err := tx.Create(affiliate).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateCode
			}
			return err
		}

		if affiliate.UserID != nil {
			res := tx.Model(&models.User{}).
				Where("id = ? AND access_level = ?", *affiliate.UserID, models.AccessClient).
				Update("access_level", models.AccessAffiliate)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if err != nil {
		return fmt.Errorf("affiliate service: create affiliate: %w", err)
	}

	s.log.Info("affiliate registered",
		zap.String("affiliate_id", affiliate.ID),
		zap.String("code", affiliate.ReferralCode),
		zap.Bool("custom_code", affiliate.CustomCode),
	)
	return nil
}

// Get loads an affiliate by id.
func (s *AffiliateService) Get(ctx context.Context, id string) (*models.Affiliate, error) {
	return s.findOne(ensureContext(ctx), "id = ?", strings.TrimSpace(id))
}

// GetByUser loads the affiliate linked to a user.
func (s *AffiliateService) GetByUser(ctx context.Context, userID string) (*models.Affiliate, error) {
	return s.findOne(ensureContext(ctx), "user_id = ?", strings.TrimSpace(userID))
}

// FindByCode resolves a referral code case-insensitively. Unknown codes yield (nil, nil).
func (s *AffiliateService) FindByCode(ctx context.Context, code string) (*models.Affiliate, error) {
	return findAffiliateByCode(s.db.WithContext(ensureContext(ctx)), code)
}

func findAffiliateByCode(db *gorm.DB, code string) (*models.Affiliate, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}
	var affiliate models.Affiliate
	err := db.Where("referral_code = ?", code).Take(&affiliate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load affiliate by code: %w", err)
	}
	return &affiliate, nil
}

func (s *AffiliateService) findOne(ctx context.Context, query string, args ...any) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := s.db.WithContext(ctx).Where(query, args...).Take(&affiliate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAffiliateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("affiliate service: load affiliate: %w", err)
	}
	return &affiliate, nil
}

// CheckCode reports whether a user-supplied code is well formed and unclaimed.
func (s *AffiliateService) CheckCode(ctx context.Context, code string) (bool, error) {
	normalised, err := NormaliseReferralCode(code)
	if err != nil {
		return false, err
	}
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Affiliate{}).
		Where("referral_code = ?", normalised).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("affiliate service: check code: %w", err)
	}
	return count == 0, nil
}

// List returns affiliates ordered by newest first.
func (s *AffiliateService) List(ctx context.Context, opts ListAffiliatesOptions) ([]models.Affiliate, int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Affiliate{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ? OR LOWER(referral_code) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("affiliate service: count affiliates: %w", err)
	}

	var affiliates []models.Affiliate
	if err := query.Order("created_at DESC").Offset(opts.offset()).Limit(opts.limit()).Find(&affiliates).Error; err != nil {
		return nil, 0, fmt.Errorf("affiliate service: list affiliates: %w", err)
	}
	return affiliates, total, nil
}

// Update applies optional edits.
func (s *AffiliateService) Update(ctx context.Context, id string, input UpdateAffiliateInput) (*models.Affiliate, error) {
	ctx = ensureContext(ctx)

	affiliate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := trimPtr(input.Name); name != nil {
		if *name == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty")
		}
		updates["name"] = *name
	}
	if input.CommissionRate != nil {
		if err := validateCommissionRate(*input.CommissionRate); err != nil {
			return nil, err
		}
		updates["commission_rate"] = *input.CommissionRate
	}
	if input.PaymentDetails != nil {
		details, err := encodePaymentDetails(input.PaymentDetails)
		if err != nil {
			return nil, err
		}
		updates["payment_details"] = details
	}
	if len(updates) == 0 {
		return affiliate, nil
	}

	if err := s.db.WithContext(ctx).Model(affiliate).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("affiliate service: update affiliate: %w", err)
	}
	return s.Get(ctx, affiliate.ID)
}

// UpdateStatus moves an affiliate through pending -> active <-> suspended.
func (s *AffiliateService) UpdateStatus(ctx context.Context, id string, status models.AffiliateStatus) (*models.Affiliate, error) {
	ctx = ensureContext(ctx)

	affiliate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := affiliateTransitions.check(affiliate.Status, status); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(affiliate).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("affiliate service: update status: %w", err)
	}
	affiliate.Status = status
	s.log.Info("affiliate status changed", zap.String("affiliate_id", affiliate.ID), zap.String("status", string(status)))
	return affiliate, nil
}

// Stats aggregates referral counts and earnings for an affiliate.
func (s *AffiliateService) Stats(ctx context.Context, id string) (*AffiliateStats, error) {
	ctx = ensureContext(ctx)

	affiliate, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	type row struct {
		Status models.ReferralStatus
		Count  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&models.Referral{}).
		Select("status, COUNT(*) AS count").
		Where("affiliate_id = ?", affiliate.ID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("affiliate service: aggregate referrals: %w", err)
	}

	stats := &AffiliateStats{
		TotalReferrals:  affiliate.TotalReferrals,
		TotalEarnings:   affiliate.TotalEarnings,
		PendingEarnings: affiliate.PendingEarnings,
	}
	for _, r := range rows {
		switch r.Status {
		case models.ReferralBooked:
			stats.BookedReferrals = r.Count
		case models.ReferralPending:
			stats.PendingReferrals = r.Count
		case models.ReferralConverted:
			stats.ConvertedReferrals = r.Count
		case models.ReferralPaid:
			stats.PaidReferrals = r.Count
		case models.ReferralRejected:
			stats.RejectedReferrals = r.Count
		}
	}
	if stats.TotalReferrals > 0 {
		stats.ConversionRate = float64(stats.ConvertedReferrals+stats.PaidReferrals) / float64(stats.TotalReferrals)
	}
	return stats, nil
}

// NormaliseReferralCode upper-cases a user-supplied code and validates its shape.
func NormaliseReferralCode(code string) (string, error) {
	normalised := strings.ToUpper(strings.TrimSpace(code))
	if !validator.ReferralCodePattern.MatchString(normalised) {
		return "", ErrInvalidReferralCode
	}
	return normalised, nil
}

// GenerateReferralCode builds <EMAILPREFIX><SUFFIX> from the alphanumerics of the email's
// local part (at most eight, upper-cased) and four random characters.
func GenerateReferralCode(email string) (string, error) {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}

	var prefix strings.Builder
	for _, r := range strings.ToUpper(local) {
		if prefix.Len() >= generatedPrefixMax {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			prefix.WriteRune(r)
		}
	}

	suffix, err := crypto.RandomString(crypto.CodeAlphabet, generatedSuffixLen)
	if err != nil {
		return "", err
	}
	return prefix.String() + suffix, nil
}

func validateCommissionRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return apperrors.NewBadRequest("commission rate must be between 0 and 1")
	}
	return nil
}

func encodePaymentDetails(details map[string]any) (datatypes.JSON, error) {
	if details == nil {
		return nil, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, apperrors.NewBadRequest("payment details must be a JSON object")
	}
	return datatypes.JSON(raw), nil
}
