package models

import "gorm.io/datatypes"

// AffiliateStatus tracks the lifecycle of a referral-program participant.
type AffiliateStatus string

const (
	AffiliatePending   AffiliateStatus = "pending"
	AffiliateActive    AffiliateStatus = "active"
	AffiliateSuspended AffiliateStatus = "suspended"
)

// DefaultCommissionRate is applied when signup does not specify one.
const DefaultCommissionRate = 0.10

// Affiliate is a referral-program participant. ReferralCode is stored upper-case so the
// unique index doubles as a case-insensitive uniqueness guarantee.
type Affiliate struct {
	BaseModel
	UserID          *string         `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Name            string          `gorm:"not null" json:"name"`
	Email           string          `gorm:"uniqueIndex;not null;size:320" json:"email"`
	ReferralCode    string          `gorm:"uniqueIndex;not null;size:12" json:"referral_code"`
	CustomCode      bool            `gorm:"not null;default:false" json:"custom_code"`
	CommissionRate  float64         `gorm:"not null;default:0.1" json:"commission_rate"`
	TotalEarnings   float64         `gorm:"not null;default:0" json:"total_earnings"`
	PendingEarnings float64         `gorm:"not null;default:0" json:"pending_earnings"`
	TotalReferrals  int64           `gorm:"not null;default:0" json:"total_referrals"`
	Status          AffiliateStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	PaymentDetails  datatypes.JSON  `json:"payment_details,omitempty"`
}
