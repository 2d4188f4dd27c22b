package models

import "time"

// ReferralStatus is the position of a referral in its payout lifecycle.
type ReferralStatus string

const (
	ReferralBooked    ReferralStatus = "booked"
	ReferralPending   ReferralStatus = "pending"
	ReferralConverted ReferralStatus = "converted"
	ReferralPaid      ReferralStatus = "paid"
	ReferralRejected  ReferralStatus = "rejected"
)

// Referral links one affiliate to one referred client, meeting or project. The composite
// unique indexes make attribution idempotent per (affiliate, meeting) and
// (affiliate, project); NULL keys never collide.
type Referral struct {
	BaseModel
	AffiliateID      string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_referral_affiliate_meeting,priority:1;uniqueIndex:idx_referral_affiliate_project,priority:1" json:"affiliate_id"`
	Affiliate        *Affiliate     `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
	ReferredEmail    string         `gorm:"index;size:320" json:"referred_email"`
	ReferredUserID   *string        `gorm:"type:uuid;index" json:"referred_user_id,omitempty"`
	ProjectID        *string        `gorm:"type:uuid;uniqueIndex:idx_referral_affiliate_project,priority:2" json:"project_id,omitempty"`
	MeetingID        *string        `gorm:"type:uuid;uniqueIndex:idx_referral_affiliate_meeting,priority:2" json:"meeting_id,omitempty"`
	Status           ReferralStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	CommissionAmount float64        `gorm:"not null;default:0" json:"commission_amount"`
	ConversionDate   *time.Time     `json:"conversion_date,omitempty"`
	Notes            string         `json:"notes,omitempty"`
}
