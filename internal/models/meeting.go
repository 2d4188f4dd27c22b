package models

import (
	"time"

	"gorm.io/datatypes"
)

// MeetingAttendee is a participant reported by the booking provider.
type MeetingAttendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Meeting is a discovery call booked through the external scheduling provider.
type Meeting struct {
	BaseModel
	ExternalID    string                               `gorm:"uniqueIndex;not null;size:128" json:"external_id"`
	Title         string                               `json:"title"`
	StartTime     *time.Time                           `json:"start_time,omitempty"`
	EndTime       *time.Time                           `json:"end_time,omitempty"`
	Status        string                               `gorm:"size:32;not null;default:booked" json:"status"`
	AttendeeEmail string                               `gorm:"index;size:320" json:"attendee_email,omitempty"`
	AttendeeName  string                               `json:"attendee_name,omitempty"`
	Attendees     datatypes.JSONSlice[MeetingAttendee] `json:"attendees,omitempty"`
	ReferralCode  string                               `gorm:"size:12" json:"referral_code,omitempty"`
	AffiliateID   *string                              `gorm:"type:uuid;index" json:"affiliate_id,omitempty"`
}
