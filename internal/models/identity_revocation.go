package models

import "time"

// IdentityRevocation records the instant before which every session artifact issued for
// a subject is considered revoked.
type IdentityRevocation struct {
	Subject    string    `gorm:"primaryKey;size:160" json:"subject"`
	ValidAfter time.Time `gorm:"not null" json:"valid_after"`
	UpdatedAt  time.Time `json:"updated_at"`
}
