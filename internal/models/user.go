package models

import "time"

// AccessLevel enumerates the dashboards a user may reach.
type AccessLevel string

const (
	AccessClient    AccessLevel = "client"
	AccessAffiliate AccessLevel = "affiliate"
	AccessEngineer  AccessLevel = "engineer"
	AccessAdmin     AccessLevel = "admin"
)

// Valid reports whether the level is one of the known access levels.
func (a AccessLevel) Valid() bool {
	switch a {
	case AccessClient, AccessAffiliate, AccessEngineer, AccessAdmin:
		return true
	}
	return false
}

// User is the local account shadowing an external identity. ExternalID stays nil until the
// first provider login (passcode-only users never receive one).
type User struct {
	BaseModel
	ExternalID  *string     `gorm:"uniqueIndex;size:128" json:"external_id,omitempty"`
	Email       string      `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Name        string      `json:"name"`
	Picture     string      `json:"picture"`
	AccessLevel AccessLevel `gorm:"size:32;not null;default:client" json:"access_level"`

	PasscodeHash      string     `json:"-"`
	PasscodeExpiresAt *time.Time `json:"-"`
	PasscodeAttempts  int        `gorm:"not null;default:0" json:"-"`

	Banned    bool       `gorm:"not null;default:false" json:"banned"`
	BanReason string     `json:"ban_reason,omitempty"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the user holds the admin access level.
func (u *User) IsAdmin() bool {
	return u != nil && u.AccessLevel == AccessAdmin
}
