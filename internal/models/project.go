package models

// ProjectStatus is the delivery stage of a client project.
type ProjectStatus string

const (
	ProjectInquiry    ProjectStatus = "inquiry"
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectOnHold     ProjectStatus = "on_hold"
	ProjectReview     ProjectStatus = "review"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Project is a client engagement; it owns tasks, messages and activities.
type Project struct {
	BaseModel
	OwnerID      string        `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner        *User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Title        string        `gorm:"not null" json:"title"`
	Description  string        `json:"description"`
	Category     string        `gorm:"size:64" json:"category,omitempty"`
	Budget       float64       `gorm:"not null;default:0" json:"budget"`
	Timeline     string        `json:"timeline,omitempty"`
	Status       ProjectStatus `gorm:"size:16;not null;default:inquiry;index" json:"status"`
	ReferralCode string        `gorm:"size:12" json:"referral_code,omitempty"`
	EngineerID   *string       `gorm:"type:uuid;index" json:"engineer_id,omitempty"`
	Progress     int           `gorm:"not null;default:0" json:"progress"`
}
