package models

// Message is a project conversation entry between the client and the agency.
type Message struct {
	BaseModel
	ProjectID string `gorm:"type:uuid;not null;index" json:"project_id"`
	SenderID  string `gorm:"type:uuid;not null" json:"sender_id"`
	Body      string `gorm:"not null" json:"body"`
}
