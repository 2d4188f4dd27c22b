package models

// Activity is an append-only entry in a project's feed.
type Activity struct {
	BaseModel
	ProjectID   string `gorm:"type:uuid;not null;index" json:"project_id"`
	ActorID     string `gorm:"type:uuid" json:"actor_id,omitempty"`
	Type        string `gorm:"size:48;not null" json:"type"`
	Description string `json:"description"`
}
