package models

import "gorm.io/datatypes"

// Engineer is a member of the delivery team that projects can be assigned to.
type Engineer struct {
	BaseModel
	Name      string                      `gorm:"not null" json:"name"`
	Email     string                      `gorm:"uniqueIndex;not null;size:320" json:"email"`
	Title     string                      `json:"title,omitempty"`
	Bio       string                      `json:"bio,omitempty"`
	AvatarURL string                      `json:"avatar_url,omitempty"`
	Skills    datatypes.JSONSlice[string] `json:"skills,omitempty"`
	Available bool                        `gorm:"not null;default:true" json:"available"`
}
