package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Note struct {
	Id              uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title           string                      `gorm:"type:varchar(255);not null"`
	Kind            string                      `gorm:"type:varchar(20);not null;default:'personal'"`
	OwnerId         uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Collaborators   datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"`
	Shapes          datatypes.JSON              `gorm:"type:jsonb;not null;default:'[]'"`
	BackgroundColor string                      `gorm:"type:varchar(16);not null;default:'#FFFFFF'"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt              `gorm:"index"`
}

func (Note) TableName() string {
	return "notes"
}
