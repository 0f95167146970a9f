package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SectionConfig struct {
	Count  int     `json:"count"`
	Weight float64 `json:"weight"`
}

type Template struct {
	ID                  uint                                         `gorm:"primarykey" json:"id"`
	Name                string                                       `json:"name" gorm:"not null;uniqueIndex"`
	Description         string                                       `json:"description,omitempty"`
	Role                string                                       `json:"role" gorm:"not null"`
	Difficulty          string                                       `json:"difficulty" gorm:"type:varchar(16);not null;default:'mid'"`
	SectionConfig       datatypes.JSONType[map[string]SectionConfig] `json:"section_config" gorm:"type:jsonb;not null"`
	TimeLimitMinutes    int                                          `json:"time_limit_minutes" gorm:"not null;default:60"`
	PassingScorePercent float64                                      `json:"passing_score_percent" gorm:"not null;default:70"`
	IsActive            bool                                         `json:"is_active" gorm:"not null;default:true"`
	Questions           []Question                                   `json:"questions,omitempty" gorm:"foreignKey:TemplateID"`
	CreatedAt           time.Time                                    `json:"created_at"`
	UpdatedAt           time.Time                                    `json:"updated_at"`
	DeletedAt           gorm.DeletedAt                               `gorm:"index" json:"-"`
}
