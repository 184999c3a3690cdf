package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Result struct {
	ID         int64          `gorm:"primaryKey" json:"id,omitzero"`
	ProfileID  uuid.UUID      `gorm:"type:uuid;index" json:"profile_id"`
	TestType   TestType       `gorm:"size:20;not null" json:"test_type"`
	ResultData datatypes.JSON `json:"result_data"`
	CreatedAt  time.Time      `json:"created_at,omitzero"`

	Profile *Profile `gorm:"foreignKey:ProfileID" json:"profiles,omitempty"`
}

func (Result) TableName() string { return "results" }
