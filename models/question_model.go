package models

import "time"

type TestType string

const (
	TestTypeDisc   TestType = "disc"
	TestTypeMBTI   TestType = "mbti"
	TestTypeStress TestType = "stress"
)

var TestTypes = []TestType{TestTypeDisc, TestTypeMBTI, TestTypeStress}

func ParseTestType(s string) (TestType, bool) {
	for _, t := range TestTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Question struct {
	ID            int64     `gorm:"primaryKey" json:"id,omitzero"`
	TestType      TestType  `gorm:"size:20;not null;index" json:"test_type"`
	QuestionText  string    `gorm:"type:text;not null" json:"question_text"`
	QuestionOrder int       `gorm:"not null;default:1" json:"question_order"`
	CreatedAt     time.Time `json:"created_at,omitzero"`

	Options []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string { return "questions" }
