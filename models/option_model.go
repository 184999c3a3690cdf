package models

const (
	ScoreMin = 0
	ScoreMax = 10
)

type Option struct {
	ID         int64  `gorm:"primaryKey" json:"id,omitzero"`
	QuestionID int64  `gorm:"not null;index" json:"question_id"`
	OptionText string `gorm:"type:text;not null" json:"option_text"`
	DiscD      int    `gorm:"not null;default:0" json:"disc_d"`
	DiscI      int    `gorm:"not null;default:0" json:"disc_i"`
	DiscS      int    `gorm:"not null;default:0" json:"disc_s"`
	DiscC      int    `gorm:"not null;default:0" json:"disc_c"`
}

func (Option) TableName() string { return "options" }

// OptionDraft is a validated option row that has not been written yet.
// Scores are in D, I, S, C order.
type OptionDraft struct {
	Text   string
	Scores [4]int
}
