package model

import "time"

// Exception is a system error persisted for later inspection. Import
// commit failures end up here once every retry is exhausted.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "tradejournal"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "import_service"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Import"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// JSON encoded context; text so it works on sqlite too
	Context string `gorm:"type:text" json:"context,omitempty"`

	UserID *uint `gorm:"index" json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
