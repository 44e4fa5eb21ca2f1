package model

import "time"

const (
	ImportLogLevelInfo = "info"
	ImportLogLevelWarn = "warn"
)

// ImportLog is the audit trail of one import batch. One row is written for
// every execution the aggregator skipped.
type ImportLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ImportID  string         `gorm:"size:36;index;not null" json:"import_id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	OrderID   *uint          `gorm:"index" json:"order_id,omitempty"`
	TradeID   *uint          `gorm:"index" json:"trade_id,omitempty"`
	Level     string         `gorm:"size:20;not null" json:"level"`
	Kind      string         `gorm:"size:40;not null" json:"kind"`
	Message   string         `gorm:"size:1024;not null" json:"message"`
	Metadata  map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ImportLog) TableName() string {
	return "import_logs"
}
