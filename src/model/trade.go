package model

import "time"

const (
	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"

	TradeDirectionLong  = "LONG"
	TradeDirectionShort = "SHORT"
)

// Trade is a round trip position built from one or more orders.
// Statistics are maintained by the aggregator; the repository only persists them.
type Trade struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;index;uniqueIndex:idx_trades_open_symbol,where:status = 'OPEN'" json:"user_id"`
	Symbol          string     `gorm:"size:50;not null;index;uniqueIndex:idx_trades_open_symbol,where:status = 'OPEN'" json:"symbol"`
	Status          string     `gorm:"size:10;not null;default:'OPEN';index" json:"status"`
	Direction       string     `gorm:"size:10;not null" json:"direction"`
	Volume          int        `gorm:"not null" json:"volume"`
	AvgEntryPrice   float64    `gorm:"not null" json:"avg_entry_price"`
	AvgExitPrice    *float64   `json:"avg_exit_price,omitempty"`
	EntryTimestamp  time.Time  `gorm:"not null" json:"entry_timestamp"`
	ExitTimestamp   *time.Time `json:"exit_timestamp,omitempty"`
	Pnl             *float64   `gorm:"column:pnl" json:"pnl,omitempty"`
	ExecutionsCount int        `gorm:"not null;default:0" json:"executions_count"`
	Notes           string     `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Orders []*Order `gorm:"many2many:trade_orders;" json:"orders,omitempty"`
}

// TableName allows you to control the exact table name for trades.
func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// Clone returns a copy that can be mutated without touching t.
// Orders are shared because they are immutable.
func (t *Trade) Clone() *Trade {
	if t == nil {
		return nil
	}
	c := *t
	c.Orders = append([]*Order(nil), t.Orders...)
	if t.AvgExitPrice != nil {
		v := *t.AvgExitPrice
		c.AvgExitPrice = &v
	}
	if t.ExitTimestamp != nil {
		v := *t.ExitTimestamp
		c.ExitTimestamp = &v
	}
	if t.Pnl != nil {
		v := *t.Pnl
		c.Pnl = &v
	}
	return &c
}

// TradeOrder links an order to the trade it opened, extended or closed.
type TradeOrder struct {
	TradeID uint `gorm:"primaryKey" json:"trade_id"`
	OrderID uint `gorm:"primaryKey" json:"order_id"`
}

func (TradeOrder) TableName() string {
	return "trade_orders"
}

// TradeUpdate is a partial update. Only non-nil fields are written.
type TradeUpdate struct {
	Status          *string
	Volume          *int
	AvgEntryPrice   *float64
	AvgExitPrice    *float64
	EntryTimestamp  *time.Time
	ExitTimestamp   *time.Time
	Pnl             *float64
	ExecutionsCount *int
	Notes           *string
}

// TradeUpdateFromTrade captures every aggregator-maintained column of t.
func TradeUpdateFromTrade(t *Trade) TradeUpdate {
	status := t.Status
	volume := t.Volume
	avgEntry := t.AvgEntryPrice
	entryTs := t.EntryTimestamp
	count := t.ExecutionsCount

	return TradeUpdate{
		Status:          &status,
		Volume:          &volume,
		AvgEntryPrice:   &avgEntry,
		AvgExitPrice:    t.AvgExitPrice,
		EntryTimestamp:  &entryTs,
		ExitTimestamp:   t.ExitTimestamp,
		Pnl:             t.Pnl,
		ExecutionsCount: &count,
	}
}

func (u TradeUpdate) IsEmpty() bool {
	return len(u.Columns()) == 0
}

// Columns returns the column/value pairs of the fields that are set.
func (u TradeUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Volume != nil {
		cols["volume"] = *u.Volume
	}
	if u.AvgEntryPrice != nil {
		cols["avg_entry_price"] = *u.AvgEntryPrice
	}
	if u.AvgExitPrice != nil {
		cols["avg_exit_price"] = *u.AvgExitPrice
	}
	if u.EntryTimestamp != nil {
		cols["entry_timestamp"] = *u.EntryTimestamp
	}
	if u.ExitTimestamp != nil {
		cols["exit_timestamp"] = *u.ExitTimestamp
	}
	if u.Pnl != nil {
		cols["pnl"] = *u.Pnl
	}
	if u.ExecutionsCount != nil {
		cols["executions_count"] = *u.ExecutionsCount
	}
	if u.Notes != nil {
		cols["notes"] = *u.Notes
	}
	return cols
}

// Apply copies the set fields onto t.
func (u TradeUpdate) Apply(t *Trade) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Volume != nil {
		t.Volume = *u.Volume
	}
	if u.AvgEntryPrice != nil {
		t.AvgEntryPrice = *u.AvgEntryPrice
	}
	if u.AvgExitPrice != nil {
		v := *u.AvgExitPrice
		t.AvgExitPrice = &v
	}
	if u.EntryTimestamp != nil {
		t.EntryTimestamp = *u.EntryTimestamp
	}
	if u.ExitTimestamp != nil {
		v := *u.ExitTimestamp
		t.ExitTimestamp = &v
	}
	if u.Pnl != nil {
		v := *u.Pnl
		t.Pnl = &v
	}
	if u.ExecutionsCount != nil {
		t.ExecutionsCount = *u.ExecutionsCount
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
}

// UpdateTradePayload is the body accepted by the trade PATCH endpoint.
type UpdateTradePayload struct {
	Notes *string `json:"notes"`
}
