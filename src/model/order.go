package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"

	PositionEffectToOpen  = "TO OPEN"
	PositionEffectToClose = "TO CLOSE"
)

var ErrInvalidOrder = errors.New("invalid order")

// Order is a single execution (fill) imported from a broker statement.
// Orders are never mutated after they are created.
type Order struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	ImportID       string     `gorm:"size:36;index" json:"import_id"`
	ExecutionTime  time.Time  `gorm:"not null;index" json:"execution_time"`
	Spread         *string    `gorm:"size:50" json:"spread,omitempty"`
	Side           string     `gorm:"size:10;not null" json:"side"`
	Quantity       int        `gorm:"not null" json:"quantity"`
	PositionEffect string     `gorm:"size:20;not null" json:"position_effect"`
	Symbol         string     `gorm:"size:50;not null;index" json:"symbol"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	StrikePrice    *float64   `json:"strike_price,omitempty"`
	OptionType     *string    `gorm:"size:20" json:"option_type,omitempty"`
	Price          float64    `gorm:"not null" json:"price"`
	NetPrice       float64    `gorm:"not null" json:"net_price"`
	OrderType      *string    `gorm:"size:30" json:"order_type,omitempty"`
	Notes          *string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// NormalizeSide maps broker spellings (buy, Buy, B) to BUY / SELL.
// Unknown values are returned upper-cased so Validate can reject them.
func NormalizeSide(side string) string {
	s := strings.ToUpper(strings.TrimSpace(side))
	switch s {
	case "B":
		return OrderSideBuy
	case "S":
		return OrderSideSell
	}
	return s
}

// NormalizePositionEffect accepts "TO OPEN", "TO_OPEN", "to open" and friends.
func NormalizePositionEffect(effect string) string {
	s := strings.ToUpper(strings.TrimSpace(effect))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	return s
}

func (o *Order) IsOpening() bool {
	return o.PositionEffect == PositionEffectToOpen
}

func (o *Order) IsClosing() bool {
	return o.PositionEffect == PositionEffectToClose
}

// AbsQuantity returns the quantity magnitude. Some statements carry a negative
// quantity for sells; the side already says that, so the sign is dropped.
func (o *Order) AbsQuantity() int {
	if o.Quantity < 0 {
		return -o.Quantity
	}
	return o.Quantity
}

// ImpliedDirection is the direction a position opened by this order would have.
func (o *Order) ImpliedDirection() string {
	if o.Side == OrderSideSell {
		return TradeDirectionShort
	}
	return TradeDirectionLong
}

// Validate checks the fields the trade aggregator relies on.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.IsOpening() && !o.IsClosing() {
		return fmt.Errorf("%w: unknown position effect %q", ErrInvalidOrder, o.PositionEffect)
	}
	if o.Quantity == 0 {
		return fmt.Errorf("%w: quantity must not be zero", ErrInvalidOrder)
	}
	if o.ExecutionTime.IsZero() {
		return fmt.Errorf("%w: execution time is required", ErrInvalidOrder)
	}
	if !isFinite(o.Price) || !isFinite(o.NetPrice) {
		return fmt.Errorf("%w: price must be finite", ErrInvalidOrder)
	}
	if o.StrikePrice != nil && !isFinite(*o.StrikePrice) {
		return fmt.Errorf("%w: strike price must be finite", ErrInvalidOrder)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
