package aggregator

import (
	"fmt"

	"tradejournal/src/model"
)

type WarningKind string

const (
	// An opening execution against an open trade of the opposite direction.
	WarningDirectionConflict WarningKind = "direction_conflict"
	// A closing execution with no open trade for its symbol.
	WarningOrphanClose WarningKind = "orphan_close"
	// A closing execution larger than the quantity still open.
	WarningOverClose WarningKind = "over_close"
)

// Warning describes an execution that was not applied to any trade.
type Warning struct {
	Kind    WarningKind
	Symbol  string
	Index   int // position in the batch as given to Reconcile
	Order   *model.Order
	Trade   *model.Trade // open trade involved, nil for orphan closes
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Fields returns the warning as structured metadata for logs and audit rows.
func (w Warning) Fields() map[string]any {
	fields := map[string]any{
		"kind":            string(w.Kind),
		"symbol":          w.Symbol,
		"batch_index":     w.Index,
		"side":            w.Order.Side,
		"position_effect": w.Order.PositionEffect,
		"quantity":        w.Order.Quantity,
		"price":           w.Order.Price,
		"execution_time":  w.Order.ExecutionTime,
	}
	if w.Trade != nil {
		fields["trade_direction"] = w.Trade.Direction
		if w.Trade.ID != 0 {
			fields["trade_id"] = w.Trade.ID
		}
	}
	return fields
}
