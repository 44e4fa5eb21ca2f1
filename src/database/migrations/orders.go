package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// normalizePositionEffect rewrites the underscore spelling written by early
// importers ("TO_OPEN") to the statement spelling the aggregator expects.
func normalizePositionEffect(db *gorm.DB) error {
	replacements := map[string]string{
		"TO_OPEN":  "TO OPEN",
		"TO_CLOSE": "TO CLOSE",
	}
	for from, to := range replacements {
		if err := db.Table("orders").
			Where("position_effect = ?", from).
			Update("position_effect", to).Error; err != nil {
			return fmt.Errorf("normalize %s: %w", from, err)
		}
	}
	return nil
}

// backfillTradeExecutionsCount recomputes executions_count from the join table.
func backfillTradeExecutionsCount(db *gorm.DB) error {
	return db.Exec(`UPDATE trades SET executions_count = (
		SELECT COUNT(*) FROM trade_orders WHERE trade_orders.trade_id = trades.id
	)`).Error
}
