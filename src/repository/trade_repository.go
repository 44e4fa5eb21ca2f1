package repository

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradejournal/src/database"
	"tradejournal/src/model"
)

// ErrTradeVanished is returned by Commit when an existing trade it must
// update no longer exists, typically because it was deleted concurrently.
var ErrTradeVanished = errors.New("trade no longer exists")

// TradeRepository persists trades together with their orders.
type TradeRepository struct {
	db     *gorm.DB
	readDB *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Debug("Creating new TradeRepository with MainDB")

	return &TradeRepository{
		db:     database.MainDB,
		readDB: database.ReadDB(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance for reads and writes.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db, readDB: db}
}

func ordersByExecution(db *gorm.DB) *gorm.DB {
	return db.Order("orders.execution_time ASC, orders.id ASC")
}

// FindOpenBySymbols returns the user's OPEN trades for symbols keyed by symbol,
// with their orders loaded in execution order.
func (r *TradeRepository) FindOpenBySymbols(
	ctx context.Context,
	userID uint,
	symbols []string,
) (map[string]*model.Trade, error) {

	open := make(map[string]*model.Trade)
	if len(symbols) == 0 {
		return open, nil
	}

	fields := map[string]interface{}{
		"repo":    "TradeRepository",
		"op":      "FindOpenBySymbols",
		"user_id": userID,
		"symbols": len(symbols),
	}
	logger.WithFields(fields).Debug("Fetching open trades")

	var trades []*model.Trade
	err := r.db.WithContext(ctx).
		Preload("Orders", ordersByExecution).
		Where("user_id = ? AND status = ? AND symbol IN ?", userID, model.TradeStatusOpen, symbols).
		Find(&trades).Error
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to fetch open trades")
		return nil, err
	}

	for _, t := range trades {
		open[t.Symbol] = t
	}

	logger.WithFields(fields).WithField("rows_return", len(trades)).Debug("Open trades fetched")

	return open, nil
}

// PendingLog is an audit row whose order and trade ids are only known once
// the rest of the batch has been inserted.
type PendingLog struct {
	Log   *model.ImportLog
	Order *model.Order
	Trade *model.Trade
}

// CommitBatch is everything one import writes.
type CommitBatch struct {
	UserID   uint
	ImportID string
	Orders   []*model.Order
	// Closed is written before Open so that a symbol's old trade is closed
	// before its replacement is inserted.
	Closed []*model.Trade
	Open   []*model.Trade
	Logs   []PendingLog
}

// Commit writes a reconciled batch in a single transaction. Either every
// order, trade, link and log is stored or none is.
func (r *TradeRepository) Commit(ctx context.Context, batch CommitBatch) error {
	fields := map[string]interface{}{
		"repo":      "TradeRepository",
		"op":        "Commit",
		"user_id":   batch.UserID,
		"import_id": batch.ImportID,
		"orders":    len(batch.Orders),
		"closed":    len(batch.Closed),
		"open":      len(batch.Open),
	}
	logger.WithFields(fields).Debug("Committing import batch")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(batch.Orders) > 0 {
			if err := tx.Create(&batch.Orders).Error; err != nil {
				return fmt.Errorf("insert orders: %w", err)
			}
		}

		trades := make([]*model.Trade, 0, len(batch.Closed)+len(batch.Open))
		trades = append(trades, batch.Closed...)
		trades = append(trades, batch.Open...)

		var links []model.TradeOrder
		for _, t := range trades {
			if err := saveTrade(tx, t); err != nil {
				return err
			}
			for _, o := range t.Orders {
				links = append(links, model.TradeOrder{TradeID: t.ID, OrderID: o.ID})
			}
		}

		if len(links) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
				return fmt.Errorf("link orders: %w", err)
			}
		}

		if len(batch.Logs) > 0 {
			logs := make([]*model.ImportLog, 0, len(batch.Logs))
			for _, p := range batch.Logs {
				if p.Order != nil && p.Order.ID != 0 {
					id := p.Order.ID
					p.Log.OrderID = &id
				}
				if p.Trade != nil && p.Trade.ID != 0 {
					id := p.Trade.ID
					p.Log.TradeID = &id
				}
				logs = append(logs, p.Log)
			}
			if err := tx.Create(&logs).Error; err != nil {
				return fmt.Errorf("insert import logs: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to commit import batch")
		return err
	}

	logger.WithFields(fields).Info("Import batch committed")

	return nil
}

func saveTrade(tx *gorm.DB, t *model.Trade) error {
	if t.ID == 0 {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return fmt.Errorf("insert %s trade for %s: %w", t.Status, t.Symbol, err)
		}
		return nil
	}

	res := tx.Model(&model.Trade{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(model.TradeUpdateFromTrade(t).Columns())
	if res.Error != nil {
		return fmt.Errorf("update trade %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update trade %d: %w", t.ID, ErrTradeVanished)
	}
	return nil
}

// TradeSearchOptions narrows a trade listing. UserID is mandatory.
type TradeSearchOptions struct {
	UserID     uint
	Status     *string
	Symbol     *string
	WithOrders bool
	Limit      int
	Offset     int
}

func (o TradeSearchOptions) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", o.UserID)
	if o.Status != nil {
		q = q.Where("status = ?", *o.Status)
	}
	if o.Symbol != nil {
		q = q.Where("symbol = ?", *o.Symbol)
	}
	return q
}

// Search lists the user's trades, most recently opened first.
func (r *TradeRepository) Search(
	ctx context.Context,
	opts TradeSearchOptions,
) ([]model.Trade, error) {

	fields := map[string]interface{}{
		"repo":    "TradeRepository",
		"op":      "Search",
		"user_id": opts.UserID,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	}
	logger.WithFields(fields).Debug("Searching trades")

	q := opts.apply(r.readDB.WithContext(ctx).Model(&model.Trade{})).
		Order("entry_timestamp DESC, id DESC")
	if opts.WithOrders {
		q = q.Preload("Orders", ordersByExecution)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var trades []model.Trade
	if err := q.Find(&trades).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to search trades")
		return nil, err
	}

	return trades, nil
}

// Count returns how many trades match opts, ignoring pagination.
func (r *TradeRepository) Count(
	ctx context.Context,
	opts TradeSearchOptions,
) (int64, error) {

	var total int64
	if err := opts.apply(r.readDB.WithContext(ctx).Model(&model.Trade{})).Count(&total).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRepository",
			"op":      "Count",
			"user_id": opts.UserID,
		}).WithError(err).Error("Failed to count trades")
		return 0, err
	}
	return total, nil
}

// FindByID fetches one of the user's trades with its orders.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByID(
	ctx context.Context,
	userID uint,
	id uint,
) (*model.Trade, error) {
	return findTrade(r.db.WithContext(ctx), userID, id)
}

func findTrade(db *gorm.DB, userID, id uint) (*model.Trade, error) {
	var trade model.Trade

	err := db.
		Preload("Orders", ordersByExecution).
		Where("id = ? AND user_id = ?", id, userID).
		First(&trade).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":    "TradeRepository",
				"op":      "FindByID",
				"id":      id,
				"user_id": userID,
			}).Info("Trade not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch trade by ID")

		return nil, err
	}

	return &trade, nil
}

// ApplyUpdate writes the set fields of upd to the trade and returns it reloaded.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) ApplyUpdate(
	ctx context.Context,
	userID uint,
	id uint,
	upd model.TradeUpdate,
) (*model.Trade, error) {

	fields := map[string]interface{}{
		"repo":    "TradeRepository",
		"op":      "ApplyUpdate",
		"id":      id,
		"user_id": userID,
	}

	if upd.IsEmpty() {
		return r.FindByID(ctx, userID, id)
	}

	res := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(upd.Columns())
	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to update trade")
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(fields).Info("Trade not found for update")
		return nil, nil
	}

	logger.WithFields(fields).Info("Trade updated")

	return r.FindByID(ctx, userID, id)
}

// Delete removes a trade, its links and the orders it owns in one transaction.
// Returns the deleted trade, or (nil, nil) if it does not exist.
func (r *TradeRepository) Delete(
	ctx context.Context,
	userID uint,
	id uint,
) (*model.Trade, error) {

	fields := map[string]interface{}{
		"repo":    "TradeRepository",
		"op":      "Delete",
		"id":      id,
		"user_id": userID,
	}

	var deleted *model.Trade
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		trade, err := findTrade(tx, userID, id)
		if err != nil || trade == nil {
			return err
		}

		orderIDs := make([]uint, 0, len(trade.Orders))
		for _, o := range trade.Orders {
			orderIDs = append(orderIDs, o.ID)
		}

		if err := tx.Where("trade_id = ?", trade.ID).Delete(&model.TradeOrder{}).Error; err != nil {
			return fmt.Errorf("delete trade links: %w", err)
		}
		if len(orderIDs) > 0 {
			if err := tx.Where("id IN ? AND user_id = ?", orderIDs, userID).Delete(&model.Order{}).Error; err != nil {
				return fmt.Errorf("delete trade orders: %w", err)
			}
		}
		if err := tx.Delete(&model.Trade{}, trade.ID).Error; err != nil {
			return fmt.Errorf("delete trade: %w", err)
		}

		deleted = trade
		return nil
	})
	if err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to delete trade")
		return nil, err
	}

	if deleted != nil {
		logger.WithFields(fields).WithField("orders", len(deleted.Orders)).Info("Trade deleted")
	}

	return deleted, nil
}
