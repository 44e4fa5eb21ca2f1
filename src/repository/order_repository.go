package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradejournal/src/database"
	"tradejournal/src/model"
)

// OrderRepository reads imported executions. Orders are written only by
// TradeRepository.Commit so that they are linked to their trade atomically.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance on the read connection.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Debug("Creating new OrderRepository with ReadDB")

	return &OrderRepository{
		db: database.ReadDB(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// OrderSearchOptions narrows an order listing. UserID is mandatory.
type OrderSearchOptions struct {
	UserID         uint
	Symbol         *string
	ImportID       *string
	ExecutedAfter  *time.Time
	ExecutedBefore *time.Time
	Limit          int
	Offset         int
}

func (o OrderSearchOptions) apply(q *gorm.DB) *gorm.DB {
	q = q.Where("user_id = ?", o.UserID)
	if o.Symbol != nil {
		q = q.Where("symbol = ?", *o.Symbol)
	}
	if o.ImportID != nil {
		q = q.Where("import_id = ?", *o.ImportID)
	}
	if o.ExecutedAfter != nil {
		q = q.Where("execution_time >= ?", *o.ExecutedAfter)
	}
	if o.ExecutedBefore != nil {
		q = q.Where("execution_time <= ?", *o.ExecutedBefore)
	}
	return q
}

// Search returns the user's orders, newest execution first.
func (r *OrderRepository) Search(
	ctx context.Context,
	opts OrderSearchOptions,
) ([]model.Order, error) {

	fields := map[string]interface{}{
		"repo":    "OrderRepository",
		"op":      "Search",
		"user_id": opts.UserID,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	}
	logger.WithFields(fields).Debug("Searching orders")

	q := opts.apply(r.db.WithContext(ctx).Model(&model.Order{})).
		Order("execution_time DESC, id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to search orders")
		return nil, err
	}

	logger.WithFields(fields).WithField("rows_return", len(orders)).Debug("Orders fetched")

	return orders, nil
}

// Count returns how many orders match opts, ignoring pagination.
func (r *OrderRepository) Count(
	ctx context.Context,
	opts OrderSearchOptions,
) (int64, error) {

	var total int64
	err := opts.apply(r.db.WithContext(ctx).Model(&model.Order{})).Count(&total).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "OrderRepository",
			"op":      "Count",
			"user_id": opts.UserID,
		}).WithError(err).Error("Failed to count orders")
		return 0, err
	}
	return total, nil
}

// FindByID fetches one of the user's orders.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	userID uint,
	id uint,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":    "OrderRepository",
				"op":      "FindByID",
				"id":      id,
				"user_id": userID,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}
