package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

var t0 = time.Date(2024, 2, 5, 15, 0, 0, 0, time.UTC)

func order(userID uint, symbol, side, effect string, qty int, price float64, at time.Duration) *model.Order {
	return &model.Order{
		UserID:         userID,
		ImportID:       "batch",
		ExecutionTime:  t0.Add(at),
		Side:           side,
		Quantity:       qty,
		PositionEffect: effect,
		Symbol:         symbol,
		Price:          price,
		NetPrice:       price,
	}
}

func openTrade(userID uint, symbol string, orders ...*model.Order) *model.Trade {
	return &model.Trade{
		UserID:          userID,
		Symbol:          symbol,
		Status:          model.TradeStatusOpen,
		Direction:       model.TradeDirectionLong,
		Volume:          orders[0].AbsQuantity(),
		AvgEntryPrice:   orders[0].Price,
		EntryTimestamp:  orders[0].ExecutionTime,
		ExecutionsCount: len(orders),
		Orders:          orders,
	}
}

func TestTradeRepositoryCommitAndFindOpen(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	buy := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 10, 100, 0)
	orphan := order(1, "MSFT", model.OrderSideSell, model.PositionEffectToClose, 3, 300, time.Minute)
	trade := openTrade(1, "AAPL", buy)

	err := repo.Commit(ctx, CommitBatch{
		UserID:   1,
		ImportID: "batch",
		Orders:   []*model.Order{buy, orphan},
		Open:     []*model.Trade{trade},
		Logs: []PendingLog{{
			Log:   &model.ImportLog{ImportID: "batch", UserID: 1, Level: model.ImportLogLevelWarn, Kind: "orphan_close", Message: "no open trade", Metadata: map[string]any{"symbol": "MSFT"}},
			Order: orphan,
		}},
	})
	require.NoError(t, err)
	require.NotZero(t, trade.ID)
	require.NotZero(t, orphan.ID)

	open, err := repo.FindOpenBySymbols(ctx, 1, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Contains(t, open, "AAPL")
	require.Len(t, open["AAPL"].Orders, 1)
	assert.Equal(t, buy.ID, open["AAPL"].Orders[0].ID)

	var logs []model.ImportLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].OrderID)
	assert.Equal(t, orphan.ID, *logs[0].OrderID)
	assert.Equal(t, "MSFT", logs[0].Metadata["symbol"])

	// other users see nothing
	none, err := repo.FindOpenBySymbols(ctx, 2, []string{"AAPL"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// close the trade and open a fresh one for the same symbol in one batch
	existing := open["AAPL"]
	sell := order(1, "AAPL", model.OrderSideSell, model.PositionEffectToClose, 10, 110, 2*time.Minute)
	exit, pnl, exitTs := 110.0, 100.0, sell.ExecutionTime
	existing.Orders = append(existing.Orders, sell)
	existing.Status = model.TradeStatusClosed
	existing.ExecutionsCount = 2
	existing.AvgExitPrice = &exit
	existing.Pnl = &pnl
	existing.ExitTimestamp = &exitTs

	rebuy := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 5, 105, 3*time.Minute)
	next := openTrade(1, "AAPL", rebuy)

	require.NoError(t, repo.Commit(ctx, CommitBatch{
		UserID: 1,
		Orders: []*model.Order{sell, rebuy},
		Closed: []*model.Trade{existing},
		Open:   []*model.Trade{next},
	}))

	closed, err := repo.FindByID(ctx, 1, existing.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, model.TradeStatusClosed, closed.Status)
	assert.Equal(t, 2, closed.ExecutionsCount)
	require.Len(t, closed.Orders, 2)
	assert.Equal(t, buy.ID, closed.Orders[0].ID)
	assert.Equal(t, sell.ID, closed.Orders[1].ID)
	assert.Equal(t, 100.0, *closed.Pnl)

	open, err = repo.FindOpenBySymbols(ctx, 1, []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, next.ID, open["AAPL"].ID)
}

func TestTradeRepositoryCommitIsAtomic(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	first := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 0)
	require.NoError(t, repo.Commit(ctx, CommitBatch{
		UserID: 1,
		Orders: []*model.Order{first},
		Open:   []*model.Trade{openTrade(1, "AAPL", first)},
	}))

	// a second OPEN trade for the same symbol violates the partial unique index
	dup := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 2, 11, time.Minute)
	other := order(1, "MSFT", model.OrderSideBuy, model.PositionEffectToOpen, 2, 11, time.Minute)
	err := repo.Commit(ctx, CommitBatch{
		UserID: 1,
		Orders: []*model.Order{dup, other},
		Open:   []*model.Trade{openTrade(1, "MSFT", other), openTrade(1, "AAPL", dup)},
	})
	require.Error(t, err)

	var orders, trades, links int64
	require.NoError(t, db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&model.Trade{}).Count(&trades).Error)
	require.NoError(t, db.Model(&model.TradeOrder{}).Count(&links).Error)
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(1), trades)
	assert.Equal(t, int64(1), links)
}

func TestTradeRepositoryCommitFailsOnVanishedTrade(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	ghost := openTrade(1, "AAPL", order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 0))
	ghost.ID = 999

	err := repo.Commit(context.Background(), CommitBatch{UserID: 1, Open: []*model.Trade{ghost}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTradeVanished))
}

func TestTradeRepositorySearchAndCount(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	for i, symbol := range []string{"AAPL", "MSFT", "SPY"} {
		o := order(1, symbol, model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, time.Duration(i)*time.Hour)
		require.NoError(t, repo.Commit(ctx, CommitBatch{UserID: 1, Orders: []*model.Order{o}, Open: []*model.Trade{openTrade(1, symbol, o)}}))
	}
	closed := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 5*time.Hour)
	ct := openTrade(1, "AAPL", closed)
	ct.Status = model.TradeStatusClosed
	require.NoError(t, repo.Commit(ctx, CommitBatch{UserID: 1, Orders: []*model.Order{closed}, Closed: []*model.Trade{ct}}))

	all, err := repo.Search(ctx, TradeSearchOptions{UserID: 1})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ct.ID, all[0].ID)
	assert.Empty(t, all[0].Orders)

	status := model.TradeStatusOpen
	page, err := repo.Search(ctx, TradeSearchOptions{UserID: 1, Status: &status, WithOrders: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "MSFT", page[0].Symbol)
	assert.Equal(t, "AAPL", page[1].Symbol)
	assert.Len(t, page[0].Orders, 1)

	total, err := repo.Count(ctx, TradeSearchOptions{UserID: 1, Symbol: ptrString("AAPL")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestTradeRepositoryApplyUpdate(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	o := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 0)
	trade := openTrade(1, "AAPL", o)
	require.NoError(t, repo.Commit(ctx, CommitBatch{UserID: 1, Orders: []*model.Order{o}, Open: []*model.Trade{trade}}))

	notes := "chased the breakout"
	updated, err := repo.ApplyUpdate(ctx, 1, trade.ID, model.TradeUpdate{Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, 10.0, updated.AvgEntryPrice)
	assert.Len(t, updated.Orders, 1)

	missing, err := repo.ApplyUpdate(ctx, 2, trade.ID, model.TradeUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Nil(t, missing)

	unchanged, err := repo.ApplyUpdate(ctx, 1, trade.ID, model.TradeUpdate{})
	require.NoError(t, err)
	assert.Equal(t, notes, unchanged.Notes)
}

func TestTradeRepositoryDeleteCascades(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	buy := order(1, "AAPL", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 0)
	keep := order(1, "MSFT", model.OrderSideBuy, model.PositionEffectToOpen, 1, 10, 0)
	trade := openTrade(1, "AAPL", buy)
	other := openTrade(1, "MSFT", keep)
	require.NoError(t, repo.Commit(ctx, CommitBatch{UserID: 1, Orders: []*model.Order{buy, keep}, Open: []*model.Trade{trade, other}}))

	gone, err := repo.Delete(ctx, 2, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	deleted, err := repo.Delete(ctx, 1, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.Equal(t, "AAPL", deleted.Symbol)

	var orders []model.Order
	require.NoError(t, db.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, keep.ID, orders[0].ID)

	var links int64
	require.NoError(t, db.Model(&model.TradeOrder{}).Where("trade_id = ?", trade.ID).Count(&links).Error)
	assert.Zero(t, links)

	found, err := repo.FindByID(ctx, 1, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	again, err := repo.Delete(ctx, 1, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestFindOpenBySymbolsWithoutSymbolsSkipsQuery(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(mockDB)

	open, err := repo.FindOpenBySymbols(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}
