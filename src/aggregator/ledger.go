package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/src/model"
)

const (
	priceScale = 4
	pnlScale   = 3
)

// ledger carries the running sums behind a trade's published statistics.
// The trade only stores rounded averages, so the sums are kept here and
// rebuilt from the trade's orders when an existing trade is loaded.
type ledger struct {
	trade *model.Trade

	openQty       int64
	openNotional  decimal.Decimal
	closeQty      int64
	closeNotional decimal.Decimal
	lastClose     time.Time
}

func newLedger(userID uint, o *model.Order) *ledger {
	l := &ledger{
		trade: &model.Trade{
			UserID:         userID,
			Symbol:         o.Symbol,
			Status:         model.TradeStatusOpen,
			Direction:      o.ImpliedDirection(),
			EntryTimestamp: o.ExecutionTime,
		},
	}
	l.addOpen(o)
	return l
}

// rebuildLedger clones t and recomputes its sums from the persisted orders.
func rebuildLedger(t *model.Trade) *ledger {
	l := &ledger{trade: t.Clone()}

	if len(t.Orders) == 0 {
		// Nothing to replay; trust the stored aggregate.
		l.openQty = int64(t.Volume)
		l.openNotional = decimal.NewFromFloat(t.AvgEntryPrice).Mul(decimal.NewFromInt(int64(t.Volume)))
		return l
	}

	for _, o := range t.Orders {
		qty := decimal.NewFromInt(int64(o.AbsQuantity()))
		price := decimal.NewFromFloat(o.Price)
		switch {
		case o.IsOpening():
			l.openQty += int64(o.AbsQuantity())
			l.openNotional = l.openNotional.Add(qty.Mul(price))
		case o.IsClosing():
			l.closeQty += int64(o.AbsQuantity())
			l.closeNotional = l.closeNotional.Add(qty.Mul(price))
			if o.ExecutionTime.After(l.lastClose) {
				l.lastClose = o.ExecutionTime
			}
		}
	}
	return l
}

func (l *ledger) addOpen(o *model.Order) {
	qty := int64(o.AbsQuantity())
	l.openQty += qty
	l.openNotional = l.openNotional.Add(decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(o.Price)))

	l.trade.Orders = append(l.trade.Orders, o)
	l.trade.ExecutionsCount++
	l.trade.Volume = int(l.openQty)
	l.trade.AvgEntryPrice = l.avgEntry().InexactFloat64()
}

func (l *ledger) addClose(o *model.Order) {
	qty := int64(o.AbsQuantity())
	l.closeQty += qty
	l.closeNotional = l.closeNotional.Add(decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(o.Price)))
	if o.ExecutionTime.After(l.lastClose) {
		l.lastClose = o.ExecutionTime
	}

	l.trade.Orders = append(l.trade.Orders, o)
	l.trade.ExecutionsCount++
}

func (l *ledger) remaining() int64 {
	return l.openQty - l.closeQty
}

func (l *ledger) isFlat() bool {
	return l.openQty > 0 && l.openQty == l.closeQty
}

func (l *ledger) avgEntry() decimal.Decimal {
	if l.openQty == 0 {
		return decimal.Zero
	}
	return l.openNotional.Div(decimal.NewFromInt(l.openQty)).Round(priceScale)
}

func (l *ledger) avgExit() decimal.Decimal {
	if l.closeQty == 0 {
		return decimal.Zero
	}
	return l.closeNotional.Div(decimal.NewFromInt(l.closeQty)).Round(priceScale)
}

// finalize publishes exit statistics and marks the trade CLOSED.
func (l *ledger) finalize() {
	entry := l.avgEntry()
	exit := l.avgExit()
	volume := decimal.NewFromInt(l.openQty)

	var pnl decimal.Decimal
	if l.trade.Direction == model.TradeDirectionShort {
		pnl = entry.Sub(exit).Mul(volume)
	} else {
		pnl = exit.Sub(entry).Mul(volume)
	}

	avgExit := exit.InexactFloat64()
	pnlValue := pnl.Round(pnlScale).InexactFloat64()
	exitTs := l.lastClose

	l.trade.Status = model.TradeStatusClosed
	l.trade.AvgEntryPrice = entry.InexactFloat64()
	l.trade.AvgExitPrice = &avgExit
	l.trade.Pnl = &pnlValue
	l.trade.ExitTimestamp = &exitTs
}
